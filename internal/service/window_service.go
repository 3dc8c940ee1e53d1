package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

// WindowRepository describes the persistence layer required by WindowService.
type WindowRepository interface {
	List(ctx context.Context, filter models.TestWindowFilter) ([]models.TestWindow, error)
	FindByID(ctx context.Context, id string) (*models.TestWindow, error)
	ListActiveByCourse(ctx context.Context, courseID string) ([]models.TestWindow, error)
	Create(ctx context.Context, window *models.TestWindow) error
	Update(ctx context.Context, window *models.TestWindow) error
	Delete(ctx context.Context, id string) error
}

// SaveWindowRequest carries a new or updated test window definition.
// Weekdays maps lowercase weekday names to active flags; Exceptions lists
// dates in YYYY-MM-DD form that are skipped by the recurrence.
type SaveWindowRequest struct {
	CourseID    string          `json:"course_id" validate:"required"`
	Title       string          `json:"title" validate:"required,min=2,max=200"`
	Description string          `json:"description" validate:"max=1000"`
	StartDate   time.Time       `json:"start_date" validate:"required"`
	EndDate     time.Time       `json:"end_date" validate:"required"`
	StartTime   string          `json:"start_time" validate:"required"`
	EndTime     string          `json:"end_time" validate:"required"`
	Weekdays    map[string]bool `json:"weekdays"`
	Exceptions  []string        `json:"exceptions"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// WindowServiceConfig tunes slot feed caching and how far ahead course
// feeds materialize.
type WindowServiceConfig struct {
	SlotCacheTTL time.Duration
	SlotHorizon  time.Duration
}

// WindowService manages test windows and their materialized slot feeds.
// Slots are always derived on read; only window definitions persist.
type WindowService struct {
	repo      WindowRepository
	cache     *CacheService
	metrics   *MetricsService
	loc       *time.Location
	cfg       WindowServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewWindowService constructs a window service.
func NewWindowService(repo WindowRepository, cache *CacheService, metrics *MetricsService, loc *time.Location, cfg WindowServiceConfig, validate *validator.Validate, logger *zap.Logger) *WindowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WindowService{repo: repo, cache: cache, metrics: metrics, loc: loc, cfg: cfg, validator: validate, logger: logger, now: time.Now}
}

// List returns windows matching the filter.
func (s *WindowService) List(ctx context.Context, filter models.TestWindowFilter) ([]models.TestWindow, error) {
	windows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list test windows")
	}
	return windows, nil
}

// Get returns one test window.
func (s *WindowService) Get(ctx context.Context, id string) (*models.TestWindow, error) {
	window, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test window not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test window")
	}
	return window, nil
}

// Create persists a new test window.
func (s *WindowService) Create(ctx context.Context, req SaveWindowRequest) (*models.TestWindow, error) {
	window, err := s.windowFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create test window")
	}
	s.invalidateSlots(ctx, window)
	return window, nil
}

// Update replaces a window definition.
func (s *WindowService) Update(ctx context.Context, id string, req SaveWindowRequest) (*models.TestWindow, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	window, err := s.windowFromRequest(req)
	if err != nil {
		return nil, err
	}
	window.ID = existing.ID
	window.CourseID = existing.CourseID
	window.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update test window")
	}
	s.invalidateSlots(ctx, window)
	return window, nil
}

// Delete removes a window and drops its cached slot feeds.
func (s *WindowService) Delete(ctx context.Context, id string) error {
	window, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete test window")
	}
	s.invalidateSlots(ctx, window)
	return nil
}

// WindowSlots materializes the slot feed for a single window. Inactive
// windows produce no slots.
func (s *WindowService) WindowSlots(ctx context.Context, id string) ([]models.CalendarSlot, error) {
	window, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !window.IsActive {
		return []models.CalendarSlot{}, nil
	}

	cacheKey := "slots:window:" + id
	var cached []models.CalendarSlot
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	slots := MaterializeWindow(*window, s.loc, s.logger)
	if slots == nil {
		slots = []models.CalendarSlot{}
	}
	if s.metrics != nil {
		s.metrics.ObserveSlotFeed(len(slots))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, slots, s.cfg.SlotCacheTTL); err != nil {
			s.logger.Warn("cache window slots", zap.String("window_id", id), zap.Error(err))
		}
	}
	return slots, nil
}

// CourseSlots materializes one merged slot feed across every active window
// of a course, ordered by start time.
func (s *WindowService) CourseSlots(ctx context.Context, courseID string) ([]models.CalendarSlot, error) {
	cacheKey := "slots:course:" + courseID
	var cached []models.CalendarSlot
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	windows, err := s.repo.ListActiveByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list course windows")
	}
	slots := MaterializeWindows(windows, s.loc, s.logger)
	if s.cfg.SlotHorizon > 0 {
		cutoff := s.now().In(s.loc).Add(s.cfg.SlotHorizon)
		limited := make([]models.CalendarSlot, 0, len(slots))
		for _, slot := range slots {
			if !slot.StartAt.After(cutoff) {
				limited = append(limited, slot)
			}
		}
		slots = limited
	}
	if slots == nil {
		slots = []models.CalendarSlot{}
	}
	if s.metrics != nil {
		s.metrics.ObserveSlotFeed(len(slots))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, slots, s.cfg.SlotCacheTTL); err != nil {
			s.logger.Warn("cache course slots", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return slots, nil
}

func (s *WindowService) windowFromRequest(req SaveWindowRequest) (*models.TestWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid test window payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	weekdays := req.Weekdays
	if weekdays == nil {
		weekdays = map[string]bool{}
	}
	weekdaysRaw, err := json.Marshal(weekdays)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode weekdays")
	}
	exceptions := req.Exceptions
	if exceptions == nil {
		exceptions = []string{}
	}
	exceptionsRaw, err := json.Marshal(exceptions)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode exceptions")
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.TestWindow{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Weekdays:    types.JSONText(weekdaysRaw),
		Exceptions:  types.JSONText(exceptionsRaw),
		IsActive:    active,
	}, nil
}

func (s *WindowService) invalidateSlots(ctx context.Context, window *models.TestWindow) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "slots:window:"+window.ID); err != nil {
		s.logger.Warn("invalidate window slot cache", zap.String("window_id", window.ID), zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "slots:course:"+window.CourseID); err != nil {
		s.logger.Warn("invalidate course slot cache", zap.String("course_id", window.CourseID), zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("invalidate dashboard cache", zap.Error(err))
	}
}
