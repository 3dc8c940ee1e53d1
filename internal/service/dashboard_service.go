package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

type instanceLister interface {
	ListInstances(ctx context.Context, filter models.ExamInstanceFilter) ([]models.ExamInstanceView, error)
	Backlog(ctx context.Context, studentID, courseID string, statuses []models.ExamStatus) ([]models.ExamInstanceView, error)
}

type slotProvider interface {
	CourseSlots(ctx context.Context, courseID string) ([]models.CalendarSlot, error)
}

type gradeProvider interface {
	CourseGrade(ctx context.Context, courseID, studentID string) (*models.GradeResult, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL      time.Duration
	NextSlotLimit int
}

// DashboardService composes the student dashboard summary: status counts
// across all assigned exams, the scheduling backlog, the next bookable
// slots and current grades per course.
type DashboardService struct {
	instances instanceLister
	slots     slotProvider
	grades    gradeProvider
	cache     *CacheService
	logger    *zap.Logger
	now       func() time.Time
	cfg       DashboardServiceConfig
}

// NewDashboardService constructs a dashboard service.
func NewDashboardService(instances instanceLister, slots slotProvider, grades gradeProvider, cache *CacheService, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NextSlotLimit <= 0 {
		cfg.NextSlotLimit = 5
	}
	return &DashboardService{
		instances: instances,
		slots:     slots,
		grades:    grades,
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Summary builds the dashboard payload for one student. Results are cached
// per student and invalidated by exam, window and strategy writes.
func (s *DashboardService) Summary(ctx context.Context, studentID string) (*models.DashboardSummary, error) {
	cacheKey := "dashboard:" + studentID
	var cached models.DashboardSummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	views, err := s.instances.ListInstances(ctx, models.ExamInstanceFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	counts := map[models.ExamStatus]int{
		models.ExamStatusUpcoming:  0,
		models.ExamStatusCompleted: 0,
		models.ExamStatusMissing:   0,
		models.ExamStatusPending:   0,
	}
	courseSet := map[string]struct{}{}
	for _, v := range views {
		counts[v.Status]++
		courseSet[v.CourseID] = struct{}{}
	}

	backlog, err := s.instances.Backlog(ctx, studentID, "", nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var nextSlots []models.CalendarSlot
	var grades []models.GradeResult
	for courseID := range courseSet {
		slots, err := s.slots.CourseSlots(ctx, courseID)
		if err != nil {
			s.logger.Warn("dashboard slot feed unavailable", zap.String("course_id", courseID), zap.Error(err))
		} else {
			for _, slot := range slots {
				if slot.StartAt.After(now) {
					nextSlots = append(nextSlots, slot)
				}
			}
		}

		grade, err := s.grades.CourseGrade(ctx, courseID, studentID)
		if err != nil {
			if appErrors.HasCode(err, appErrors.ErrNotFound.Code) {
				continue
			}
			return nil, err
		}
		grades = append(grades, *grade)
	}

	sort.Slice(nextSlots, func(i, j int) bool { return nextSlots[i].StartAt.Before(nextSlots[j].StartAt) })
	if len(nextSlots) > s.cfg.NextSlotLimit {
		nextSlots = nextSlots[:s.cfg.NextSlotLimit]
	}

	summary := &models.DashboardSummary{
		StudentID:    studentID,
		StatusCounts: counts,
		Backlog:      backlog,
		NextSlots:    nextSlots,
		Grades:       grades,
		GeneratedAt:  now.UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("cache dashboard summary", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return summary, nil
}
