package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

// TermRepository describes the persistence layer required by TermService.
type TermRepository interface {
	List(ctx context.Context) ([]models.Term, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindActive(ctx context.Context) (*models.Term, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
}

// SaveTermRequest carries a new or updated academic term.
type SaveTermRequest struct {
	Name     string    `json:"name" validate:"required,min=2,max=100"`
	StartsOn time.Time `json:"starts_on" validate:"required"`
	EndsOn   time.Time `json:"ends_on" validate:"required"`
	IsActive *bool     `json:"is_active,omitempty"`
}

// TermService manages academic terms.
type TermService struct {
	repo      TermRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService constructs a term service.
func NewTermService(repo TermRepository, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, validator: validate, logger: logger}
}

// List returns every term.
func (s *TermService) List(ctx context.Context) ([]models.Term, error) {
	terms, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// Get returns one term.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// Active returns the currently active term.
func (s *TermService) Active(ctx context.Context) (*models.Term, error) {
	term, err := s.repo.FindActive(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	return term, nil
}

// Create registers a new term.
func (s *TermService) Create(ctx context.Context, req SaveTermRequest) (*models.Term, error) {
	term, err := s.termFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update replaces a term's fields.
func (s *TermService) Update(ctx context.Context, id string, req SaveTermRequest) (*models.Term, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	term, err := s.termFromRequest(req)
	if err != nil {
		return nil, err
	}
	term.ID = existing.ID
	term.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

func (s *TermService) termFromRequest(req SaveTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if req.EndsOn.Before(req.StartsOn) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ends_on must not precede starts_on")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.Term{
		Name:     req.Name,
		StartsOn: req.StartsOn,
		EndsOn:   req.EndsOn,
		IsActive: active,
	}, nil
}
