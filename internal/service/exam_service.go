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

// ExamRepository describes the persistence layer required by ExamService.
type ExamRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	SetState(ctx context.Context, id string, state int) error
	ListInstances(ctx context.Context, filter models.ExamInstanceFilter) ([]models.ExamInstance, error)
	FindInstanceByID(ctx context.Context, id string) (*models.ExamInstance, error)
	CreateInstance(ctx context.Context, instance *models.ExamInstance) error
	UpdateInstance(ctx context.Context, instance *models.ExamInstance) error
}

// CreateExamRequest carries an instructor's new exam definition.
type CreateExamRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Title    string `json:"title" validate:"required,min=2,max=200"`
}

// UpdateExamRequest updates a definition's title.
type UpdateExamRequest struct {
	Title string `json:"title" validate:"required,min=2,max=200"`
}

// CreateInstanceRequest assigns an exam to a student.
type CreateInstanceRequest struct {
	ExamID        string     `json:"exam_id" validate:"required"`
	StudentID     string     `json:"student_id" validate:"required"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Required      bool       `json:"required"`
}

// ScheduleInstanceRequest books or moves an instance's scheduled date.
type ScheduleInstanceRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
}

// RecordResultRequest records the outcome of a taken exam. Score accepts a
// numeric percentage or a letter; it is normalized before persisting.
type RecordResultRequest struct {
	TakenDate time.Time `json:"taken_date" validate:"required"`
	Score     string    `json:"score" validate:"required"`
}

// ExamService manages exam definitions and per-student instances. All
// status classification happens at read time in the configured timezone;
// statuses are never persisted.
type ExamService struct {
	repo      ExamRepository
	cache     *CacheService
	loc       *time.Location
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExamService constructs an exam service.
func NewExamService(repo ExamRepository, cache *CacheService, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ExamService{repo: repo, cache: cache, loc: loc, validator: validate, logger: logger, now: time.Now}
}

// ListExams returns exam definitions for a course.
func (s *ExamService) ListExams(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	exams, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// GetExam returns one exam definition.
func (s *ExamService) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// CreateExam registers a new definition. New definitions start active at
// version 1.
func (s *ExamService) CreateExam(ctx context.Context, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	exam := &models.Exam{
		CourseID: req.CourseID,
		Title:    req.Title,
		State:    models.ExamStateActive,
		Version:  1,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	s.invalidateCourse(ctx, exam.CourseID)
	return exam, nil
}

// UpdateExam renames a definition.
func (s *ExamService) UpdateExam(ctx context.Context, id string, req UpdateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	exam, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	exam.Title = req.Title
	if err := s.repo.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	s.invalidateCourse(ctx, exam.CourseID)
	return exam, nil
}

// SetExamState flips the administrative toggle. The toggle only affects
// whether new instances may be assigned; existing instances keep their
// read-time status regardless.
func (s *ExamService) SetExamState(ctx context.Context, id string, state int) (*models.Exam, error) {
	if state != models.ExamStateActive && state != models.ExamStateInactive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "state must be 0 or 1")
	}
	exam, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetState(ctx, id, state); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set exam state")
	}
	exam.State = state
	exam.Version++
	s.invalidateCourse(ctx, exam.CourseID)
	return exam, nil
}

// ListInstances returns classified instance views matching the filter.
func (s *ExamService) ListInstances(ctx context.Context, filter models.ExamInstanceFilter) ([]models.ExamInstanceView, error) {
	instances, err := s.repo.ListInstances(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam instances")
	}
	now := s.now()
	views := make([]models.ExamInstanceView, 0, len(instances))
	for _, inst := range instances {
		views = append(views, models.ExamInstanceView{
			ExamInstance: inst,
			Status:       ClassifyInstance(inst, now, s.loc),
		})
	}
	return views, nil
}

// GetInstance returns one classified instance view.
func (s *ExamService) GetInstance(ctx context.Context, id string) (*models.ExamInstanceView, error) {
	instance, err := s.findInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ExamInstanceView{
		ExamInstance: *instance,
		Status:       ClassifyInstance(*instance, s.now(), s.loc),
	}, nil
}

// CreateInstance assigns an exam to a student. Assignment is refused when
// the definition is inactive.
func (s *ExamService) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*models.ExamInstanceView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instance payload")
	}
	exam, err := s.GetExam(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if !DefinitionActive(exam.State) {
		return nil, appErrors.Clone(appErrors.ErrExamInactive, "")
	}
	instance := &models.ExamInstance{
		ExamID:        exam.ID,
		CourseID:      exam.CourseID,
		StudentID:     req.StudentID,
		Version:       1,
		ScheduledDate: req.ScheduledDate,
		Required:      req.Required,
	}
	if err := s.repo.CreateInstance(ctx, instance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam instance")
	}
	s.invalidateCourse(ctx, exam.CourseID)
	return &models.ExamInstanceView{
		ExamInstance: *instance,
		Status:       ClassifyInstance(*instance, s.now(), s.loc),
	}, nil
}

// ScheduleInstance books or moves the scheduled date of an instance.
// Scheduling an already-scored instance is refused.
func (s *ExamService) ScheduleInstance(ctx context.Context, id string, req ScheduleInstanceRequest) (*models.ExamInstanceView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	instance, err := s.findInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.Score != nil && *instance.Score != "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "instance already has a recorded score")
	}
	scheduled := req.ScheduledDate
	instance.ScheduledDate = &scheduled
	if err := s.repo.UpdateInstance(ctx, instance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule exam instance")
	}
	s.invalidateCourse(ctx, instance.CourseID)
	return &models.ExamInstanceView{
		ExamInstance: *instance,
		Status:       ClassifyInstance(*instance, s.now(), s.loc),
	}, nil
}

// RecordResult normalizes and stores the score for a taken exam.
func (s *ExamService) RecordResult(ctx context.Context, id string, req RecordResultRequest) (*models.ExamInstanceView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}
	letter, err := NormalizeScore(req.Score)
	if err != nil {
		return nil, err
	}
	instance, err := s.findInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	taken := req.TakenDate
	score := string(letter)
	instance.TakenDate = &taken
	instance.Score = &score
	if err := s.repo.UpdateInstance(ctx, instance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record exam result")
	}
	s.invalidateCourse(ctx, instance.CourseID)
	return &models.ExamInstanceView{
		ExamInstance: *instance,
		Status:       ClassifyInstance(*instance, s.now(), s.loc),
	}, nil
}

// Backlog returns the instances for a student that still need scheduling
// attention, optionally narrowed to one course and an explicit status set.
func (s *ExamService) Backlog(ctx context.Context, studentID, courseID string, statuses []models.ExamStatus) ([]models.ExamInstanceView, error) {
	instances, err := s.repo.ListInstances(ctx, models.ExamInstanceFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam instances")
	}
	return SelectNeedingSchedule(instances, statuses, courseID, s.now(), s.loc), nil
}

func (s *ExamService) findInstance(ctx context.Context, id string) (*models.ExamInstance, error) {
	instance, err := s.repo.FindInstanceByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam instance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam instance")
	}
	return instance, nil
}

func (s *ExamService) invalidateCourse(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("invalidate dashboard cache", zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "roster:"+courseID+"*"); err != nil {
		s.logger.Warn("invalidate roster cache", zap.String("course_id", courseID), zap.Error(err))
	}
}
