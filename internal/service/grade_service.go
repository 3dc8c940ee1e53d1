package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

// GradeCourseReader loads the course rows the grade engine needs.
type GradeCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	UpdateGradeStrategy(ctx context.Context, courseID string, strategy *string) error
}

// GradeInstanceReader loads exam evidence for grading.
type GradeInstanceReader interface {
	ListInstances(ctx context.Context, filter models.ExamInstanceFilter) ([]models.ExamInstance, error)
	ListInstancesForStudents(ctx context.Context, courseID string, studentIDs []string) (map[string][]models.ExamInstance, error)
}

// GradeStudentReader loads roster membership.
type GradeStudentReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Student, error)
}

// UpdateStrategyRequest replaces a course's grading policy. A nil Strategy
// clears the policy so the course falls back to threshold grading.
type UpdateStrategyRequest struct {
	Strategy *models.GradeStrategy `json:"strategy"`
}

// GradeService determines course grades from exam evidence and the
// per-course strategy blob. A malformed blob never fails a read: grading
// degrades to the threshold fallback and the response is flagged.
type GradeService struct {
	courses   GradeCourseReader
	instances GradeInstanceReader
	students  GradeStudentReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a grade service.
func NewGradeService(courses GradeCourseReader, instances GradeInstanceReader, students GradeStudentReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{courses: courses, instances: instances, students: students, cache: cache, validator: validate, logger: logger}
}

// CourseGrade evaluates one student's grade in one course.
func (s *GradeService) CourseGrade(ctx context.Context, courseID, studentID string) (*models.GradeResult, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	strategy, degraded := s.parseStrategy(course)

	instances, err := s.instances.ListInstances(ctx, models.ExamInstanceFilter{CourseID: courseID, StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam evidence")
	}

	result := s.evaluate(courseID, studentID, instances, strategy)
	result.StrategyDegraded = degraded
	return result, nil
}

// Roster evaluates every enrolled student and aggregates the distribution
// and pass/fail split for instructor views.
func (s *GradeService) Roster(ctx context.Context, courseID string) (*models.CourseRoster, error) {
	cacheKey := "roster:" + courseID
	var cached models.CourseRoster
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	strategy, degraded := s.parseStrategy(course)

	students, err := s.students.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}

	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	grouped, err := s.instances.ListInstancesForStudents(ctx, courseID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam evidence")
	}

	roster := &models.CourseRoster{
		CourseID:         courseID,
		Rows:             make([]models.RosterRow, 0, len(students)),
		Distribution:     models.GradeDistribution{},
		StrategyDegraded: degraded,
	}
	for _, st := range students {
		result := s.evaluate(courseID, st.ID, grouped[st.ID], strategy)
		row := models.RosterRow{
			StudentID:   st.ID,
			StudentName: st.FullName,
			Grade:       result.Grade,
			Category:    result.Category,
			Completed:   result.CompletedExams,
			Pending:     result.TotalExams - result.CompletedExams,
		}
		roster.Rows = append(roster.Rows, row)
		roster.Distribution[models.CoarseGrade(result.Grade)]++
		if result.Category == models.CategoryPassing {
			roster.PassingCount++
		} else {
			roster.FailingCount++
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, roster, 0); err != nil {
			s.logger.Warn("cache roster", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return roster, nil
}

// Strategy returns the parsed grading policy of a course. A malformed
// persisted blob surfaces as a strategy error here so instructors can see
// and fix it; read paths that grade students degrade instead.
func (s *GradeService) Strategy(ctx context.Context, courseID string) (*models.GradeStrategy, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.GradeStrategy == nil || *course.GradeStrategy == "" {
		return nil, nil
	}
	return ParseGradeStrategy(*course.GradeStrategy)
}

// UpdateStrategy validates and persists a replacement grading policy.
func (s *GradeService) UpdateStrategy(ctx context.Context, courseID string, req UpdateStrategyRequest) (*models.GradeStrategy, error) {
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	if req.Strategy == nil {
		if err := s.courses.UpdateGradeStrategy(ctx, courseID, nil); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear grade strategy")
		}
		s.invalidate(ctx, courseID)
		return nil, nil
	}

	raw, err := json.Marshal(req.Strategy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode grade strategy")
	}
	blob := string(raw)
	// Round-trip through the parser so only well-formed policies persist.
	parsed, err := ParseGradeStrategy(blob)
	if err != nil {
		return nil, err
	}
	if err := s.courses.UpdateGradeStrategy(ctx, courseID, &blob); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade strategy")
	}
	s.invalidate(ctx, courseID)
	return parsed, nil
}

func (s *GradeService) evaluate(courseID, studentID string, instances []models.ExamInstance, strategy *models.GradeStrategy) *models.GradeResult {
	grade := EvaluateGrade(instances, strategy)
	completed := 0
	for _, inst := range instances {
		if inst.Score != nil && *inst.Score != "" {
			completed++
		}
	}
	return &models.GradeResult{
		CourseID:       courseID,
		StudentID:      studentID,
		Grade:          grade,
		Category:       PassFailCategory(grade),
		CompletedExams: completed,
		TotalExams:     len(instances),
	}
}

// parseStrategy returns the course strategy, or nil plus a degraded flag
// when the persisted blob is malformed.
func (s *GradeService) parseStrategy(course *models.Course) (*models.GradeStrategy, bool) {
	if course.GradeStrategy == nil || *course.GradeStrategy == "" {
		return nil, false
	}
	strategy, err := ParseGradeStrategy(*course.GradeStrategy)
	if err != nil {
		s.logger.Warn("grade strategy malformed, using threshold fallback",
			zap.String("course_id", course.ID), zap.Error(err))
		return nil, true
	}
	return strategy, false
}

func (s *GradeService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *GradeService) invalidate(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "roster:"+courseID+"*"); err != nil {
		s.logger.Warn("invalidate roster cache", zap.String("course_id", courseID), zap.Error(err))
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("invalidate dashboard cache", zap.Error(err))
	}
}
