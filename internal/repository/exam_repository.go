package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/examdash/exam-dash-api/internal/models"
)

// ExamRepository handles exam definition and exam instance persistence.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns exam definitions matching the filter.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	query := `SELECT id, course_id, title, state, version, created_at, updated_at FROM exams WHERE 1=1`
	var args []interface{}
	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.State != nil {
		query += fmt.Sprintf(" AND state = $%d", len(args)+1)
		args = append(args, *filter.State)
	}
	query += " ORDER BY created_at ASC"

	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// FindByID returns an exam definition by identifier.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, course_id, title, state, version, created_at, updated_at FROM exams WHERE id = $1 LIMIT 1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam by id: %w", err)
	}
	return &exam, nil
}

// Create inserts a new exam definition.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, course_id, title, state, version, created_at, updated_at) VALUES (:id, :course_id, :title, :state, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update updates mutable fields of an exam definition and bumps its
// version.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	exam.Version++
	const query = `UPDATE exams SET title = :title, state = :state, version = :version, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// SetState flips the administrative active toggle on a definition.
func (r *ExamRepository) SetState(ctx context.Context, id string, state int) error {
	const query = `UPDATE exams SET state = $2, version = version + 1, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("set exam state: %w", err)
	}
	return nil
}

// ListInstances returns exam instances matching the filter.
func (r *ExamRepository) ListInstances(ctx context.Context, filter models.ExamInstanceFilter) ([]models.ExamInstance, error) {
	query := `SELECT id, exam_id, course_id, student_id, version, scheduled_date, taken_date, score, required, created_at, updated_at FROM exam_instances WHERE 1=1`
	var args []interface{}
	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.ExamID != "" {
		query += fmt.Sprintf(" AND exam_id = $%d", len(args)+1)
		args = append(args, filter.ExamID)
	}
	if filter.Required != nil {
		query += fmt.Sprintf(" AND required = $%d", len(args)+1)
		args = append(args, *filter.Required)
	}
	query += " ORDER BY created_at ASC"

	var instances []models.ExamInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, fmt.Errorf("list exam instances: %w", err)
	}
	return instances, nil
}

// FindInstanceByID returns an exam instance by identifier.
func (r *ExamRepository) FindInstanceByID(ctx context.Context, id string) (*models.ExamInstance, error) {
	const query = `SELECT id, exam_id, course_id, student_id, version, scheduled_date, taken_date, score, required, created_at, updated_at FROM exam_instances WHERE id = $1 LIMIT 1`
	var instance models.ExamInstance
	if err := r.db.GetContext(ctx, &instance, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam instance by id: %w", err)
	}
	return &instance, nil
}

// CreateInstance inserts a new exam instance.
func (r *ExamRepository) CreateInstance(ctx context.Context, instance *models.ExamInstance) error {
	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}
	instance.UpdatedAt = now
	const query = `INSERT INTO exam_instances (id, exam_id, course_id, student_id, version, scheduled_date, taken_date, score, required, created_at, updated_at) VALUES (:id, :exam_id, :course_id, :student_id, :version, :scheduled_date, :taken_date, :score, :required, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instance); err != nil {
		return fmt.Errorf("create exam instance: %w", err)
	}
	return nil
}

// UpdateInstance updates scheduling and result fields of an instance and
// bumps its version.
func (r *ExamRepository) UpdateInstance(ctx context.Context, instance *models.ExamInstance) error {
	instance.UpdatedAt = time.Now().UTC()
	instance.Version++
	const query = `UPDATE exam_instances SET scheduled_date = :scheduled_date, taken_date = :taken_date, score = :score, required = :required, version = :version, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, instance); err != nil {
		return fmt.Errorf("update exam instance: %w", err)
	}
	return nil
}

// ListInstancesForStudents returns instances keyed by student ID for the
// given course. Roster grading uses this to avoid per-student queries.
func (r *ExamRepository) ListInstancesForStudents(ctx context.Context, courseID string, studentIDs []string) (map[string][]models.ExamInstance, error) {
	if len(studentIDs) == 0 {
		return map[string][]models.ExamInstance{}, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, len(studentIDs)+1)
	args[0] = courseID
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args[i+1] = id
	}
	query := fmt.Sprintf(`SELECT id, exam_id, course_id, student_id, version, scheduled_date, taken_date, score, required, created_at, updated_at
        FROM exam_instances
        WHERE course_id = $1 AND student_id IN (%s)
        ORDER BY created_at ASC`, strings.Join(placeholders, ","))

	var instances []models.ExamInstance
	if err := r.db.SelectContext(ctx, &instances, query, args...); err != nil {
		return nil, fmt.Errorf("list instances for students: %w", err)
	}

	grouped := make(map[string][]models.ExamInstance, len(studentIDs))
	for _, inst := range instances {
		grouped[inst.StudentID] = append(grouped[inst.StudentID], inst)
	}
	return grouped, nil
}
