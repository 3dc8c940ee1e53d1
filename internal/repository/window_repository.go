package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/examdash/exam-dash-api/internal/models"
)

// WindowRepository handles test window persistence.
type WindowRepository struct {
	db *sqlx.DB
}

// NewWindowRepository creates a new window repository.
func NewWindowRepository(db *sqlx.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

// List returns test windows matching the filter.
func (r *WindowRepository) List(ctx context.Context, filter models.TestWindowFilter) ([]models.TestWindow, error) {
	query := `SELECT id, course_id, title, description, start_date, end_date, start_time, end_time, weekdays, exceptions, is_active, created_at, updated_at FROM test_windows WHERE 1=1`
	var args []interface{}
	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.Active != nil {
		query += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	query += " ORDER BY start_date ASC"

	var windows []models.TestWindow
	if err := r.db.SelectContext(ctx, &windows, query, args...); err != nil {
		return nil, fmt.Errorf("list test windows: %w", err)
	}
	return windows, nil
}

// FindByID returns a test window by identifier.
func (r *WindowRepository) FindByID(ctx context.Context, id string) (*models.TestWindow, error) {
	const query = `SELECT id, course_id, title, description, start_date, end_date, start_time, end_time, weekdays, exceptions, is_active, created_at, updated_at FROM test_windows WHERE id = $1 LIMIT 1`
	var window models.TestWindow
	if err := r.db.GetContext(ctx, &window, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find test window by id: %w", err)
	}
	return &window, nil
}

// ListActiveByCourse returns only active windows for a course, ordered by
// start date. Slot feeds materialize from this set.
func (r *WindowRepository) ListActiveByCourse(ctx context.Context, courseID string) ([]models.TestWindow, error) {
	const query = `SELECT id, course_id, title, description, start_date, end_date, start_time, end_time, weekdays, exceptions, is_active, created_at, updated_at FROM test_windows WHERE course_id = $1 AND is_active = TRUE ORDER BY start_date ASC`
	var windows []models.TestWindow
	if err := r.db.SelectContext(ctx, &windows, query, courseID); err != nil {
		return nil, fmt.Errorf("list active windows by course: %w", err)
	}
	return windows, nil
}

// Create inserts a new test window.
func (r *WindowRepository) Create(ctx context.Context, window *models.TestWindow) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if window.CreatedAt.IsZero() {
		window.CreatedAt = now
	}
	window.UpdatedAt = now
	const query = `INSERT INTO test_windows (id, course_id, title, description, start_date, end_date, start_time, end_time, weekdays, exceptions, is_active, created_at, updated_at) VALUES (:id, :course_id, :title, :description, :start_date, :end_date, :start_time, :end_time, :weekdays, :exceptions, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("create test window: %w", err)
	}
	return nil
}

// Update updates mutable fields of a test window.
func (r *WindowRepository) Update(ctx context.Context, window *models.TestWindow) error {
	window.UpdatedAt = time.Now().UTC()
	const query = `UPDATE test_windows SET title = :title, description = :description, start_date = :start_date, end_date = :end_date, start_time = :start_time, end_time = :end_time, weekdays = :weekdays, exceptions = :exceptions, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("update test window: %w", err)
	}
	return nil
}

// Delete removes a test window. Slots are never persisted so there is
// nothing to cascade; cached slot feeds are invalidated by the service.
func (r *WindowRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM test_windows WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete test window: %w", err)
	}
	return nil
}
