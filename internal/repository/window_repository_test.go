package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
)

func newWindowRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWindowRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newWindowRepoMock(t)
	defer cleanup()

	repo := NewWindowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO test_windows")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	window := &models.TestWindow{
		CourseID:   "course-1",
		Title:      "Weekly Quiz Window",
		StartDate:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		StartTime:  "09:00",
		EndTime:    "10:00",
		Weekdays:   types.JSONText(`{"monday":true,"wednesday":true}`),
		Exceptions: types.JSONText(`[]`),
		IsActive:   true,
	}
	require.NoError(t, repo.Create(context.Background(), window))
	require.NotEmpty(t, window.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowRepositoryListActiveByCourse(t *testing.T) {
	db, mock, cleanup := newWindowRepoMock(t)
	defer cleanup()

	repo := NewWindowRepository(db)
	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "description", "start_date", "end_date", "start_time", "end_time", "weekdays", "exceptions", "is_active", "created_at", "updated_at"}).
		AddRow("win-1", "course-1", "Quiz Window", "", time.Now(), time.Now(), "09:00", "10:00", []byte(`{"monday":true}`), []byte(`[]`), true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("is_active = TRUE")).
		WithArgs("course-1").
		WillReturnRows(rows)

	windows, err := repo.ListActiveByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.True(t, windows[0].IsActive)
	require.JSONEq(t, `{"monday":true}`, string(windows[0].Weekdays))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWindowRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newWindowRepoMock(t)
	defer cleanup()

	repo := NewWindowRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM test_windows WHERE id = $1")).
		WithArgs("win-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "win-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
