package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := sqlmock.NewRows([]string{"id", "term_id", "code", "name", "instructor_id", "grade_strategy", "active", "created_at", "updated_at"}).
		AddRow("course-1", "term-1", "MATH101", "Algebra", "instr-1", nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, term_id, code, name, instructor_id, grade_strategy")).
		WithArgs("term-1", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("term-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	active := true
	courses, total, err := repo.List(context.Background(), models.CourseFilter{TermID: "term-1", Active: &active})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, courses, 1)
	require.Nil(t, courses[0].GradeStrategy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateGradeStrategy(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	strategy := `{"total_exams":5,"levels":[{"grade":"A","total":5}]}`
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET grade_strategy = $2")).
		WithArgs("course-1", &strategy, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateGradeStrategy(context.Background(), "course-1", &strategy))

	// Clearing the policy writes a NULL blob.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET grade_strategy = $2")).
		WithArgs("course-1", (*string)(nil), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateGradeStrategy(context.Background(), "course-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
