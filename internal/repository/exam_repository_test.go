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

func newExamRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExamRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exams")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	exam := &models.Exam{
		CourseID: "course-1",
		Title:    "Midterm",
		State:    models.ExamStateActive,
		Version:  1,
	}
	require.NoError(t, repo.Create(context.Background(), exam))
	require.NotEmpty(t, exam.ID)

	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "state", "version", "created_at", "updated_at"}).
		AddRow(exam.ID, exam.CourseID, exam.Title, exam.State, exam.Version, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_id, title, state, version")).
		WithArgs(exam.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Equal(t, exam.Title, found.Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListInstancesFilters(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	scheduled := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "exam_id", "course_id", "student_id", "version", "scheduled_date", "taken_date", "score", "required", "created_at", "updated_at"}).
		AddRow("inst-1", "exam-1", "course-1", "student-1", 1, scheduled, nil, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_id, course_id, student_id, version")).
		WithArgs("course-1", "student-1").
		WillReturnRows(rows)

	instances, err := repo.ListInstances(context.Background(), models.ExamInstanceFilter{
		CourseID:  "course-1",
		StudentID: "student-1",
	})
	require.NoError(t, err)
	require.Len(t, instances, 1)
	require.Equal(t, "inst-1", instances[0].ID)
	require.Nil(t, instances[0].Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositorySetStateBumpsVersion(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET state = $2, version = version + 1")).
		WithArgs("exam-1", models.ExamStateInactive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetState(context.Background(), "exam-1", models.ExamStateInactive))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpdateInstanceBumpsVersion(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exam_instances SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	score := "92"
	instance := &models.ExamInstance{ID: "inst-1", Version: 3, Score: &score, Required: true}
	require.NoError(t, repo.UpdateInstance(context.Background(), instance))
	require.Equal(t, 4, instance.Version)
	require.NoError(t, mock.ExpectationsWereMet())
}
