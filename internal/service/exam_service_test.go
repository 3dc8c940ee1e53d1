package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

type mockExamRepo struct {
	exams     map[string]*models.Exam
	instances map[string]*models.ExamInstance
	listed    []models.ExamInstance
	created   []*models.ExamInstance
	updated   []*models.ExamInstance
	states    map[string]int
}

func newMockExamRepo() *mockExamRepo {
	return &mockExamRepo{
		exams:     map[string]*models.Exam{},
		instances: map[string]*models.ExamInstance{},
		states:    map[string]int{},
	}
}

func (m *mockExamRepo) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	var out []models.Exam
	for _, e := range m.exams {
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	exam, ok := m.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *exam
	return &copy, nil
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = "exam-" + exam.Title
	}
	m.exams[exam.ID] = exam
	return nil
}

func (m *mockExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	m.exams[exam.ID] = exam
	return nil
}

func (m *mockExamRepo) SetState(ctx context.Context, id string, state int) error {
	m.states[id] = state
	if exam, ok := m.exams[id]; ok {
		exam.State = state
	}
	return nil
}

func (m *mockExamRepo) ListInstances(ctx context.Context, filter models.ExamInstanceFilter) ([]models.ExamInstance, error) {
	return m.listed, nil
}

func (m *mockExamRepo) FindInstanceByID(ctx context.Context, id string) (*models.ExamInstance, error) {
	inst, ok := m.instances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *inst
	return &copy, nil
}

func (m *mockExamRepo) CreateInstance(ctx context.Context, instance *models.ExamInstance) error {
	if instance.ID == "" {
		instance.ID = "inst-1"
	}
	m.instances[instance.ID] = instance
	m.created = append(m.created, instance)
	return nil
}

func (m *mockExamRepo) UpdateInstance(ctx context.Context, instance *models.ExamInstance) error {
	m.instances[instance.ID] = instance
	m.updated = append(m.updated, instance)
	return nil
}

func newExamService(repo *mockExamRepo) *ExamService {
	svc := NewExamService(repo, nil, time.UTC, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestExamServiceCreateInstanceRejectsInactiveDefinition(t *testing.T) {
	repo := newMockExamRepo()
	repo.exams["exam-1"] = &models.Exam{ID: "exam-1", CourseID: "course-1", Title: "Final", State: models.ExamStateInactive, Version: 2}

	svc := newExamService(repo)
	_, err := svc.CreateInstance(context.Background(), CreateInstanceRequest{ExamID: "exam-1", StudentID: "student-1"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrExamInactive.Code))
	require.Empty(t, repo.created)
}

func TestExamServiceCreateInstanceClassifiesResult(t *testing.T) {
	repo := newMockExamRepo()
	repo.exams["exam-1"] = &models.Exam{ID: "exam-1", CourseID: "course-1", Title: "Final", State: models.ExamStateActive, Version: 1}

	svc := newExamService(repo)
	future := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	view, err := svc.CreateInstance(context.Background(), CreateInstanceRequest{
		ExamID:        "exam-1",
		StudentID:     "student-1",
		ScheduledDate: &future,
		Required:      true,
	})
	require.NoError(t, err)
	require.Equal(t, models.ExamStatusUpcoming, view.Status)
	require.Equal(t, "course-1", view.CourseID)
}

func TestExamServiceScheduleRejectsScoredInstance(t *testing.T) {
	repo := newMockExamRepo()
	score := "A"
	repo.instances["inst-1"] = &models.ExamInstance{ID: "inst-1", CourseID: "course-1", Score: &score}

	svc := newExamService(repo)
	_, err := svc.ScheduleInstance(context.Background(), "inst-1", ScheduleInstanceRequest{
		ScheduledDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed.Code))
	require.Empty(t, repo.updated)
}

func TestExamServiceRecordResultNormalizesScore(t *testing.T) {
	repo := newMockExamRepo()
	scheduled := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	repo.instances["inst-1"] = &models.ExamInstance{ID: "inst-1", CourseID: "course-1", ScheduledDate: &scheduled}

	svc := newExamService(repo)
	view, err := svc.RecordResult(context.Background(), "inst-1", RecordResultRequest{
		TakenDate: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Score:     "87",
	})
	require.NoError(t, err)
	require.NotNil(t, view.Score)
	require.Equal(t, "B", *view.Score)
	require.Equal(t, models.ExamStatusCompleted, view.Status)
}

func TestExamServiceRecordResultRejectsBadScore(t *testing.T) {
	repo := newMockExamRepo()
	repo.instances["inst-1"] = &models.ExamInstance{ID: "inst-1", CourseID: "course-1"}

	svc := newExamService(repo)
	_, err := svc.RecordResult(context.Background(), "inst-1", RecordResultRequest{
		TakenDate: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Score:     "142",
	})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	require.Empty(t, repo.updated)
}

func TestExamServiceBacklogFiltersByStatus(t *testing.T) {
	repo := newMockExamRepo()
	past := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	score := "A"
	repo.listed = []models.ExamInstance{
		{ID: "i1", CourseID: "course-1", ScheduledDate: &past},
		{ID: "i2", CourseID: "course-1", Score: &score},
		{ID: "i3", CourseID: "course-2"},
	}

	svc := newExamService(repo)
	views, err := svc.Backlog(context.Background(), "student-1", "", nil)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "i1", views[0].ID)
	require.Equal(t, models.ExamStatusPending, views[0].Status)
	require.Equal(t, "i3", views[1].ID)
	require.Equal(t, models.ExamStatusMissing, views[1].Status)
}
