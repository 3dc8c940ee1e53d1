package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = map[string][]byte{}
	return nil
}

type mockInstanceLister struct {
	views   []models.ExamInstanceView
	backlog []models.ExamInstanceView
	calls   int
}

func (m *mockInstanceLister) ListInstances(ctx context.Context, filter models.ExamInstanceFilter) ([]models.ExamInstanceView, error) {
	m.calls++
	return m.views, nil
}

func (m *mockInstanceLister) Backlog(ctx context.Context, studentID, courseID string, statuses []models.ExamStatus) ([]models.ExamInstanceView, error) {
	return m.backlog, nil
}

type mockSlotProvider struct {
	slots []models.CalendarSlot
}

func (m *mockSlotProvider) CourseSlots(ctx context.Context, courseID string) ([]models.CalendarSlot, error) {
	return m.slots, nil
}

type mockGradeProvider struct {
	result *models.GradeResult
}

func (m *mockGradeProvider) CourseGrade(ctx context.Context, courseID, studentID string) (*models.GradeResult, error) {
	return m.result, nil
}

func dashboardFixture() (*mockInstanceLister, *mockSlotProvider, *mockGradeProvider) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	instances := &mockInstanceLister{
		views: []models.ExamInstanceView{
			{ExamInstance: models.ExamInstance{ID: "i1", CourseID: "c1"}, Status: models.ExamStatusMissing},
			{ExamInstance: models.ExamInstance{ID: "i2", CourseID: "c1"}, Status: models.ExamStatusCompleted},
		},
		backlog: []models.ExamInstanceView{
			{ExamInstance: models.ExamInstance{ID: "i1", CourseID: "c1"}, Status: models.ExamStatusMissing},
		},
	}
	slots := &mockSlotProvider{slots: []models.CalendarSlot{
		{ID: "w1:2025-06-20", StartAt: now.Add(5 * 24 * time.Hour)},
		{ID: "w1:2025-06-16", StartAt: now.Add(24 * time.Hour)},
		{ID: "w1:2025-06-01", StartAt: now.Add(-14 * 24 * time.Hour)},
	}}
	grades := &mockGradeProvider{result: &models.GradeResult{
		CourseID: "c1", StudentID: "student-1", Grade: models.GradeB, Category: models.CategoryPassing,
	}}
	return instances, slots, grades
}

func TestDashboardSummaryComposition(t *testing.T) {
	instances, slots, grades := dashboardFixture()
	svc := NewDashboardService(instances, slots, grades, nil, DashboardServiceConfig{}, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	summary, err := svc.Summary(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.StatusCounts[models.ExamStatusMissing])
	require.Equal(t, 1, summary.StatusCounts[models.ExamStatusCompleted])
	require.Len(t, summary.Backlog, 1)
	require.Len(t, summary.Grades, 1)

	// Past slots are dropped and the rest sorted soonest first.
	require.Len(t, summary.NextSlots, 2)
	require.Equal(t, "w1:2025-06-16", summary.NextSlots[0].ID)
	require.Equal(t, "w1:2025-06-20", summary.NextSlots[1].ID)
}

func TestDashboardSummaryUsesCache(t *testing.T) {
	instances, slots, grades := dashboardFixture()
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	svc := NewDashboardService(instances, slots, grades, cache, DashboardServiceConfig{CacheTTL: time.Minute}, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	first, err := svc.Summary(context.Background(), "student-1")
	require.NoError(t, err)
	second, err := svc.Summary(context.Background(), "student-1")
	require.NoError(t, err)
	require.Equal(t, first.StatusCounts, second.StatusCounts)
	require.Equal(t, 1, instances.calls)
}
