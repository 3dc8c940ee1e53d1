package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
)

type mockWindowRepo struct {
	windows     map[string]*models.TestWindow
	activeCalls int
}

func newMockWindowRepo() *mockWindowRepo {
	return &mockWindowRepo{windows: map[string]*models.TestWindow{}}
}

func (m *mockWindowRepo) List(ctx context.Context, filter models.TestWindowFilter) ([]models.TestWindow, error) {
	var out []models.TestWindow
	for _, w := range m.windows {
		out = append(out, *w)
	}
	return out, nil
}

func (m *mockWindowRepo) FindByID(ctx context.Context, id string) (*models.TestWindow, error) {
	w, ok := m.windows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *w
	return &copy, nil
}

func (m *mockWindowRepo) ListActiveByCourse(ctx context.Context, courseID string) ([]models.TestWindow, error) {
	m.activeCalls++
	var out []models.TestWindow
	for _, w := range m.windows {
		if w.CourseID == courseID && w.IsActive {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (m *mockWindowRepo) Create(ctx context.Context, window *models.TestWindow) error {
	if window.ID == "" {
		window.ID = "win-1"
	}
	m.windows[window.ID] = window
	return nil
}

func (m *mockWindowRepo) Update(ctx context.Context, window *models.TestWindow) error {
	m.windows[window.ID] = window
	return nil
}

func (m *mockWindowRepo) Delete(ctx context.Context, id string) error {
	delete(m.windows, id)
	return nil
}

func quizWindow(id string) *models.TestWindow {
	return &models.TestWindow{
		ID:         id,
		CourseID:   "course-1",
		Title:      "Quiz Window",
		StartDate:  time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		StartTime:  "09:00",
		EndTime:    "10:00",
		Weekdays:   types.JSONText(`{"monday":true,"wednesday":true}`),
		Exceptions: types.JSONText(`[]`),
		IsActive:   true,
	}
}

func TestWindowServiceWindowSlots(t *testing.T) {
	repo := newMockWindowRepo()
	repo.windows["win-1"] = quizWindow("win-1")

	svc := NewWindowService(repo, nil, nil, time.UTC, WindowServiceConfig{SlotCacheTTL: time.Minute}, nil, nil)
	slots, err := svc.WindowSlots(context.Background(), "win-1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	require.Equal(t, "win-1:2025-01-06", slots[0].ID)
	require.Equal(t, "win-1:2025-01-08", slots[1].ID)
}

func TestWindowServiceInactiveWindowYieldsNoSlots(t *testing.T) {
	repo := newMockWindowRepo()
	w := quizWindow("win-1")
	w.IsActive = false
	repo.windows["win-1"] = w

	svc := NewWindowService(repo, nil, nil, time.UTC, WindowServiceConfig{SlotCacheTTL: time.Minute}, nil, nil)
	slots, err := svc.WindowSlots(context.Background(), "win-1")
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestWindowServiceCourseSlotsCached(t *testing.T) {
	repo := newMockWindowRepo()
	repo.windows["win-1"] = quizWindow("win-1")
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)

	svc := NewWindowService(repo, cache, nil, time.UTC, WindowServiceConfig{SlotCacheTTL: time.Minute}, nil, nil)
	first, err := svc.CourseSlots(context.Background(), "course-1")
	require.NoError(t, err)
	second, err := svc.CourseSlots(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	require.Equal(t, 1, repo.activeCalls)
}

func TestWindowServiceCourseSlotsHorizon(t *testing.T) {
	repo := newMockWindowRepo()
	repo.windows["win-1"] = quizWindow("win-1")

	svc := NewWindowService(repo, nil, nil, time.UTC, WindowServiceConfig{
		SlotCacheTTL: time.Minute,
		SlotHorizon:  24 * time.Hour,
	}, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) }

	// The window yields slots on Jan 6 and Jan 8; a one day horizon keeps
	// only the first.
	slots, err := svc.CourseSlots(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, "win-1:2025-01-06", slots[0].ID)
}

func TestWindowServiceUpdateInvalidatesSlotCache(t *testing.T) {
	repo := newMockWindowRepo()
	repo.windows["win-1"] = quizWindow("win-1")
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)

	svc := NewWindowService(repo, cache, nil, time.UTC, WindowServiceConfig{SlotCacheTTL: time.Minute}, nil, nil)
	_, err := svc.CourseSlots(context.Background(), "course-1")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), "win-1", SaveWindowRequest{
		CourseID:  "course-1",
		Title:     "Quiz Window",
		StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "10:00",
		Weekdays:  map[string]bool{"monday": true},
	})
	require.NoError(t, err)

	_, err = svc.CourseSlots(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, 2, repo.activeCalls)
}

func TestWindowServiceCreateRejectsInvertedRange(t *testing.T) {
	repo := newMockWindowRepo()
	svc := NewWindowService(repo, nil, nil, time.UTC, WindowServiceConfig{SlotCacheTTL: time.Minute}, nil, nil)

	_, err := svc.Create(context.Background(), SaveWindowRequest{
		CourseID:  "course-1",
		Title:     "Bad Window",
		StartDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	require.Error(t, err)
}
