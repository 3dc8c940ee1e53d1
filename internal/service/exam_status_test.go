package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
)

func pacific(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func datePtr(loc *time.Location, y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return &v
}

func strPtr(s string) *string { return &s }

func TestClassifyInstance(t *testing.T) {
	loc := pacific(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)

	tests := []struct {
		name     string
		instance models.ExamInstance
		want     models.ExamStatus
	}{
		{
			name:     "future scheduled date is upcoming regardless of score",
			instance: models.ExamInstance{ScheduledDate: datePtr(loc, 2025, 7, 1), Score: strPtr("A")},
			want:     models.ExamStatusUpcoming,
		},
		{
			name:     "past scheduled date with score is completed",
			instance: models.ExamInstance{ScheduledDate: datePtr(loc, 2025, 1, 1), Score: strPtr("B")},
			want:     models.ExamStatusCompleted,
		},
		{
			name:     "today with score is completed, not upcoming",
			instance: models.ExamInstance{ScheduledDate: datePtr(loc, 2025, 6, 1), Score: strPtr("C")},
			want:     models.ExamStatusCompleted,
		},
		{
			name:     "past scheduled date without score is pending",
			instance: models.ExamInstance{ScheduledDate: datePtr(loc, 2025, 1, 1)},
			want:     models.ExamStatusPending,
		},
		{
			name:     "never scheduled and never scored is missing",
			instance: models.ExamInstance{},
			want:     models.ExamStatusMissing,
		},
		{
			name:     "unscheduled but scored is completed",
			instance: models.ExamInstance{Score: strPtr("A")},
			want:     models.ExamStatusCompleted,
		},
		{
			name:     "empty score string counts as no score",
			instance: models.ExamInstance{ScheduledDate: datePtr(loc, 2025, 1, 1), Score: strPtr("")},
			want:     models.ExamStatusPending,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyInstance(tc.instance, now, loc))
		})
	}
}

func TestClassifyInstanceDateOnlyComparison(t *testing.T) {
	loc := pacific(t)
	// Scheduled late on the same calendar day: time-of-day must not make
	// the instance upcoming.
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	scheduled := time.Date(2025, 6, 1, 23, 30, 0, 0, loc)
	instance := models.ExamInstance{ScheduledDate: &scheduled}

	assert.Equal(t, models.ExamStatusPending, ClassifyInstance(instance, now, loc))
}

func TestClassifyInstanceKeepsStoredCalendarDay(t *testing.T) {
	loc := pacific(t)
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, loc)

	// Date-only values arrive as UTC midnight. Viewing that instant in
	// Pacific time lands on the previous evening; the stored calendar day
	// must win, so an exam scheduled for tomorrow is upcoming.
	tomorrow := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	instance := models.ExamInstance{ScheduledDate: &tomorrow}
	assert.Equal(t, models.ExamStatusUpcoming, ClassifyInstance(instance, now, loc))

	// Same stored day as now is not in the future.
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	instance.ScheduledDate = &today
	assert.Equal(t, models.ExamStatusPending, ClassifyInstance(instance, now, loc))
}

func TestDefinitionActive(t *testing.T) {
	assert.True(t, DefinitionActive(1))
	assert.False(t, DefinitionActive(0))
	assert.False(t, DefinitionActive(2))
	assert.False(t, DefinitionActive(-1))
}

func TestPassFailCategory(t *testing.T) {
	passing := []models.LetterGrade{models.GradeA, models.GradeAMinus, models.GradeBPlus, models.GradeB, models.GradeBMinus, models.GradeCPlus, models.GradeC}
	for _, g := range passing {
		assert.Equal(t, models.CategoryPassing, PassFailCategory(g), string(g))
	}
	assert.Equal(t, models.CategoryFailing, PassFailCategory(models.GradeD))
	assert.Equal(t, models.CategoryFailing, PassFailCategory(models.GradeF))
}

func TestSelectNeedingSchedule(t *testing.T) {
	loc := pacific(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)

	instances := []models.ExamInstance{
		{ID: "i1", CourseID: "c1", ScheduledDate: datePtr(loc, 2025, 7, 1)},                    // upcoming
		{ID: "i2", CourseID: "c1", ScheduledDate: datePtr(loc, 2025, 1, 1), Score: strPtr("A")}, // completed
		{ID: "i3", CourseID: "c2", ScheduledDate: datePtr(loc, 2025, 1, 1)},                    // pending
		{ID: "i4", CourseID: "c1"}, // missing
	}

	t.Run("default filter keeps the scheduling backlog in input order", func(t *testing.T) {
		got := SelectNeedingSchedule(instances, nil, "", now, loc)
		require.Len(t, got, 3)
		assert.Equal(t, "i1", got[0].ID)
		assert.Equal(t, "i3", got[1].ID)
		assert.Equal(t, "i4", got[2].ID)
	})

	t.Run("course filter matches identity", func(t *testing.T) {
		got := SelectNeedingSchedule(instances, nil, "c1", now, loc)
		require.Len(t, got, 2)
		assert.Equal(t, "i1", got[0].ID)
		assert.Equal(t, "i4", got[1].ID)
	})

	t.Run("explicit status filter", func(t *testing.T) {
		got := SelectNeedingSchedule(instances, []models.ExamStatus{models.ExamStatusCompleted}, "", now, loc)
		require.Len(t, got, 1)
		assert.Equal(t, "i2", got[0].ID)
		assert.Equal(t, models.ExamStatusCompleted, got[0].Status)
	})

	t.Run("does not mutate input", func(t *testing.T) {
		before := instances[0]
		_ = SelectNeedingSchedule(instances, nil, "", now, loc)
		assert.Equal(t, before, instances[0])
	})
}
