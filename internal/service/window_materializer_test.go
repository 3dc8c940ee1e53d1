package service

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/examdash/exam-dash-api/internal/models"
)

func testWindow(loc *time.Location) models.TestWindow {
	return models.TestWindow{
		ID:        "w1",
		CourseID:  "c1",
		Title:     "Midterm window",
		StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, loc),
		EndDate:   time.Date(2025, 1, 10, 0, 0, 0, 0, loc),
		StartTime: "09:00",
		EndTime:   "10:00",
		Weekdays:  types.JSONText(`{"monday":true,"wednesday":true}`),
		IsActive:  true,
	}
}

func TestMaterializeWindowEmptyMaskProducesNoSlots(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)

	w.Weekdays = types.JSONText(`{}`)
	assert.Empty(t, MaterializeWindow(w, loc, zap.NewNop()))

	w.Weekdays = types.JSONText(`{"monday":false,"tuesday":false}`)
	assert.Empty(t, MaterializeWindow(w, loc, zap.NewNop()))

	w.Weekdays = nil
	assert.Empty(t, MaterializeWindow(w, loc, zap.NewNop()))
}

func TestMaterializeWindowSingleDay(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)
	// 2025-01-06 is a Monday.
	w.EndDate = w.StartDate

	slots := MaterializeWindow(w, loc, zap.NewNop())
	require.Len(t, slots, 1)
	assert.Equal(t, "w1:2025-01-06", slots[0].ID)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 0, 0, 0, loc), slots[0].StartAt)
	assert.Equal(t, time.Date(2025, 1, 6, 10, 0, 0, 0, loc), slots[0].EndAt)
	assert.Equal(t, "c1", slots[0].CourseID)
	assert.True(t, slots[0].IsActive)
}

func TestMaterializeWindowHonorsExceptions(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)
	// Monday 01-06 and Wednesday 01-08 qualify; the exception removes the
	// Wednesday, leaving exactly one slot.
	w.Exceptions = types.JSONText(`["2025-01-08"]`)

	slots := MaterializeWindow(w, loc, zap.NewNop())
	require.Len(t, slots, 1)
	assert.Equal(t, "w1:2025-01-06", slots[0].ID)
	assert.Equal(t, time.Date(2025, 1, 6, 9, 0, 0, 0, loc), slots[0].StartAt)
	assert.Equal(t, time.Date(2025, 1, 6, 10, 0, 0, 0, loc), slots[0].EndAt)
}

func TestMaterializeWindowIgnoresOutOfRangeExceptions(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)
	w.Exceptions = types.JSONText(`["2024-12-30","2025-02-03"]`)

	slots := MaterializeWindow(w, loc, zap.NewNop())
	// Both qualifying days survive; the out-of-range exceptions are noise.
	require.Len(t, slots, 2)
	assert.Equal(t, "w1:2025-01-06", slots[0].ID)
	assert.Equal(t, "w1:2025-01-08", slots[1].ID)
}

func TestMaterializeWindowIdempotent(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)
	w.Exceptions = types.JSONText(`["2025-01-08"]`)

	first := MaterializeWindow(w, loc, zap.NewNop())
	second := MaterializeWindow(w, loc, zap.NewNop())
	assert.Equal(t, first, second)
}

func TestMaterializeWindowOrderedAscending(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)
	w.EndDate = time.Date(2025, 2, 28, 0, 0, 0, 0, loc)

	slots := MaterializeWindow(w, loc, zap.NewNop())
	require.NotEmpty(t, slots)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].StartAt.Before(slots[i].StartAt))
	}
}

func TestMaterializeWindowMalformedRecurrenceDegrades(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)

	w.Weekdays = types.JSONText(`not-json`)
	assert.Empty(t, MaterializeWindow(w, loc, zap.NewNop()))

	w = testWindow(loc)
	w.Exceptions = types.JSONText(`{"broken":`)
	slots := MaterializeWindow(w, loc, zap.NewNop())
	// Malformed exceptions degrade to none skipped.
	assert.Len(t, slots, 2)
}

func TestMaterializeWindowSpansDSTWithoutDayShift(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)
	// The US spring-forward transition happens 2025-03-09.
	w.StartDate = time.Date(2025, 3, 3, 0, 0, 0, 0, loc)
	w.EndDate = time.Date(2025, 3, 14, 0, 0, 0, 0, loc)
	w.Weekdays = types.JSONText(`{"monday":true}`)

	slots := MaterializeWindow(w, loc, zap.NewNop())
	require.Len(t, slots, 2)
	assert.Equal(t, "w1:2025-03-03", slots[0].ID)
	assert.Equal(t, "w1:2025-03-10", slots[1].ID)
	assert.Equal(t, 9, slots[1].StartAt.Hour())
}

func TestMaterializeWindowUTCBoundsKeepFinalDay(t *testing.T) {
	loc := pacific(t)
	w := testWindow(loc)
	// Stored bounds come back from the database as UTC midnight. Converting
	// those instants into Pacific time would walk Jan 5 through Jan 9 and
	// silently drop the inclusive final day.
	w.StartDate = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	w.EndDate = time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	w.Weekdays = types.JSONText(`{"friday":true}`)

	slots := MaterializeWindow(w, loc, zap.NewNop())
	require.Len(t, slots, 1)
	assert.Equal(t, "w1:2025-01-10", slots[0].ID)
	assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, loc), slots[0].StartAt)
}

func TestMaterializeWindowsMergesAndColors(t *testing.T) {
	loc := pacific(t)
	w1 := testWindow(loc)
	w2 := testWindow(loc)
	w2.ID = "w2"
	w2.Weekdays = types.JSONText(`{"tuesday":true}`)

	slots := MaterializeWindows([]models.TestWindow{w1, w2}, loc, zap.NewNop())
	require.Len(t, slots, 3)
	// Merged ordering: Mon 01-06 (w1), Tue 01-07 (w2), Wed 01-08 (w1).
	assert.Equal(t, "w1:2025-01-06", slots[0].ID)
	assert.Equal(t, "w2:2025-01-07", slots[1].ID)
	assert.Equal(t, "w1:2025-01-08", slots[2].ID)
	assert.Equal(t, SlotColor(0), slots[0].Color)
	assert.Equal(t, SlotColor(1), slots[1].Color)
	assert.NotEqual(t, slots[0].Color, slots[1].Color)
}
