package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
)

func TestFilterSlotRange(t *testing.T) {
	slots := []models.CalendarSlot{
		{ID: "win-1:2025-01-06"},
		{ID: "win-1:2025-01-08"},
		{ID: "win-2:2025-01-10"},
	}

	kept, err := filterSlotRange(slots, "2025-01-07", "")
	require.NoError(t, err)
	assert.Len(t, kept, 2)
	assert.Equal(t, "win-1:2025-01-08", kept[0].ID)

	kept, err = filterSlotRange(slots, "2025-01-07", "2025-01-09")
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	kept, err = filterSlotRange(slots, "", "")
	require.NoError(t, err)
	assert.Len(t, kept, 3)

	_, err = filterSlotRange(slots, "next tuesday", "")
	assert.Error(t, err)
}
