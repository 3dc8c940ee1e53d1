package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/examdash/exam-dash-api/internal/models"
)

// slotPalette is cycled by window index when materializing multiple windows.
// Purely presentational; the materialization contract does not depend on it.
var slotPalette = []string{"#2563eb", "#16a34a", "#d97706", "#dc2626", "#7c3aed", "#0891b2"}

// SlotColor returns the palette color for the window at the given index.
func SlotColor(index int) string {
	if index < 0 {
		index = -index
	}
	return slotPalette[index%len(slotPalette)]
}

// MaterializeWindow expands a recurring test window into its concrete,
// time-bounded slots, ordered by date ascending. The walk reconstructs each
// date from explicit year/month/day components in loc; building dates from
// strings or adding durations across DST boundaries shifts days off by one,
// which is exactly the bug this avoids.
//
// Malformed weekday masks or exception lists degrade to empty (zero slots /
// no exclusions) with a diagnostic log; they never fail the call. Exception
// dates outside the window range are ignored.
func MaterializeWindow(w models.TestWindow, loc *time.Location, logger *zap.Logger) []models.CalendarSlot {
	mask := parseWeekdayMask(w.Weekdays, w.ID, logger)
	if len(mask) == 0 {
		return nil
	}
	exceptions := parseExceptionDates(w.Exceptions, w.ID, logger)

	startHour, startMin := parseClock(w.StartTime, 0, 0, w.ID, logger)
	endHour, endMin := parseClock(w.EndTime, 23, 59, w.ID, logger)

	first := calendarDay(w.StartDate, loc)
	last := calendarDay(w.EndDate, loc)

	var slots []models.CalendarSlot
	for day := first; !day.After(last); {
		y, m, d := day.Date()
		iso := fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
		if mask[strings.ToLower(day.Weekday().String())] {
			if _, excluded := exceptions[iso]; !excluded {
				slots = append(slots, models.CalendarSlot{
					ID:       w.ID + ":" + iso,
					WindowID: w.ID,
					CourseID: w.CourseID,
					Title:    w.Title,
					StartAt:  time.Date(y, m, d, startHour, startMin, 0, 0, loc),
					EndAt:    time.Date(y, m, d, endHour, endMin, 0, 0, loc),
					IsActive: w.IsActive,
				})
			}
		}
		day = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	return slots
}

// MaterializeWindows expands every window independently and merges the
// results ordered by start time. Colors are assigned by window position.
// No cross-window conflict detection happens here; overlapping slots are
// the caller's concern.
func MaterializeWindows(windows []models.TestWindow, loc *time.Location, logger *zap.Logger) []models.CalendarSlot {
	var merged []models.CalendarSlot
	for i, w := range windows {
		color := SlotColor(i)
		for _, slot := range MaterializeWindow(w, loc, logger) {
			slot.Color = color
			merged = append(merged, slot)
		}
	}
	sort.SliceStable(merged, func(a, b int) bool {
		if !merged[a].StartAt.Equal(merged[b].StartAt) {
			return merged[a].StartAt.Before(merged[b].StartAt)
		}
		return merged[a].WindowID < merged[b].WindowID
	})
	return merged
}

func parseWeekdayMask(raw types.JSONText, windowID string, logger *zap.Logger) map[string]bool {
	if len(raw) == 0 {
		return nil
	}
	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err != nil {
		if logger != nil {
			logger.Warn("unparseable weekday mask, treating as empty", zap.String("window_id", windowID), zap.Error(err))
		}
		return nil
	}
	mask := make(map[string]bool, len(flags))
	for name, active := range flags {
		if active {
			mask[strings.ToLower(name)] = true
		}
	}
	return mask
}

func parseExceptionDates(raw types.JSONText, windowID string, logger *zap.Logger) map[string]struct{} {
	if len(raw) == 0 {
		return nil
	}
	var dates []string
	if err := json.Unmarshal(raw, &dates); err != nil {
		if logger != nil {
			logger.Warn("unparseable exception list, treating as empty", zap.String("window_id", windowID), zap.Error(err))
		}
		return nil
	}
	set := make(map[string]struct{}, len(dates))
	for _, date := range dates {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			if logger != nil {
				logger.Warn("skipping malformed exception date", zap.String("window_id", windowID), zap.String("date", date))
			}
			continue
		}
		set[date] = struct{}{}
	}
	return set
}

func parseClock(raw string, fallbackHour, fallbackMin int, windowID string, logger *zap.Logger) (int, int) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		if logger != nil && raw != "" {
			logger.Warn("unparseable window time", zap.String("window_id", windowID), zap.String("time", raw))
		}
		return fallbackHour, fallbackMin
	}
	return t.Hour(), t.Minute()
}
