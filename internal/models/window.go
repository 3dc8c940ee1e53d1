package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TestWindow is a recurring availability definition for taking exams in a
// course. Weekdays holds a JSON object keyed by lowercase weekday name with
// boolean active flags; Exceptions holds a JSON array of YYYY-MM-DD dates on
// which the recurrence does not apply. Both blobs are parsed tolerantly: a
// malformed value degrades to empty rather than failing the request.
type TestWindow struct {
	ID          string         `db:"id" json:"id"`
	CourseID    string         `db:"course_id" json:"course_id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	StartDate   time.Time      `db:"start_date" json:"start_date"`
	EndDate     time.Time      `db:"end_date" json:"end_date"`
	StartTime   string         `db:"start_time" json:"start_time"`
	EndTime     string         `db:"end_time" json:"end_time"`
	Weekdays    types.JSONText `db:"weekdays" json:"weekdays"`
	Exceptions  types.JSONText `db:"exceptions" json:"exceptions"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// TestWindowFilter narrows window listings.
type TestWindowFilter struct {
	CourseID string
	Active   *bool
	Page     int
	PageSize int
}

// CalendarSlot is one concrete bookable slot produced by materializing a
// test window. ID is deterministic (window id + ISO date) so repeated
// materialization of an unchanged window yields identical slot sets.
type CalendarSlot struct {
	ID       string    `json:"id"`
	WindowID string    `json:"window_id"`
	CourseID string    `json:"course_id"`
	Title    string    `json:"title"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	IsActive bool      `json:"is_active"`
	Color    string    `json:"color"`
}
