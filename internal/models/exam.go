package models

import "time"

// ExamStatus classifies one exam instance's lifecycle.
type ExamStatus string

const (
	// ExamStatusUpcoming means the scheduled date is still in the future.
	ExamStatusUpcoming ExamStatus = "UPCOMING"
	// ExamStatusCompleted means the exam is due and a score is recorded.
	ExamStatusCompleted ExamStatus = "COMPLETED"
	// ExamStatusMissing means the exam was never scheduled nor attempted.
	ExamStatusMissing ExamStatus = "MISSING"
	// ExamStatusPending means the scheduled date has passed but no score
	// has been recorded yet.
	ExamStatusPending ExamStatus = "PENDING"
)

// Exam definition states. The integer flag mirrors the persisted admin
// toggle: 1 is active, anything else is inactive.
const (
	ExamStateActive   = 1
	ExamStateInactive = 0
)

// Exam is the instructor-authored exam definition for a course. The State
// toggle is administrative and entirely separate from the per-instance
// lifecycle status.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	State     int       `db:"state" json:"state"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamInstance is one student's attempt at one exam in one course.
// ScheduledDate, TakenDate and Score are all optional; their absence is a
// meaningful state consumed by the status classifier, not an error.
type ExamInstance struct {
	ID            string     `db:"id" json:"id"`
	ExamID        string     `db:"exam_id" json:"exam_id"`
	CourseID      string     `db:"course_id" json:"course_id"`
	StudentID     string     `db:"student_id" json:"student_id"`
	Version       int        `db:"version" json:"version"`
	ScheduledDate *time.Time `db:"scheduled_date" json:"scheduled_date,omitempty"`
	TakenDate     *time.Time `db:"taken_date" json:"taken_date,omitempty"`
	Score         *string    `db:"score" json:"score,omitempty"`
	Required      bool       `db:"required" json:"required"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// ExamFilter narrows exam definition listings.
type ExamFilter struct {
	CourseID string
	State    *int
	Page     int
	PageSize int
}

// ExamInstanceFilter narrows exam instance listings.
type ExamInstanceFilter struct {
	CourseID  string
	StudentID string
	ExamID    string
	Required  *bool
	Page      int
	PageSize  int
}

// ExamInstanceView pairs an instance with its classified status for
// dashboard and backlog responses.
type ExamInstanceView struct {
	ExamInstance
	Status ExamStatus `json:"status"`
}
