package models

import "time"

// Course represents one course offering within a term. GradeStrategy holds
// the instructor-authored grading policy as a raw JSON blob; it is parsed
// lazily by the grade evaluator and a malformed blob never blocks reads.
type Course struct {
	ID            string    `db:"id" json:"id"`
	TermID        string    `db:"term_id" json:"term_id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	InstructorID  string    `db:"instructor_id" json:"instructor_id"`
	GradeStrategy *string   `db:"grade_strategy" json:"grade_strategy,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	TermID       string
	InstructorID string
	Active       *bool
	Search       string
	Page         int
	PageSize     int
}

// Student represents an enrolled student profile.
type Student struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter narrows student listings.
type StudentFilter struct {
	CourseID string
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
