package models

// LetterGrade is a course letter grade from the canonical ordered set.
type LetterGrade string

// Canonical letter grades, best to worst. Report contexts use the coarser
// {A,B,C,D,F} set; CoarseGrade collapses plus/minus grades onto it.
const (
	GradeA      LetterGrade = "A"
	GradeAMinus LetterGrade = "A-"
	GradeBPlus  LetterGrade = "B+"
	GradeB      LetterGrade = "B"
	GradeBMinus LetterGrade = "B-"
	GradeCPlus  LetterGrade = "C+"
	GradeC      LetterGrade = "C"
	GradeD      LetterGrade = "D"
	GradeF      LetterGrade = "F"
)

// LetterGradeOrder lists every grade best to worst. The evaluator scans
// strategy levels in exactly this order; evaluating out of order can award
// a lower grade than the student earned.
var LetterGradeOrder = []LetterGrade{
	GradeA, GradeAMinus, GradeBPlus, GradeB, GradeBMinus, GradeCPlus, GradeC, GradeD, GradeF,
}

// CoarseGrade maps a letter onto the reduced {A,B,C,D,F} reporting set.
func CoarseGrade(g LetterGrade) LetterGrade {
	switch g {
	case GradeA, GradeAMinus:
		return GradeA
	case GradeBPlus, GradeB, GradeBMinus:
		return GradeB
	case GradeCPlus, GradeC:
		return GradeC
	case GradeD:
		return GradeD
	default:
		return GradeF
	}
}

// PassCategory buckets a letter grade for instructor-facing views.
type PassCategory string

const (
	CategoryPassing PassCategory = "PASSING"
	CategoryFailing PassCategory = "FAILING"
)

// GradeLevelPolicy describes the evidence threshold for a single letter
// grade. RequiredA is the historical field name for the minimum count of
// completed required exams; it applies to every level, not just "A".
type GradeLevelPolicy struct {
	Grade       LetterGrade `json:"grade"`
	Total       int         `json:"total"`
	RequiredA   int         `json:"requiredA"`
	Optional    []string    `json:"optional,omitempty"`
	AllOptional bool        `json:"allOptional,omitempty"`
}

// GradeStrategy is a per-course grading policy. Levels are evaluated from
// the highest grade to the lowest; the first satisfied level is awarded.
type GradeStrategy struct {
	TotalExams    int                `json:"totalExams"`
	RequiredExams []string           `json:"requiredExams,omitempty"`
	OptionalExams []string           `json:"optionalExams,omitempty"`
	Levels        []GradeLevelPolicy `json:"levels"`
}

// GradeResult is the outcome of evaluating a student's course evidence.
type GradeResult struct {
	CourseID       string       `json:"course_id"`
	StudentID      string       `json:"student_id"`
	Grade          LetterGrade  `json:"grade"`
	Category       PassCategory `json:"category"`
	CompletedExams int          `json:"completed_exams"`
	TotalExams     int          `json:"total_exams"`
	// StrategyDegraded is set when the persisted strategy blob failed to
	// parse and the threshold fallback was used instead.
	StrategyDegraded bool `json:"strategy_degraded,omitempty"`
}

// RosterRow is one student's line in an instructor roster.
type RosterRow struct {
	StudentID   string       `json:"student_id"`
	StudentName string       `json:"student_name"`
	Grade       LetterGrade  `json:"grade"`
	Category    PassCategory `json:"category"`
	Completed   int          `json:"completed"`
	Pending     int          `json:"pending"`
}

// GradeDistribution counts coarse letters across a roster.
type GradeDistribution map[LetterGrade]int

// CourseRoster aggregates per-student grades for a course.
type CourseRoster struct {
	CourseID         string            `json:"course_id"`
	Rows             []RosterRow       `json:"rows"`
	Distribution     GradeDistribution `json:"distribution"`
	PassingCount     int               `json:"passing_count"`
	FailingCount     int               `json:"failing_count"`
	StrategyDegraded bool              `json:"strategy_degraded,omitempty"`
}
