package models

import "time"

// DashboardSummary answers the dashboard's central question for one
// student: what still needs scheduling, when can it be scheduled, and what
// grade does the current evidence justify.
type DashboardSummary struct {
	StudentID    string             `json:"student_id"`
	StatusCounts map[ExamStatus]int `json:"status_counts"`
	Backlog      []ExamInstanceView `json:"backlog"`
	NextSlots    []CalendarSlot     `json:"next_slots"`
	Grades       []GradeResult      `json:"grades"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// SystemMetrics is a lightweight aggregate snapshot for ops consumption.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
