package service

import (
	"time"

	"github.com/examdash/exam-dash-api/internal/models"
)

// The three classifiers below answer three different questions and must not
// be conflated: per-instance lifecycle, per-definition admin toggle, and
// pass/fail bucketing of an awarded letter.

// ClassifyInstance maps an exam instance's scheduled date and score onto its
// lifecycle status. Comparison is date-only: "now" is an instant and is
// viewed in the provided zone, while the scheduled date is a calendar day
// whose components are kept as stored. Converting the scheduled date's
// instant instead would shift a UTC-midnight value to the previous day in
// any western zone.
func ClassifyInstance(instance models.ExamInstance, now time.Time, loc *time.Location) models.ExamStatus {
	hasScore := instance.Score != nil && *instance.Score != ""

	if instance.ScheduledDate != nil {
		if calendarDay(*instance.ScheduledDate, loc).After(dayOf(now, loc)) {
			return models.ExamStatusUpcoming
		}
		if hasScore {
			return models.ExamStatusCompleted
		}
		return models.ExamStatusPending
	}

	if hasScore {
		return models.ExamStatusCompleted
	}
	return models.ExamStatusMissing
}

// DefinitionActive reports whether an exam definition is administratively
// offered. Only the exact active flag value counts; any other state value is
// treated as inactive.
func DefinitionActive(state int) bool {
	return state == models.ExamStateActive
}

// PassFailCategory buckets a letter grade for instructor-facing views:
// coarse A/B/C are passing, D/F failing.
func PassFailCategory(grade models.LetterGrade) models.PassCategory {
	switch models.CoarseGrade(grade) {
	case models.GradeA, models.GradeB, models.GradeC:
		return models.CategoryPassing
	default:
		return models.CategoryFailing
	}
}

// SelectNeedingSchedule applies the instance classifier to every exam and
// keeps those whose status is in the filter set, optionally restricted to a
// single course (matched by id). Input order is preserved and the input
// slice is never mutated. An empty status filter defaults to the scheduling
// backlog statuses: pending, upcoming and missing.
func SelectNeedingSchedule(instances []models.ExamInstance, statuses []models.ExamStatus, courseID string, now time.Time, loc *time.Location) []models.ExamInstanceView {
	if len(statuses) == 0 {
		statuses = []models.ExamStatus{models.ExamStatusPending, models.ExamStatusUpcoming, models.ExamStatusMissing}
	}
	wanted := make(map[models.ExamStatus]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}

	selected := make([]models.ExamInstanceView, 0, len(instances))
	for _, instance := range instances {
		if courseID != "" && instance.CourseID != courseID {
			continue
		}
		status := ClassifyInstance(instance, now, loc)
		if _, ok := wanted[status]; !ok {
			continue
		}
		selected = append(selected, models.ExamInstanceView{ExamInstance: instance, Status: status})
	}
	return selected
}

// dayOf collapses an instant to midnight of the calendar day it falls on
// when viewed in loc. Use for wall-clock values like "now".
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// calendarDay rebuilds a date-only value at midnight in loc, reading the
// year/month/day in the value's own zone. Date-only fields arrive as
// midnight in whatever zone encoded them (usually UTC); viewing that
// instant in loc would move it across the day boundary.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
