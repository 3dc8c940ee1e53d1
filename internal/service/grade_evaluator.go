package service

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

// gradeRank maps letters onto their canonical best-to-worst position.
var gradeRank = func() map[models.LetterGrade]int {
	m := make(map[models.LetterGrade]int, len(models.LetterGradeOrder))
	for i, g := range models.LetterGradeOrder {
		m[g] = i
	}
	return m
}()

// ParseGradeStrategy decodes a persisted strategy blob. A missing blob is
// not an error (nil strategy selects the threshold fallback); a malformed
// one returns ErrStrategyInvalid so the caller can degrade gracefully
// instead of failing the request. Levels are reordered into the canonical
// best-to-worst sequence regardless of authoring order, because evaluation
// order is correctness-critical.
func ParseGradeStrategy(raw string) (*models.GradeStrategy, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var strategy models.GradeStrategy
	if err := json.Unmarshal([]byte(trimmed), &strategy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStrategyInvalid.Code, appErrors.ErrStrategyInvalid.Status, "grade strategy is malformed")
	}
	if len(strategy.Levels) == 0 {
		return nil, appErrors.Clone(appErrors.ErrStrategyInvalid, "grade strategy defines no levels")
	}
	for _, level := range strategy.Levels {
		if _, known := gradeRank[level.Grade]; !known {
			return nil, appErrors.Clone(appErrors.ErrStrategyInvalid, "grade strategy names unknown grade "+string(level.Grade))
		}
	}
	sort.SliceStable(strategy.Levels, func(a, b int) bool {
		return gradeRank[strategy.Levels[a].Grade] < gradeRank[strategy.Levels[b].Grade]
	})
	return &strategy, nil
}

// EvaluateGrade determines the letter grade the completed-exam evidence
// justifies. With a strategy, levels are scanned best to worst and the
// first level whose total, required and optional conditions all hold wins;
// without one (or with zero completed exams) the threshold fallback
// applies. Always returns a grade; a student with no exams earns F, never
// an error.
func EvaluateGrade(instances []models.ExamInstance, strategy *models.GradeStrategy) models.LetterGrade {
	completed := make([]models.ExamInstance, 0, len(instances))
	completedExams := make(map[string]struct{})
	requiredDone := 0
	for _, instance := range instances {
		if instance.Score == nil || *instance.Score == "" {
			continue
		}
		completed = append(completed, instance)
		completedExams[instance.ExamID] = struct{}{}
		if instance.Required {
			requiredDone++
		}
	}

	if strategy == nil {
		return fallbackGrade(completed)
	}
	if len(completed) == 0 {
		return models.GradeF
	}

	for _, level := range strategy.Levels {
		if len(completed) < level.Total {
			continue
		}
		if requiredDone < level.RequiredA {
			continue
		}
		if !optionalSatisfied(level, completedExams) {
			continue
		}
		return level.Grade
	}
	return models.GradeF
}

// optionalSatisfied checks a level's optional-exam condition: with
// allOptional every listed exam must be completed, otherwise any one
// suffices. Levels listing no optional exams impose no condition.
func optionalSatisfied(level models.GradeLevelPolicy, completed map[string]struct{}) bool {
	if len(level.Optional) == 0 {
		return true
	}
	if level.AllOptional {
		for _, exam := range level.Optional {
			if _, ok := completed[exam]; !ok {
				return false
			}
		}
		return true
	}
	for _, exam := range level.Optional {
		if _, ok := completed[exam]; ok {
			return true
		}
	}
	return false
}

// fallbackGrade is the no-strategy mode: average the numeric weight of each
// completed score and map it through the shared percentage thresholds.
func fallbackGrade(completed []models.ExamInstance) models.LetterGrade {
	if len(completed) == 0 {
		return models.GradeF
	}
	sum := 0.0
	counted := 0
	for _, instance := range completed {
		value, ok := scoreValue(*instance.Score)
		if !ok {
			continue
		}
		sum += value
		counted++
	}
	if counted == 0 {
		return models.GradeF
	}
	return LetterFromPercent(sum / float64(counted))
}

// scoreValue converts a stored score into a comparable percentage. Letters
// map onto representative midpoints; numeric strings pass through.
func scoreValue(score string) (float64, bool) {
	if value, err := strconv.ParseFloat(strings.TrimSpace(score), 64); err == nil {
		return value, true
	}
	switch models.LetterGrade(strings.ToUpper(strings.TrimSpace(score))) {
	case models.GradeA:
		return 95, true
	case models.GradeAMinus:
		return 91, true
	case models.GradeBPlus:
		return 88, true
	case models.GradeB:
		return 85, true
	case models.GradeBMinus:
		return 81, true
	case models.GradeCPlus:
		return 78, true
	case models.GradeC:
		return 75, true
	case models.GradeD:
		return 65, true
	case models.GradeF:
		return 50, true
	default:
		return 0, false
	}
}

// LetterFromPercent maps a numeric percentage onto the coarse letter set.
func LetterFromPercent(percent float64) models.LetterGrade {
	switch {
	case percent >= 90:
		return models.GradeA
	case percent >= 80:
		return models.GradeB
	case percent >= 70:
		return models.GradeC
	case percent >= 60:
		return models.GradeD
	default:
		return models.GradeF
	}
}

// NormalizeScore converts a boundary score, which may arrive as a letter or
// a numeric percentage, into the canonical letter encoding.
func NormalizeScore(raw string) (models.LetterGrade, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "score is empty")
	}
	if value, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if value < 0 || value > 100 {
			return "", appErrors.Clone(appErrors.ErrValidation, "numeric score must be between 0 and 100")
		}
		return LetterFromPercent(value), nil
	}
	letter := models.LetterGrade(strings.ToUpper(trimmed))
	if _, known := gradeRank[letter]; !known {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown score encoding "+trimmed)
	}
	return letter, nil
}
