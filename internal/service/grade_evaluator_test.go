package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdash/exam-dash-api/internal/models"
	appErrors "github.com/examdash/exam-dash-api/pkg/errors"
)

func completedExam(examID string, required bool) models.ExamInstance {
	score := "A"
	return models.ExamInstance{ExamID: examID, Required: required, Score: &score}
}

func sampleStrategy() *models.GradeStrategy {
	return &models.GradeStrategy{
		TotalExams:    5,
		RequiredExams: []string{"e1", "e2", "e3"},
		OptionalExams: []string{"o1", "o2"},
		Levels: []models.GradeLevelPolicy{
			{Grade: models.GradeA, Total: 5, RequiredA: 3, Optional: []string{"o1", "o2"}, AllOptional: true},
			{Grade: models.GradeB, Total: 4, RequiredA: 3, Optional: []string{"o1", "o2"}},
			{Grade: models.GradeC, Total: 3, RequiredA: 2},
			{Grade: models.GradeD, Total: 1, RequiredA: 0},
		},
	}
}

func TestParseGradeStrategy(t *testing.T) {
	t.Run("empty blob means no strategy", func(t *testing.T) {
		strategy, err := ParseGradeStrategy("")
		require.NoError(t, err)
		assert.Nil(t, strategy)
	})

	t.Run("malformed blob returns a recoverable typed error", func(t *testing.T) {
		strategy, err := ParseGradeStrategy("{not json")
		assert.Nil(t, strategy)
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrStrategyInvalid.Code))
	})

	t.Run("missing levels is invalid", func(t *testing.T) {
		_, err := ParseGradeStrategy(`{"totalExams":3}`)
		require.Error(t, err)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrStrategyInvalid.Code))
	})

	t.Run("unknown letter is invalid", func(t *testing.T) {
		_, err := ParseGradeStrategy(`{"levels":[{"grade":"Z","total":1}]}`)
		require.Error(t, err)
	})

	t.Run("levels are reordered best to worst", func(t *testing.T) {
		strategy, err := ParseGradeStrategy(`{"levels":[{"grade":"C","total":2},{"grade":"A","total":5},{"grade":"B","total":3}]}`)
		require.NoError(t, err)
		require.Len(t, strategy.Levels, 3)
		assert.Equal(t, models.GradeA, strategy.Levels[0].Grade)
		assert.Equal(t, models.GradeB, strategy.Levels[1].Grade)
		assert.Equal(t, models.GradeC, strategy.Levels[2].Grade)
	})
}

func TestEvaluateGradeEmptyResults(t *testing.T) {
	assert.Equal(t, models.GradeF, EvaluateGrade(nil, sampleStrategy()))
	assert.Equal(t, models.GradeF, EvaluateGrade([]models.ExamInstance{}, sampleStrategy()))
	assert.Equal(t, models.GradeF, EvaluateGrade(nil, nil))
}

func TestEvaluateGradeHigherLevelWins(t *testing.T) {
	// Four completed exams, three required, one optional: satisfies both
	// the B and the C level. Best-to-worst scanning must award B.
	instances := []models.ExamInstance{
		completedExam("e1", true),
		completedExam("e2", true),
		completedExam("e3", true),
		completedExam("o1", false),
	}
	assert.Equal(t, models.GradeB, EvaluateGrade(instances, sampleStrategy()))
}

func TestEvaluateGradeAllOptionalCondition(t *testing.T) {
	instances := []models.ExamInstance{
		completedExam("e1", true),
		completedExam("e2", true),
		completedExam("e3", true),
		completedExam("o1", false),
		completedExam("o2", false),
	}
	// Five completed, all required done, both optionals done: level A.
	assert.Equal(t, models.GradeA, EvaluateGrade(instances, sampleStrategy()))

	// Swap one optional completion for a second attempt at a required
	// exam: totals still reach five but allOptional fails, so B applies.
	instances[4] = completedExam("e1", true)
	assert.Equal(t, models.GradeB, EvaluateGrade(instances, sampleStrategy()))
}

func TestEvaluateGradeRequiredCount(t *testing.T) {
	// Three completed but only one required: the C level (requiredA 2)
	// fails, D (total 1) holds.
	instances := []models.ExamInstance{
		completedExam("e1", true),
		completedExam("o1", false),
		completedExam("o2", false),
	}
	assert.Equal(t, models.GradeD, EvaluateGrade(instances, sampleStrategy()))
}

func TestEvaluateGradeIncompleteExamsDoNotCount(t *testing.T) {
	pending := models.ExamInstance{ExamID: "e1", Required: true}
	empty := ""
	blank := models.ExamInstance{ExamID: "e2", Required: true, Score: &empty}
	instances := []models.ExamInstance{pending, blank, completedExam("e3", true)}

	// Only one exam actually carries evidence.
	assert.Equal(t, models.GradeD, EvaluateGrade(instances, sampleStrategy()))
}

func TestEvaluateGradeFallback(t *testing.T) {
	score := func(s string) models.ExamInstance { v := s; return models.ExamInstance{Score: &v} }

	tests := []struct {
		name      string
		instances []models.ExamInstance
		want      models.LetterGrade
	}{
		{"no exams", nil, models.GradeF},
		{"numeric percentages average", []models.ExamInstance{score("95"), score("85")}, models.GradeA},
		{"letter scores average", []models.ExamInstance{score("C"), score("C")}, models.GradeC},
		{"mixed encodings", []models.ExamInstance{score("95"), score("D")}, models.GradeB},
		{"low evidence", []models.ExamInstance{score("40")}, models.GradeF},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateGrade(tc.instances, nil))
		})
	}
}

func TestNormalizeScore(t *testing.T) {
	letter, err := NormalizeScore("87.5")
	require.NoError(t, err)
	assert.Equal(t, models.GradeB, letter)

	letter, err = NormalizeScore("b+")
	require.NoError(t, err)
	assert.Equal(t, models.GradeBPlus, letter)

	_, err = NormalizeScore("excellent")
	require.Error(t, err)

	_, err = NormalizeScore("120")
	require.Error(t, err)

	_, err = NormalizeScore("")
	require.Error(t, err)
}

func TestCoarseGrade(t *testing.T) {
	assert.Equal(t, models.GradeA, models.CoarseGrade(models.GradeAMinus))
	assert.Equal(t, models.GradeB, models.CoarseGrade(models.GradeBPlus))
	assert.Equal(t, models.GradeB, models.CoarseGrade(models.GradeBMinus))
	assert.Equal(t, models.GradeC, models.CoarseGrade(models.GradeCPlus))
	assert.Equal(t, models.GradeD, models.CoarseGrade(models.GradeD))
	assert.Equal(t, models.GradeF, models.CoarseGrade(models.GradeF))
}
