package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/necta-results-api/internal/models"
)

func graded(t *testing.T, subjectID, name string, m *float64, principal bool, level models.EducationLevel) models.GradedResult {
	t.Helper()
	g, err := DefaultGradeTable().GradeResult(models.SubjectResult{
		StudentID:      "stu-1",
		SubjectID:      subjectID,
		SubjectName:    name,
		Marks:          m,
		IsPrincipal:    principal,
		EducationLevel: level,
	})
	require.NoError(t, err)
	return g
}

func advancedPolicy() LevelPolicy {
	return DefaultConfig().Advanced
}

func TestSelectBestThreePrincipals(t *testing.T) {
	results := []models.GradedResult{
		graded(t, "phy", "Physics", marks(85), true, models.LevelAdvanced),   // A 1
		graded(t, "che", "Chemistry", marks(72), true, models.LevelAdvanced), // B 2
		graded(t, "bio", "Biology", marks(61), true, models.LevelAdvanced),   // C 3
		graded(t, "gs", "General Studies", marks(95), true, models.LevelAdvanced),
		graded(t, "bam", "Basic Applied Mathematics", marks(90), false, models.LevelAdvanced),
	}

	sel := SelectBest(results, nil, advancedPolicy())
	require.True(t, sel.Computed)
	assert.False(t, sel.UsedFallback)
	total, ok := sel.Points.Value()
	require.True(t, ok)
	assert.Equal(t, 6, total)
	require.Len(t, sel.Results, 3)
	assert.Equal(t, []string{"phy", "che", "bio"}, []string{sel.Results[0].SubjectID, sel.Results[1].SubjectID, sel.Results[2].SubjectID})

	division, err := DivisionFromPoints(sel.Points, models.LevelAdvanced)
	require.NoError(t, err)
	assert.Equal(t, models.DivisionI, division)
}

func TestSelectBestTakesLowestPoints(t *testing.T) {
	results := []models.GradedResult{
		graded(t, "his", "History", marks(38), true, models.LevelAdvanced),   // S 6
		graded(t, "geo", "Geography", marks(55), true, models.LevelAdvanced), // D 4
		graded(t, "kis", "Kiswahili", marks(81), true, models.LevelAdvanced), // A 1
		graded(t, "eng", "English", marks(64), true, models.LevelAdvanced),   // C 3
	}
	sel := SelectBest(results, nil, advancedPolicy())
	require.True(t, sel.Computed)
	total, _ := sel.Points.Value()
	assert.Equal(t, 8, total)
}

func TestSelectBestInsufficientSubjects(t *testing.T) {
	results := []models.GradedResult{
		graded(t, "phy", "Physics", marks(85), true, models.LevelAdvanced),
		graded(t, "che", "Chemistry", marks(20), true, models.LevelAdvanced),
		graded(t, "bio", "Biology", nil, true, models.LevelAdvanced),
	}
	sel := SelectBest(results, nil, advancedPolicy())
	assert.False(t, sel.Computed)
	assert.False(t, sel.Points.Computed())
	assert.Equal(t, "-", sel.Points.String())
	assert.Empty(t, sel.Results)
}

func TestSelectBestDropsZeroMarksAndExcludedSubjects(t *testing.T) {
	results := []models.GradedResult{
		graded(t, "phy", "Physics", marks(85), true, models.LevelAdvanced),
		graded(t, "che", "Chemistry", marks(0), true, models.LevelAdvanced),
		graded(t, "gs", "GENERAL STUDIES", marks(90), true, models.LevelAdvanced),
		graded(t, "bio", "Biology", marks(70), true, models.LevelAdvanced),
	}
	sel := SelectBest(results, nil, advancedPolicy())
	assert.False(t, sel.Computed)
}

func TestSelectBestCallerPrincipalListWins(t *testing.T) {
	results := []models.GradedResult{
		graded(t, "phy", "Physics", marks(85), false, models.LevelAdvanced),
		graded(t, "che", "Chemistry", marks(72), false, models.LevelAdvanced),
		graded(t, "mat", "Advanced Mathematics", marks(66), false, models.LevelAdvanced),
		graded(t, "bio", "Biology", marks(90), true, models.LevelAdvanced),
	}
	sel := SelectBest(results, []string{"phy", "che", "mat"}, advancedPolicy())
	require.True(t, sel.Computed)
	total, _ := sel.Points.Value()
	assert.Equal(t, 6, total)
	for _, r := range sel.Results {
		assert.NotEqual(t, "bio", r.SubjectID)
	}
}

func TestSelectBestFallbackWithoutPrincipalInformation(t *testing.T) {
	results := []models.GradedResult{
		graded(t, "phy", "Physics", marks(85), false, models.LevelAdvanced),
		graded(t, "che", "Chemistry", marks(72), false, models.LevelAdvanced),
		graded(t, "mat", "Advanced Mathematics", marks(45), false, models.LevelAdvanced),
		graded(t, "bio", "Biology", marks(66), false, models.LevelAdvanced),
	}
	sel := SelectBest(results, nil, advancedPolicy())
	require.True(t, sel.Computed)
	assert.True(t, sel.UsedFallback)
	total, _ := sel.Points.Value()
	assert.Equal(t, 6, total)
}

func TestSelectBestOrdinaryCountsEverySubject(t *testing.T) {
	policy := DefaultConfig().Ordinary
	var results []models.GradedResult
	for _, id := range []string{"civ", "his", "geo", "kis", "eng", "phy", "che", "bio", "mat"} {
		results = append(results, graded(t, id, id, marks(80), false, models.LevelOrdinary))
	}
	sel := SelectBest(results, nil, policy)
	require.True(t, sel.Computed)
	assert.False(t, sel.UsedFallback)
	total, _ := sel.Points.Value()
	assert.Equal(t, 9, total)

	sel = SelectBest(results[:6], nil, policy)
	assert.False(t, sel.Computed)
}

func TestSelectBestIsOrderIndependent(t *testing.T) {
	results := []models.GradedResult{
		graded(t, "a", "A", marks(81), true, models.LevelAdvanced),
		graded(t, "b", "B", marks(81), true, models.LevelAdvanced),
		graded(t, "c", "C", marks(90), true, models.LevelAdvanced),
		graded(t, "d", "D", marks(72), true, models.LevelAdvanced),
	}
	reversed := []models.GradedResult{results[3], results[2], results[1], results[0]}

	first := SelectBest(results, nil, advancedPolicy())
	second := SelectBest(reversed, nil, advancedPolicy())
	require.Equal(t, len(first.Results), len(second.Results))
	for i := range first.Results {
		assert.Equal(t, first.Results[i].SubjectID, second.Results[i].SubjectID)
	}
	assert.Equal(t, "c", first.Results[0].SubjectID)
}
