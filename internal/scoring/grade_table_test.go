package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/necta-results-api/internal/models"
)

func marks(v float64) *float64 { return &v }

func TestGradeAndPointsBoundaries(t *testing.T) {
	table := DefaultGradeTable()

	tests := []struct {
		name   string
		marks  float64
		level  models.EducationLevel
		grade  models.Grade
		points int
	}{
		{"o-level top", 100, models.LevelOrdinary, models.GradeA, 1},
		{"o-level A floor", 75, models.LevelOrdinary, models.GradeA, 1},
		{"o-level B", 74.99, models.LevelOrdinary, models.GradeB, 2},
		{"o-level B floor", 65, models.LevelOrdinary, models.GradeB, 2},
		{"o-level C floor", 45, models.LevelOrdinary, models.GradeC, 3},
		{"o-level D below C", 44.5, models.LevelOrdinary, models.GradeD, 4},
		{"o-level D", 32, models.LevelOrdinary, models.GradeD, 4},
		{"o-level D floor", 30, models.LevelOrdinary, models.GradeD, 4},
		{"o-level F", 29.99, models.LevelOrdinary, models.GradeF, 5},
		{"o-level zero", 0, models.LevelOrdinary, models.GradeF, 5},
		{"a-level A", 85, models.LevelAdvanced, models.GradeA, 1},
		{"a-level A floor", 80, models.LevelAdvanced, models.GradeA, 1},
		{"a-level B", 70, models.LevelAdvanced, models.GradeB, 2},
		{"a-level C", 60, models.LevelAdvanced, models.GradeC, 3},
		{"a-level D", 50, models.LevelAdvanced, models.GradeD, 4},
		{"a-level E", 40, models.LevelAdvanced, models.GradeE, 5},
		{"a-level S", 35, models.LevelAdvanced, models.GradeS, 6},
		{"a-level F", 34.9, models.LevelAdvanced, models.GradeF, 7},
		{"above range", 120, models.LevelAdvanced, models.GradeA, 1},
		{"below range", -5, models.LevelOrdinary, models.GradeF, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grade, points, err := table.GradeAndPoints(marks(tt.marks), tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.grade, grade)
			assert.Equal(t, tt.points, points)
		})
	}
}

func TestGradeAndPointsNoResult(t *testing.T) {
	table := DefaultGradeTable()

	grade, points, err := table.GradeAndPoints(nil, models.LevelAdvanced)
	require.NoError(t, err)
	assert.Equal(t, models.GradeNone, grade)
	assert.Zero(t, points)

	grade, points, err = table.GradeAndPoints(marks(math.NaN()), models.LevelOrdinary)
	require.NoError(t, err)
	assert.Equal(t, models.GradeNone, grade)
	assert.Zero(t, points)
}

func TestGradeAndPointsUnknownLevel(t *testing.T) {
	_, _, err := DefaultGradeTable().GradeAndPoints(marks(50), "PRIMARY")
	require.ErrorIs(t, err, ErrUnknownLevel)
}

func TestGradeAndPointsMonotonic(t *testing.T) {
	table := DefaultGradeTable()
	for _, level := range []models.EducationLevel{models.LevelOrdinary, models.LevelAdvanced} {
		prev := 0
		for m := 100.0; m >= 0; m -= 0.5 {
			_, points, err := table.GradeAndPoints(marks(m), level)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, points, prev, "level %s marks %.1f", level, m)
			prev = points
		}
	}
}

func TestOLevelCBoundaryIsConfigurable(t *testing.T) {
	table, err := NewGradeTable(50)
	require.NoError(t, err)

	grade, points, err := table.GradeAndPoints(marks(47), models.LevelOrdinary)
	require.NoError(t, err)
	assert.Equal(t, models.GradeD, grade)
	assert.Equal(t, 4, points)

	_, err = NewGradeTable(70)
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestGradeResultRemarksAndOverride(t *testing.T) {
	table := DefaultGradeTable()

	graded, err := table.GradeResult(models.SubjectResult{SubjectID: "phy", Marks: marks(85), EducationLevel: models.LevelAdvanced})
	require.NoError(t, err)
	assert.Equal(t, models.GradeA, graded.Grade)
	assert.Equal(t, 1, graded.Points)
	assert.Equal(t, "Excellent", graded.Remarks)

	overridden, err := table.GradeResult(models.SubjectResult{
		SubjectID:      "phy",
		Marks:          marks(85),
		EducationLevel: models.LevelAdvanced,
		Override:       &models.GradeOverride{Grade: models.GradeC, Points: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, models.GradeC, overridden.Grade)
	assert.Equal(t, 3, overridden.Points)

	regraded, err := table.Regrade(overridden)
	require.NoError(t, err)
	assert.Equal(t, graded.Grade, regraded.Grade)
	assert.Equal(t, graded.Points, regraded.Points)
	assert.Nil(t, regraded.Override)
}

func TestRegradeRoundTrip(t *testing.T) {
	table := DefaultGradeTable()
	for _, level := range []models.EducationLevel{models.LevelOrdinary, models.LevelAdvanced} {
		for m := 0.0; m <= 100; m += 0.25 {
			first, err := table.GradeResult(models.SubjectResult{Marks: marks(m), EducationLevel: level})
			require.NoError(t, err)
			second, err := table.Regrade(first)
			require.NoError(t, err)
			require.Equal(t, first.Grade, second.Grade)
			require.Equal(t, first.Points, second.Points)
		}
	}
}

func TestGradeResultTreatsInfiniteMarksAsAbsent(t *testing.T) {
	graded, err := DefaultGradeTable().GradeResult(models.SubjectResult{Marks: marks(math.Inf(1)), EducationLevel: models.LevelOrdinary})
	require.NoError(t, err)
	assert.Nil(t, graded.Marks)
	assert.Equal(t, models.GradeNone, graded.Grade)
	assert.Equal(t, "No Result", graded.Remarks)
}
