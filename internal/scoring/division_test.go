package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/necta-results-api/internal/models"
)

func TestDivisionFromPointsAdvanced(t *testing.T) {
	tests := []struct {
		points   int
		expected models.Division
	}{
		{3, models.DivisionI},
		{6, models.DivisionI},
		{9, models.DivisionI},
		{10, models.DivisionII},
		{12, models.DivisionII},
		{13, models.DivisionIII},
		{17, models.DivisionIII},
		{18, models.DivisionIV},
		{19, models.DivisionIV},
		{20, models.DivisionZero},
		{21, models.DivisionZero},
		{2, models.DivisionZero},
		{-1, models.DivisionZero},
	}
	for _, tt := range tests {
		division, err := DivisionFromPoints(models.Points(tt.points), models.LevelAdvanced)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, division, "points %d", tt.points)
	}
}

func TestDivisionFromPointsOrdinary(t *testing.T) {
	tests := []struct {
		points   int
		expected models.Division
	}{
		{7, models.DivisionI},
		{17, models.DivisionI},
		{18, models.DivisionII},
		{21, models.DivisionII},
		{22, models.DivisionIII},
		{25, models.DivisionIII},
		{26, models.DivisionIV},
		{33, models.DivisionIV},
		{34, models.DivisionZero},
		{35, models.DivisionZero},
	}
	for _, tt := range tests {
		division, err := DivisionFromPoints(models.Points(tt.points), models.LevelOrdinary)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, division, "points %d", tt.points)
	}
}

func TestDivisionFromPointsAbsentTotal(t *testing.T) {
	division, err := DivisionFromPoints(models.NoPoints(), models.LevelAdvanced)
	require.NoError(t, err)
	assert.Equal(t, models.DivisionZero, division)
}

func TestDivisionFromPointsUnknownLevel(t *testing.T) {
	_, err := DivisionFromPoints(models.Points(6), "")
	require.ErrorIs(t, err, ErrUnknownLevel)
}

func TestDivisionFromPointsMonotonic(t *testing.T) {
	badness := map[models.Division]int{
		models.DivisionI: 1, models.DivisionII: 2, models.DivisionIII: 3, models.DivisionIV: 4, models.DivisionZero: 5,
	}
	cases := map[models.EducationLevel]int{models.LevelAdvanced: 3, models.LevelOrdinary: 7}
	for level, floor := range cases {
		prev := 0
		for p := floor; p <= 60; p++ {
			division, err := DivisionFromPoints(models.Points(p), level)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, badness[division], prev, "level %s points %d", level, p)
			prev = badness[division]
		}
	}
}
