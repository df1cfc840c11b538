package scoring

import (
	"fmt"

	"github.com/noah-isme/necta-results-api/internal/models"
)

type divisionBand struct {
	min, max int
	division models.Division
}

// ACSEE bands over the best three principal subjects.
var advancedDivisions = []divisionBand{
	{3, 9, models.DivisionI},
	{10, 12, models.DivisionII},
	{13, 17, models.DivisionIII},
	{18, 19, models.DivisionIV},
}

// CSEE bands over the counted O-Level subjects.
var ordinaryDivisions = []divisionBand{
	{7, 17, models.DivisionI},
	{18, 21, models.DivisionII},
	{22, 25, models.DivisionIII},
	{26, 33, models.DivisionIV},
}

// DivisionFromPoints classifies a point total. Any total outside every band,
// including an absent one, yields DivisionZero. Callers that could not select
// enough subjects report DivisionNone themselves and never reach this function.
func DivisionFromPoints(total models.PointTotal, level models.EducationLevel) (models.Division, error) {
	var bands []divisionBand
	switch level {
	case models.LevelAdvanced:
		bands = advancedDivisions
	case models.LevelOrdinary:
		bands = ordinaryDivisions
	default:
		return models.DivisionNone, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	points, ok := total.Value()
	if !ok {
		return models.DivisionZero, nil
	}
	for _, b := range bands {
		if points >= b.min && points <= b.max {
			return b.division, nil
		}
	}
	return models.DivisionZero, nil
}
