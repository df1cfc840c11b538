package scoring

import (
	"fmt"
	"math"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// DefaultOLevelCMin is the CSEE lower bound for a C.
const DefaultOLevelCMin = 45.0

type band struct {
	min    float64
	grade  models.Grade
	points int
}

// GradeTable maps marks to grades and points for each education level.
// A table is immutable once built and safe for concurrent use.
type GradeTable struct {
	bands map[models.EducationLevel][]band
}

// NewGradeTable builds the NECTA tables. oLevelCMin moves the CSEE C/D boundary;
// pass DefaultOLevelCMin unless the grading policy says otherwise.
func NewGradeTable(oLevelCMin float64) (*GradeTable, error) {
	if math.IsNaN(oLevelCMin) || oLevelCMin <= 30 || oLevelCMin >= 65 {
		return nil, fmt.Errorf("%w: O-Level C lower bound %v outside (30,65)", ErrInvalidPolicy, oLevelCMin)
	}
	return &GradeTable{bands: map[models.EducationLevel][]band{
		models.LevelOrdinary: {
			{min: 75, grade: models.GradeA, points: 1},
			{min: 65, grade: models.GradeB, points: 2},
			{min: oLevelCMin, grade: models.GradeC, points: 3},
			{min: 30, grade: models.GradeD, points: 4},
			{min: math.Inf(-1), grade: models.GradeF, points: 5},
		},
		models.LevelAdvanced: {
			{min: 80, grade: models.GradeA, points: 1},
			{min: 70, grade: models.GradeB, points: 2},
			{min: 60, grade: models.GradeC, points: 3},
			{min: 50, grade: models.GradeD, points: 4},
			{min: 40, grade: models.GradeE, points: 5},
			{min: 35, grade: models.GradeS, points: 6},
			{min: math.Inf(-1), grade: models.GradeF, points: 7},
		},
	}}, nil
}

// DefaultGradeTable returns the table with the canonical CSEE boundaries.
func DefaultGradeTable() *GradeTable {
	table, err := NewGradeTable(DefaultOLevelCMin)
	if err != nil {
		panic(err)
	}
	return table
}

// GradeAndPoints grades a mark. A nil or NaN mark yields GradeNone and zero points.
// Out-of-range marks fall into the nearest band.
func (t *GradeTable) GradeAndPoints(marks *float64, level models.EducationLevel) (models.Grade, int, error) {
	bands, ok := t.bands[level]
	if !ok {
		return models.GradeNone, 0, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	if marks == nil || math.IsNaN(*marks) {
		return models.GradeNone, 0, nil
	}
	for _, b := range bands {
		if *marks >= b.min {
			return b.grade, b.points, nil
		}
	}
	last := bands[len(bands)-1]
	return last.grade, last.points, nil
}

// PointsFor returns the point value of a grade at the given level.
func (t *GradeTable) PointsFor(grade models.Grade, level models.EducationLevel) (int, bool) {
	for _, b := range t.bands[level] {
		if b.grade == grade {
			return b.points, true
		}
	}
	return 0, false
}

// Grades lists the grade labels of a level from best to worst.
func (t *GradeTable) Grades(level models.EducationLevel) []models.Grade {
	bands := t.bands[level]
	grades := make([]models.Grade, 0, len(bands))
	for _, b := range bands {
		grades = append(grades, b.grade)
	}
	return grades
}

var remarks = map[models.Grade]string{
	models.GradeA:    "Excellent",
	models.GradeB:    "Very Good",
	models.GradeC:    "Good",
	models.GradeD:    "Satisfactory",
	models.GradeE:    "Pass",
	models.GradeS:    "Subsidiary Pass",
	models.GradeF:    "Fail",
	models.GradeNone: "No Result",
}

// Remarks returns the report-card remark for a grade.
func Remarks(grade models.Grade) string {
	if r, ok := remarks[grade]; ok {
		return r
	}
	return remarks[models.GradeNone]
}

// GradeResult attaches grade, points and remark to a result. An upstream
// override is passed through untouched.
func (t *GradeTable) GradeResult(r models.SubjectResult) (models.GradedResult, error) {
	r.Marks = sanitizeMarks(r.Marks)
	if r.Override != nil {
		if !r.EducationLevel.Valid() {
			return models.GradedResult{}, fmt.Errorf("%w: %q", ErrUnknownLevel, r.EducationLevel)
		}
		return models.GradedResult{
			SubjectResult: r,
			Grade:         r.Override.Grade,
			Points:        r.Override.Points,
			Remarks:       Remarks(r.Override.Grade),
		}, nil
	}
	grade, points, err := t.GradeAndPoints(r.Marks, r.EducationLevel)
	if err != nil {
		return models.GradedResult{}, err
	}
	return models.GradedResult{SubjectResult: r, Grade: grade, Points: points, Remarks: Remarks(grade)}, nil
}

// Regrade recomputes grade and points from marks alone, discarding any override.
func (t *GradeTable) Regrade(g models.GradedResult) (models.GradedResult, error) {
	r := g.SubjectResult
	r.Override = nil
	return t.GradeResult(r)
}

func sanitizeMarks(marks *float64) *float64 {
	if marks == nil || math.IsNaN(*marks) || math.IsInf(*marks, 0) {
		return nil
	}
	v := *marks
	return &v
}
