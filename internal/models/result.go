package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EducationLevel selects the NECTA grading scheme applied to a result.
type EducationLevel string

const (
	// LevelOrdinary is the CSEE (Form I-IV) scheme.
	LevelOrdinary EducationLevel = "O_LEVEL"
	// LevelAdvanced is the ACSEE (Form V-VI) scheme.
	LevelAdvanced EducationLevel = "A_LEVEL"
)

// Valid reports whether the level is one of the supported schemes.
func (l EducationLevel) Valid() bool {
	return l == LevelOrdinary || l == LevelAdvanced
}

// Grade is a letter grade label.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
	GradeS Grade = "S"
	GradeF Grade = "F"
	// GradeNone marks a result that has no marks yet.
	GradeNone Grade = "-"
)

// Division is a classification band derived from a point total.
type Division string

const (
	DivisionI   Division = "I"
	DivisionII  Division = "II"
	DivisionIII Division = "III"
	DivisionIV  Division = "IV"
	// DivisionZero means the division was computed and the candidate failed.
	DivisionZero Division = "0"
	// DivisionNone means there was not enough data to compute a division.
	DivisionNone Division = "-"
)

// Passing reports whether the division counts towards the class pass rate.
func (d Division) Passing() bool {
	switch d {
	case DivisionI, DivisionII, DivisionIII, DivisionIV:
		return true
	default:
		return false
	}
}

// Divisions lists every division label in report order.
func Divisions() []Division {
	return []Division{DivisionI, DivisionII, DivisionIII, DivisionIV, DivisionZero, DivisionNone}
}

// PointTotal is a point sum that may be absent. Absent totals render as "-".
type PointTotal struct {
	value int
	set   bool
}

// Points builds a computed point total.
func Points(v int) PointTotal {
	return PointTotal{value: v, set: true}
}

// NoPoints is the "insufficient data" total.
func NoPoints() PointTotal {
	return PointTotal{}
}

// Value returns the total and whether it was computed.
func (p PointTotal) Value() (int, bool) {
	return p.value, p.set
}

// Computed reports whether the total carries a value.
func (p PointTotal) Computed() bool {
	return p.set
}

func (p PointTotal) String() string {
	if !p.set {
		return "-"
	}
	return strconv.Itoa(p.value)
}

// MarshalJSON renders a number, or "-" when absent.
func (p PointTotal) MarshalJSON() ([]byte, error) {
	if !p.set {
		return []byte(`"-"`), nil
	}
	return []byte(strconv.Itoa(p.value)), nil
}

// UnmarshalJSON accepts a number, "-" or null.
func (p *PointTotal) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" || raw == `"-"` {
		*p = NoPoints()
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("point total %s: %w", raw, err)
	}
	*p = Points(v)
	return nil
}

// GradeOverride carries an upstream grade/points pair that bypasses the grade table.
type GradeOverride struct {
	Grade  Grade `json:"grade"`
	Points int   `json:"points"`
}

// SubjectResult is one raw mark for a student in a subject for an exam.
// Marks is nil when no result has been entered.
type SubjectResult struct {
	StudentID      string         `db:"student_id" json:"student_id"`
	StudentName    string         `db:"student_name" json:"student_name,omitempty"`
	SubjectID      string         `db:"subject_id" json:"subject_id"`
	SubjectCode    string         `db:"subject_code" json:"subject_code"`
	SubjectName    string         `db:"subject_name" json:"subject_name"`
	ExamID         string         `db:"exam_id" json:"exam_id"`
	Marks          *float64       `db:"marks_obtained" json:"marks_obtained"`
	IsPrincipal    bool           `db:"is_principal" json:"is_principal"`
	EducationLevel EducationLevel `db:"education_level" json:"education_level"`
	Override       *GradeOverride `db:"-" json:"override,omitempty"`
}

// HasMarks reports whether a numeric mark is present.
func (r SubjectResult) HasMarks() bool {
	return r.Marks != nil
}

// GradedResult is a SubjectResult with its derived grade, points and remark.
type GradedResult struct {
	SubjectResult
	Grade   Grade  `json:"grade"`
	Points  int    `json:"points"`
	Remarks string `json:"remarks"`
}

// Graded reports whether the result carries a real grade.
func (g GradedResult) Graded() bool {
	return g.Grade != GradeNone && g.Grade != ""
}

// StudentRef identifies a student on a class roster.
type StudentRef struct {
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
}

// StudentSummary aggregates one student's results for an exam.
type StudentSummary struct {
	StudentID        string         `json:"student_id"`
	StudentName      string         `json:"student_name,omitempty"`
	Results          []GradedResult `json:"results"`
	SubjectsSat      int            `json:"subjects_sat"`
	TotalMarks       float64        `json:"total_marks"`
	AverageMarks     float64        `json:"average_marks"`
	TotalPoints      int            `json:"total_points"`
	BestNPoints      PointTotal     `json:"best_n_points"`
	BestNResults     []GradedResult `json:"best_n_results"`
	Division         Division       `json:"division"`
	Rank             int            `json:"rank,omitempty"`
	SubjectPositions map[string]int `json:"subject_positions"`
	UsedFallback     bool           `json:"used_principal_fallback,omitempty"`
	Failure          string         `json:"failure,omitempty"`
}

// ClassStatistics summarises a vector of marks.
type ClassStatistics struct {
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Mode              float64 `json:"mode"`
	StandardDeviation float64 `json:"standard_deviation"`
}

// SubjectAnalysis is the cohort-level view of one subject.
type SubjectAnalysis struct {
	SubjectID         string          `json:"subject_id"`
	SubjectCode       string          `json:"subject_code"`
	SubjectName       string          `json:"subject_name"`
	IsPrincipal       bool            `json:"is_principal"`
	Candidates        int             `json:"candidates"`
	GradeDistribution map[Grade]int   `json:"grade_distribution"`
	GPA               float64         `json:"gpa"`
	PassRate          float64         `json:"pass_rate"`
	Statistics        ClassStatistics `json:"statistics"`
}

// CohortReport is the class-level result sheet for one exam.
type CohortReport struct {
	ClassID                  string                     `json:"class_id"`
	ExamID                   string                     `json:"exam_id"`
	EducationLevel           EducationLevel             `json:"education_level"`
	RankedBy                 string                     `json:"ranked_by"`
	Students                 []StudentSummary           `json:"students"`
	DivisionDistribution     map[Division]int           `json:"division_distribution"`
	ClassAverage             float64                    `json:"class_average"`
	ExaminationGPA           float64                    `json:"examination_gpa"`
	ClassPassRate            float64                    `json:"class_pass_rate"`
	Subjects                 []SubjectAnalysis          `json:"subjects"`
	ClassStatisticsBySubject map[string]ClassStatistics `json:"class_statistics_by_subject"`
}

// Student returns the summary for studentID, if present.
func (r *CohortReport) Student(studentID string) (*StudentSummary, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Students {
		if r.Students[i].StudentID == studentID {
			return &r.Students[i], true
		}
	}
	return nil, false
}
