package scoring

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// CohortInput is everything needed to build one class report.
type CohortInput struct {
	ClassID string
	ExamID  string
	// Level defaults to the level of the first result when empty. A cohort
	// with students and no level is rejected.
	Level   models.EducationLevel
	Results []models.SubjectResult
	// Roster adds students that have no results yet.
	Roster       []models.StudentRef
	Combinations CombinationLookup
}

// Aggregate builds the cohort report. Per-student failures are recorded on
// that student's summary and never abort the cohort; only configuration
// errors are returned.
func (e *Engine) Aggregate(in CohortInput) (*models.CohortReport, error) {
	level := in.Level
	if level == "" && len(in.Results) > 0 {
		level = in.Results[0].EducationLevel
	}
	if level != "" && !level.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	if level == "" && (len(in.Results) > 0 || len(in.Roster) > 0) {
		return nil, fmt.Errorf("%w: no education level for class %q", ErrUnknownLevel, in.ClassID)
	}

	order, byStudent, names := groupByStudent(in.Results, in.Roster)

	summaries := make([]models.StudentSummary, 0, len(order))
	for _, studentID := range order {
		summary, err := e.Summarize(studentID, byStudent[studentID], level, in.Combinations)
		if err != nil {
			e.logger.Warn("student results could not be computed",
				zap.String("class_id", in.ClassID),
				zap.String("exam_id", in.ExamID),
				zap.String("student_id", studentID),
				zap.Error(err),
			)
			summary = models.StudentSummary{
				StudentID:        studentID,
				Division:         models.DivisionNone,
				BestNPoints:      models.NoPoints(),
				SubjectPositions: map[string]int{},
				Failure:          err.Error(),
			}
		}
		if summary.StudentName == "" {
			summary.StudentName = names[studentID]
		}
		summaries = append(summaries, summary)
	}

	if err := e.rankStudents(summaries); err != nil {
		return nil, err
	}
	assignSubjectPositions(summaries)
	sortSummaries(summaries)

	report := &models.CohortReport{
		ClassID:                  in.ClassID,
		ExamID:                   in.ExamID,
		EducationLevel:           level,
		RankedBy:                 string(e.cfg.RankBy),
		Students:                 summaries,
		DivisionDistribution:     divisionDistribution(summaries),
		ClassAverage:             classAverage(summaries),
		ExaminationGPA:           examinationGPA(summaries),
		ClassPassRate:            classPassRate(summaries),
		ClassStatisticsBySubject: map[string]models.ClassStatistics{},
	}
	report.Subjects = e.analyseSubjects(summaries, level, in.Combinations)
	for _, s := range report.Subjects {
		report.ClassStatisticsBySubject[s.SubjectID] = s.Statistics
	}
	return report, nil
}

func groupByStudent(results []models.SubjectResult, roster []models.StudentRef) ([]string, map[string][]models.SubjectResult, map[string]string) {
	order := make([]string, 0, len(roster))
	byStudent := make(map[string][]models.SubjectResult)
	names := make(map[string]string)
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, s := range roster {
		add(s.StudentID)
		names[s.StudentID] = s.StudentName
	}
	for _, r := range results {
		add(r.StudentID)
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
		if names[r.StudentID] == "" {
			names[r.StudentID] = r.StudentName
		}
	}
	return order, byStudent, names
}

func (e *Engine) rankStudents(summaries []models.StudentSummary) error {
	items := make([]RankItem, 0, len(summaries))
	direction := Descending
	for _, s := range summaries {
		switch e.cfg.RankBy {
		case RankByPoints:
			direction = Ascending
			if points, ok := s.BestNPoints.Value(); ok && s.Failure == "" {
				items = append(items, RankItem{ID: s.StudentID, Metric: float64(points)})
			}
		default:
			if s.SubjectsSat > 0 {
				items = append(items, RankItem{ID: s.StudentID, Metric: s.AverageMarks})
			}
		}
	}
	ranks, err := RankMap(items, direction)
	if err != nil {
		return err
	}
	for i := range summaries {
		summaries[i].Rank = ranks[summaries[i].StudentID]
	}
	return nil
}

func assignSubjectPositions(summaries []models.StudentSummary) {
	all := make([]models.GradedResult, 0, len(summaries)*8)
	for _, s := range summaries {
		all = append(all, s.Results...)
	}
	positions := SubjectPositions(all)
	for i := range summaries {
		for subjectID, byStudent := range positions {
			if pos, ok := byStudent[summaries[i].StudentID]; ok {
				summaries[i].SubjectPositions[subjectID] = pos
			}
		}
	}
}

// sortSummaries orders ranked students by rank, then the unranked, each by student ID.
func sortSummaries(summaries []models.StudentSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		switch {
		case a.Rank > 0 && b.Rank == 0:
			return true
		case a.Rank == 0 && b.Rank > 0:
			return false
		case a.Rank != b.Rank:
			return a.Rank < b.Rank
		}
		return a.StudentID < b.StudentID
	})
}

func divisionDistribution(summaries []models.StudentSummary) map[models.Division]int {
	dist := make(map[models.Division]int, len(models.Divisions()))
	for _, d := range models.Divisions() {
		dist[d] = 0
	}
	for _, s := range summaries {
		dist[s.Division]++
	}
	return dist
}

func classAverage(summaries []models.StudentSummary) float64 {
	var sum float64
	n := 0
	for _, s := range summaries {
		if s.SubjectsSat == 0 {
			continue
		}
		sum += s.AverageMarks
		n++
	}
	if n == 0 {
		return 0
	}
	return round(sum/float64(n), 2)
}

// examinationGPA averages best-N points over students whose division was computed.
func examinationGPA(summaries []models.StudentSummary) float64 {
	sum, n := 0, 0
	for _, s := range summaries {
		points, ok := s.BestNPoints.Value()
		if !ok {
			continue
		}
		sum += points
		n++
	}
	if n == 0 {
		return 0
	}
	return round(float64(sum)/float64(n), 4)
}

// classPassRate is the share of students in divisions I-IV. Students whose
// computation failed are left out of the denominator; "0" and "-" both fail.
func classPassRate(summaries []models.StudentSummary) float64 {
	passed, total := 0, 0
	for _, s := range summaries {
		if s.Failure != "" {
			continue
		}
		total++
		if s.Division.Passing() {
			passed++
		}
	}
	if total == 0 {
		return 0
	}
	return round(float64(passed)/float64(total)*100, 2)
}
