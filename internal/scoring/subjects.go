package scoring

import (
	"sort"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// SubjectGPA is Σ(count × grade points) / candidates using the grade table's
// points. Ungraded entries are ignored.
func (t *GradeTable) SubjectGPA(distribution map[models.Grade]int, level models.EducationLevel) float64 {
	weighted, candidates := 0, 0
	for grade, count := range distribution {
		points, ok := t.PointsFor(grade, level)
		if !ok || count <= 0 {
			continue
		}
		weighted += count * points
		candidates += count
	}
	if candidates == 0 {
		return 0
	}
	return round(float64(weighted)/float64(candidates), 4)
}

// SubjectPassRate is the percentage of candidates passing. A-E pass in a
// principal subject; S also passes in a subsidiary one.
func SubjectPassRate(distribution map[models.Grade]int, principal bool) float64 {
	passing := []models.Grade{models.GradeA, models.GradeB, models.GradeC, models.GradeD, models.GradeE}
	if !principal {
		passing = append(passing, models.GradeS)
	}
	total := 0
	for grade, count := range distribution {
		if grade != models.GradeNone {
			total += count
		}
	}
	if total == 0 {
		return 0
	}
	passed := 0
	for _, g := range passing {
		passed += distribution[g]
	}
	return round(float64(passed)/float64(total)*100, 2)
}

// analyseSubjects builds per-subject analysis. A subject is principal when any
// result carries the flag or any student's combination lists it.
func (e *Engine) analyseSubjects(summaries []models.StudentSummary, level models.EducationLevel, lookup CombinationLookup) []models.SubjectAnalysis {
	type acc struct {
		analysis models.SubjectAnalysis
		marks    []float64
	}
	bySubject := make(map[string]*acc)
	for _, s := range summaries {
		combination := make(map[string]bool)
		if lookup != nil {
			if ids, ok := lookup.PrincipalSubjects(s.StudentID); ok {
				for _, id := range ids {
					combination[id] = true
				}
			}
		}
		for _, r := range s.Results {
			a, ok := bySubject[r.SubjectID]
			if !ok {
				dist := make(map[models.Grade]int)
				for _, g := range e.grades.Grades(level) {
					dist[g] = 0
				}
				a = &acc{analysis: models.SubjectAnalysis{
					SubjectID:         r.SubjectID,
					SubjectCode:       r.SubjectCode,
					SubjectName:       r.SubjectName,
					GradeDistribution: dist,
				}}
				bySubject[r.SubjectID] = a
			}
			if r.IsPrincipal || combination[r.SubjectID] {
				a.analysis.IsPrincipal = true
			}
			if r.HasMarks() {
				a.marks = append(a.marks, *r.Marks)
			}
			if r.Graded() {
				a.analysis.GradeDistribution[r.Grade]++
				a.analysis.Candidates++
			}
		}
	}

	out := make([]models.SubjectAnalysis, 0, len(bySubject))
	for _, a := range bySubject {
		a.analysis.GPA = e.grades.SubjectGPA(a.analysis.GradeDistribution, level)
		a.analysis.PassRate = SubjectPassRate(a.analysis.GradeDistribution, a.analysis.IsPrincipal || level == models.LevelOrdinary)
		a.analysis.Statistics = Statistics(a.marks)
		out = append(out, a.analysis)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectCode != out[j].SubjectCode {
			return out[i].SubjectCode < out[j].SubjectCode
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out
}
