package scoring

import (
	"sort"
	"strings"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// Selection is the outcome of picking the subjects that count towards a division.
type Selection struct {
	Results  []models.GradedResult
	Points   models.PointTotal
	Computed bool
	// UsedFallback is set when no principal information existed and the best
	// results across all subjects were used instead.
	UsedFallback bool
}

// SelectBest picks the best-N counting subjects of one student.
//
// Candidates come from principalIDs when given, else from the IsPrincipal
// flags, else from every result (the fallback). Excluded subject names and
// results without marks (absent, zero or ungraded) are then dropped, the rest
// ordered by points ascending, and the first BestN taken. When fewer than the
// policy minimum qualify, the selection is not computed and Points is absent.
func SelectBest(results []models.GradedResult, principalIDs []string, policy LevelPolicy) Selection {
	candidates, fallback := principalCandidates(results, principalIDs, policy)

	eligible := make([]models.GradedResult, 0, len(candidates))
	for _, r := range candidates {
		if excluded(r.SubjectName, policy.ExcludedSubjects) {
			continue
		}
		if !qualifies(r) {
			continue
		}
		eligible = append(eligible, r)
	}

	sel := Selection{Points: models.NoPoints(), UsedFallback: fallback}
	if len(eligible) < policy.required() || len(eligible) == 0 {
		return sel
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Points != b.Points {
			return a.Points < b.Points
		}
		if *a.Marks != *b.Marks {
			return *a.Marks > *b.Marks
		}
		return a.SubjectID < b.SubjectID
	})

	take := len(eligible)
	if policy.BestN > 0 && policy.BestN < take {
		take = policy.BestN
	}
	sel.Results = eligible[:take:take]
	sum := 0
	for _, r := range sel.Results {
		sum += r.Points
	}
	sel.Points = models.Points(sum)
	sel.Computed = true
	return sel
}

func principalCandidates(results []models.GradedResult, principalIDs []string, policy LevelPolicy) ([]models.GradedResult, bool) {
	if policy.IgnorePrincipal {
		return results, false
	}
	if len(principalIDs) > 0 {
		ids := make(map[string]struct{}, len(principalIDs))
		for _, id := range principalIDs {
			ids[id] = struct{}{}
		}
		picked := make([]models.GradedResult, 0, len(principalIDs))
		for _, r := range results {
			if _, ok := ids[r.SubjectID]; ok {
				picked = append(picked, r)
			}
		}
		return picked, false
	}
	flagged := make([]models.GradedResult, 0, len(results))
	for _, r := range results {
		if r.IsPrincipal {
			flagged = append(flagged, r)
		}
	}
	if len(flagged) > 0 {
		return flagged, false
	}
	return results, true
}

func excluded(subjectName string, markers []string) bool {
	name := strings.ToLower(subjectName)
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" && strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func qualifies(r models.GradedResult) bool {
	return r.HasMarks() && *r.Marks != 0 && r.Graded()
}
