package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// Direction orders a ranking metric.
type Direction string

const (
	// Descending ranks the highest metric first (marks).
	Descending Direction = "DESC"
	// Ascending ranks the lowest metric first (points).
	Ascending Direction = "ASC"
)

// RankItem is one entry to rank.
type RankItem struct {
	ID     string
	Metric float64
}

// Ranked is the rank assigned to an item.
type Ranked struct {
	ID   string
	Rank int
}

// Rank assigns competition ranks ("1224"): equal metrics share a rank and the
// next distinct metric skips by the size of the tie group. Ties are listed in
// ascending ID order so the output does not depend on input order. Items with a
// NaN metric are left out.
func Rank(items []RankItem, direction Direction) ([]Ranked, error) {
	if direction != Ascending && direction != Descending {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDirection, direction)
	}
	sorted := make([]RankItem, 0, len(items))
	for _, item := range items {
		if math.IsNaN(item.Metric) {
			continue
		}
		sorted = append(sorted, item)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Metric != b.Metric {
			if direction == Descending {
				return a.Metric > b.Metric
			}
			return a.Metric < b.Metric
		}
		return a.ID < b.ID
	})

	ranked := make([]Ranked, len(sorted))
	for i, item := range sorted {
		rank := i + 1
		if i > 0 && item.Metric == sorted[i-1].Metric {
			rank = ranked[i-1].Rank
		}
		ranked[i] = Ranked{ID: item.ID, Rank: rank}
	}
	return ranked, nil
}

// RankMap is Rank keyed by ID.
func RankMap(items []RankItem, direction Direction) (map[string]int, error) {
	ranked, err := Rank(items, direction)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(ranked))
	for _, r := range ranked {
		out[r.ID] = r.Rank
	}
	return out, nil
}

// SubjectPositions ranks students within each subject by marks, highest first.
// Only results carrying marks take part. The result maps subject ID to student
// ID to position.
func SubjectPositions(results []models.GradedResult) map[string]map[string]int {
	bySubject := make(map[string][]RankItem)
	for _, r := range results {
		if !r.HasMarks() {
			continue
		}
		bySubject[r.SubjectID] = append(bySubject[r.SubjectID], RankItem{ID: r.StudentID, Metric: *r.Marks})
	}
	positions := make(map[string]map[string]int, len(bySubject))
	for subjectID, items := range bySubject {
		// Descending is always valid.
		positions[subjectID], _ = RankMap(items, Descending)
	}
	return positions
}
