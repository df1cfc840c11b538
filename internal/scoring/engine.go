package scoring

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// CombinationLookup resolves the principal subjects of a student's combination.
type CombinationLookup interface {
	PrincipalSubjects(studentID string) ([]string, bool)
}

// Combinations maps student IDs to principal subject IDs.
type Combinations map[string][]string

// PrincipalSubjects implements CombinationLookup.
func (c Combinations) PrincipalSubjects(studentID string) ([]string, bool) {
	ids, ok := c[studentID]
	return ids, ok
}

// Engine binds a validated Config to the scoring functions.
type Engine struct {
	cfg    Config
	grades *GradeTable
	logger *zap.Logger
}

// NewEngine validates cfg and builds an engine. A nil logger is replaced by a no-op one.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grades, err := NewGradeTable(cfg.OLevelCMin)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, grades: grades, logger: logger}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Grades exposes the engine's grade table.
func (e *Engine) Grades() *GradeTable {
	return e.grades
}

// GradeResult grades a single result.
func (e *Engine) GradeResult(r models.SubjectResult) (models.GradedResult, error) {
	return e.grades.GradeResult(r)
}

// Select runs SelectBest under the level's policy and logs when the
// principal fallback was taken.
func (e *Engine) Select(studentID string, results []models.GradedResult, principalIDs []string, level models.EducationLevel) (Selection, error) {
	policy, err := e.cfg.Policy(level)
	if err != nil {
		return Selection{}, err
	}
	sel := SelectBest(results, principalIDs, policy)
	if sel.UsedFallback {
		e.logger.Info("no principal subjects found, using best results across all subjects",
			zap.String("student_id", studentID),
			zap.String("education_level", string(level)),
			zap.Int("selected", len(sel.Results)),
		)
	}
	return sel, nil
}

// Summarize builds a student's summary without cohort-dependent fields
// (rank and subject positions).
func (e *Engine) Summarize(studentID string, results []models.SubjectResult, level models.EducationLevel, lookup CombinationLookup) (models.StudentSummary, error) {
	summary := models.StudentSummary{
		StudentID:        studentID,
		Division:         models.DivisionNone,
		BestNPoints:      models.NoPoints(),
		SubjectPositions: map[string]int{},
	}
	graded := make([]models.GradedResult, 0, len(results))
	for _, r := range results {
		g, err := e.grades.GradeResult(r)
		if err != nil {
			return summary, fmt.Errorf("grade %s for student %s: %w", r.SubjectID, studentID, err)
		}
		graded = append(graded, g)
		if summary.StudentName == "" {
			summary.StudentName = r.StudentName
		}
	}
	summary.Results = graded

	var total float64
	for _, g := range graded {
		if g.HasMarks() {
			total += *g.Marks
			summary.SubjectsSat++
		}
		if g.Graded() {
			summary.TotalPoints += g.Points
		}
	}
	summary.TotalMarks = round(total, 2)
	if summary.SubjectsSat > 0 {
		summary.AverageMarks = round(total/float64(summary.SubjectsSat), 2)
	}

	var principalIDs []string
	if lookup != nil {
		ids, ok := lookup.PrincipalSubjects(studentID)
		if !ok && e.cfg.RequireCombination && level == models.LevelAdvanced {
			summary.Failure = "no subject combination"
			return summary, nil
		}
		principalIDs = ids
	}

	sel, err := e.Select(studentID, graded, principalIDs, level)
	if err != nil {
		return summary, err
	}
	summary.UsedFallback = sel.UsedFallback
	if !sel.Computed {
		return summary, nil
	}
	division, err := DivisionFromPoints(sel.Points, level)
	if err != nil {
		return summary, err
	}
	summary.BestNResults = sel.Results
	summary.BestNPoints = sel.Points
	summary.Division = division
	return summary, nil
}
