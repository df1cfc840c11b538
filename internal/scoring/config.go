package scoring

import (
	"fmt"
	"strings"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// RankBasis selects the metric students are ranked on.
type RankBasis string

const (
	// RankByAverage ranks on average marks, highest first.
	RankByAverage RankBasis = "average"
	// RankByPoints ranks on best-N points, lowest first.
	RankByPoints RankBasis = "points"
)

// LevelPolicy configures subject selection for one education level.
type LevelPolicy struct {
	// BestN is how many subjects count towards the division. Zero counts every qualifying subject.
	BestN int
	// MinQualifying is the fewest qualifying subjects needed to compute a division.
	MinQualifying int
	// ExcludedSubjects are case-insensitive subject name markers that never count.
	ExcludedSubjects []string
	// IgnorePrincipal treats every subject as a candidate regardless of principal flags.
	IgnorePrincipal bool
}

func (p LevelPolicy) required() int {
	if p.MinQualifying > 0 {
		return p.MinQualifying
	}
	return p.BestN
}

// Config is the full engine configuration.
type Config struct {
	Advanced   LevelPolicy
	Ordinary   LevelPolicy
	OLevelCMin float64
	RankBy     RankBasis
	// RequireCombination leaves a student's division uncomputed when a
	// combination lookup is supplied but has no entry for that student.
	RequireCombination bool
}

// DefaultConfig returns the NECTA defaults: best three principals at A-Level
// excluding General Studies, every subject (minimum seven) at O-Level.
func DefaultConfig() Config {
	return Config{
		Advanced: LevelPolicy{
			BestN:            3,
			MinQualifying:    3,
			ExcludedSubjects: []string{"general studies"},
		},
		Ordinary: LevelPolicy{
			BestN:            0,
			MinQualifying:    7,
			ExcludedSubjects: []string{"general studies"},
			IgnorePrincipal:  true,
		},
		OLevelCMin: DefaultOLevelCMin,
		RankBy:     RankByAverage,
	}
}

// Validate reports configuration mistakes.
func (c Config) Validate() error {
	for level, p := range map[models.EducationLevel]LevelPolicy{models.LevelAdvanced: c.Advanced, models.LevelOrdinary: c.Ordinary} {
		if p.BestN < 0 {
			return fmt.Errorf("%w: %s best-N %d is negative", ErrInvalidPolicy, level, p.BestN)
		}
		if p.required() < 1 {
			return fmt.Errorf("%w: %s needs a positive minimum of qualifying subjects", ErrInvalidPolicy, level)
		}
		if p.BestN > 0 && p.MinQualifying > p.BestN {
			return fmt.Errorf("%w: %s minimum %d exceeds best-N %d", ErrInvalidPolicy, level, p.MinQualifying, p.BestN)
		}
	}
	switch c.RankBy {
	case RankByAverage, RankByPoints:
	default:
		return fmt.Errorf("%w: rank basis %q", ErrInvalidPolicy, c.RankBy)
	}
	if _, err := NewGradeTable(c.OLevelCMin); err != nil {
		return err
	}
	return nil
}

// Policy returns the selection policy of a level.
func (c Config) Policy(level models.EducationLevel) (LevelPolicy, error) {
	switch level {
	case models.LevelAdvanced:
		return c.Advanced, nil
	case models.LevelOrdinary:
		return c.Ordinary, nil
	default:
		return LevelPolicy{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
}

// ParseRankBasis maps a config string to a RankBasis.
func ParseRankBasis(raw string) (RankBasis, error) {
	switch RankBasis(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RankByAverage:
		return RankByAverage, nil
	case RankByPoints:
		return RankByPoints, nil
	default:
		return "", fmt.Errorf("%w: rank basis %q", ErrInvalidPolicy, raw)
	}
}
