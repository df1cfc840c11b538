package scoring

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/noah-isme/necta-results-api/internal/models"
)

// Statistics summarises marks. Empty input yields all zeros. Mean and standard
// deviation (population) are rounded to two decimals; ties for the mode go to
// the smallest value.
func Statistics(marks []float64) models.ClassStatistics {
	data := make(stats.Float64Data, 0, len(marks))
	for _, m := range marks {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			continue
		}
		data = append(data, m)
	}
	if len(data) == 0 {
		return models.ClassStatistics{}
	}

	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	stddev, _ := stats.StandardDeviationPopulation(data)

	return models.ClassStatistics{
		Mean:              round(mean, 2),
		Median:            median,
		Mode:              mode(data),
		StandardDeviation: round(stddev, 2),
	}
}

// mode picks the smallest of the most frequent values. stats.Mode returns its
// modes in ascending order, and nothing at all when every value is equally
// frequent, in which case the smallest value wins.
func mode(data stats.Float64Data) float64 {
	modes, err := stats.Mode(data)
	if err == nil && len(modes) > 0 {
		return modes[0]
	}
	min, _ := stats.Min(data)
	return min
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
