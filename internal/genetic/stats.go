package genetic

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"b3-genetic-lab/internal/domain"
)

// generationStats summarizes the scores of one generation.
func generationStats(gen int, scores []float64) domain.GenerationStats {
	mean, std := stat.MeanStdDev(scores, nil)
	return domain.GenerationStats{
		Generation: gen,
		Best:       floats.Max(scores),
		Mean:       mean,
		StdDev:     std,
		Worst:      floats.Min(scores),
	}
}
