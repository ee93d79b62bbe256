package index

import (
	"errors"
	"math"
	"sort"

	"github.com/andaleebali/sent-2-analysis/internal/raster"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrNoValidPixels = errors.New("no valid pixels to summarize")

// Stats summarizes the valid pixels of a grid. Std is the population standard deviation.
type Stats struct {
	Mean   float64 `json:"mean" csv:"mean"`
	Min    float64 `json:"min" csv:"min"`
	Max    float64 `json:"max" csv:"max"`
	Std    float64 `json:"std" csv:"std"`
	Median float64 `json:"median" csv:"median"`
	Count  int     `json:"count" csv:"valid_pixels"`
}

// Summarize computes Stats over the finite entries of values. NaN is the
// undefined-pixel sentinel; ±Inf never comes out of Compute and would leave
// Mean and Std undefined, so it is skipped as well and not counted.
func Summarize(values []float64) (Stats, error) {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		return Stats{}, ErrNoValidPixels
	}

	mean, std := stat.PopMeanStdDev(valid, nil)
	sort.Float64s(valid)

	return Stats{
		Mean:   mean,
		Min:    floats.Min(valid),
		Max:    floats.Max(valid),
		Std:    std,
		Median: median(valid),
		Count:  len(valid),
	}, nil
}

// SummarizeGrid is Summarize over the pixels of g.
func SummarizeGrid(g raster.Grid) (Stats, error) {
	return Summarize(g.Data)
}

// median expects sorted, non-empty input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
