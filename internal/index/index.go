// Package index computes normalised-difference spectral indices over two bands.
//
// Band A is the subtracted band and band B the positive one, so NDVI is
// Compute(red, nir) = (nir - red) / (nir + red).
package index

import (
	"fmt"
	"math"

	"github.com/andaleebali/sent-2-analysis/internal/raster"
)

// ShapeMismatchError is returned when the two bands do not have the same dimensions.
type ShapeMismatchError struct {
	AWidth, AHeight int
	BWidth, BHeight int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("band shapes differ: A is %dx%d, B is %dx%d", e.AWidth, e.AHeight, e.BWidth, e.BHeight)
}

// Compute returns (b - a) / (b + a) per pixel. Every pixel whose denominator is
// zero is NaN, whatever the division produced. Values are not clamped to [-1, 1].
func Compute(a, b raster.Grid) (raster.Grid, error) {
	if !a.Consistent() || !b.Consistent() || !a.SameShape(b) {
		return raster.Grid{}, &ShapeMismatchError{
			AWidth: a.Width, AHeight: a.Height,
			BWidth: b.Width, BHeight: b.Height,
		}
	}

	result := raster.NewGrid(a.Width, a.Height)
	for i := range result.Data {
		denominator := b.Data[i] + a.Data[i]
		if denominator == 0 {
			result.Data[i] = math.NaN()
			continue
		}
		result.Data[i] = (b.Data[i] - a.Data[i]) / denominator
	}
	return result, nil
}
