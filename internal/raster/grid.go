// Package raster reads single bands out of GDAL-readable rasters and writes
// georeferenced float32 GeoTIFFs derived from a reference band.
package raster

import "fmt"

// Grid is a row-major 2-D array of pixel values for one band.
type Grid struct {
	Width  int
	Height int
	Data   []float64
}

// NewGrid allocates a zeroed grid of the given shape.
func NewGrid(width, height int) Grid {
	return Grid{
		Width:  width,
		Height: height,
		Data:   make([]float64, width*height),
	}
}

// FromRows builds a grid from equally long rows.
func FromRows(rows [][]float64) (Grid, error) {
	if len(rows) == 0 {
		return Grid{}, nil
	}
	width := len(rows[0])
	grid := NewGrid(width, len(rows))
	for y, row := range rows {
		if len(row) != width {
			return Grid{}, fmt.Errorf("row %d has %d values, expected %d", y, len(row), width)
		}
		copy(grid.Data[y*width:], row)
	}
	return grid, nil
}

func (g Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

// Consistent reports whether Data holds exactly Width*Height values.
func (g Grid) Consistent() bool {
	return g.Width >= 0 && g.Height >= 0 && len(g.Data) == g.Width*g.Height
}

// SameShape reports whether both grids have identical dimensions.
func (g Grid) SameShape(other Grid) bool {
	return g.Width == other.Width && g.Height == other.Height && len(g.Data) == len(other.Data)
}

// Float32 returns a new float32 copy of the pixel values.
func (g Grid) Float32() []float32 {
	out := make([]float32, len(g.Data))
	for i, v := range g.Data {
		out[i] = float32(v)
	}
	return out
}
