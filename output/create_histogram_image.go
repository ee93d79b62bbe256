package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/andaleebali/sent-2-analysis/internal/raster"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const histogramBins = 50

// Histogram plots the distribution of the valid pixels of grid.
func (v *Visualizer) Histogram(grid raster.Grid, name string) (string, error) {
	values := make(plotter.Values, 0, len(grid.Data))
	for _, value := range grid.Data {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return "", ErrNothingToDraw
	}

	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "Normalised difference"
	p.Y.Label.Text = "Pixels"

	hist, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return "", fmt.Errorf("failed to build histogram: %w", err)
	}
	p.Add(hist)

	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(v.dir, name+"_histogram.png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("failed to save histogram: %w", err)
	}

	v.logger.Info("histogram rendered", "path", path)
	return path, nil
}
