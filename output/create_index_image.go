package output

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/andaleebali/sent-2-analysis/internal/raster"
	"github.com/fogleman/gg"
)

var ErrNothingToDraw = errors.New("grid has no valid pixels to draw")

const (
	legendWidth  = 90
	legendMargin = 20
	minHeight    = 160
)

// diverging red-yellow-green stops over [-1, 1]
var colorStops = []color.RGBA{
	{R: 165, G: 0, B: 38, A: 255},
	{R: 244, G: 109, B: 67, A: 255},
	{R: 255, G: 255, B: 191, A: 255},
	{R: 166, G: 217, B: 106, A: 255},
	{R: 0, G: 104, B: 55, A: 255},
}

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func valueToColor(norm float64) color.RGBA {
	segments := float64(len(colorStops) - 1)
	pos := norm * segments
	i := int(math.Floor(pos))
	if i >= len(colorStops)-1 {
		return colorStops[len(colorStops)-1]
	}
	ratio := pos - float64(i)
	from, to := colorStops[i], colorStops[i+1]
	lerp := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a) + (float64(b)-float64(a))*ratio))
	}
	return color.RGBA{R: lerp(from.R, to.R), G: lerp(from.G, to.G), B: lerp(from.B, to.B), A: 255}
}

// Visualizer renders finished index grids as PNG images under dir.
type Visualizer struct {
	dir    string
	logger *slog.Logger
}

func NewVisualizer(dir string, logger *slog.Logger) *Visualizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Visualizer{dir: dir, logger: logger}
}

// Render draws grid with a diverging colour map over [-1, 1] and a legend to
// its right. Undefined pixels stay transparent.
func (v *Visualizer) Render(grid raster.Grid, name string) (string, error) {
	if !grid.Consistent() || grid.Width == 0 || grid.Height == 0 {
		return "", ErrNothingToDraw
	}

	height := grid.Height
	if height < minHeight {
		height = minHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, grid.Width+legendWidth, height))
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			value := grid.At(x, y)
			if math.IsNaN(value) {
				continue
			}
			img.SetRGBA(x, y, valueToColor(normalize(value, -1, 1)))
		}
	}

	dc := gg.NewContextForRGBA(img)
	drawLegend(dc, float64(grid.Width), float64(height))

	if err := os.MkdirAll(v.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	path := filepath.Join(v.dir, name+".png")
	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	v.logger.Info("index image rendered", "path", path)
	return path, nil
}

func drawLegend(dc *gg.Context, left, height float64) {
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(left, 0, legendWidth, height)
	dc.Fill()

	barX := left + legendMargin
	barTop := float64(legendMargin)
	barHeight := height - 2*legendMargin
	for i := 0; i < int(barHeight); i++ {
		// top of the bar is +1
		norm := 1 - float64(i)/barHeight
		dc.SetColor(valueToColor(norm))
		dc.DrawRectangle(barX, barTop+float64(i), 16, 1)
		dc.Fill()
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored("1", barX+22, barTop, 0, 0.5)
	dc.DrawStringAnchored("0", barX+22, barTop+barHeight/2, 0, 0.5)
	dc.DrawStringAnchored("-1", barX+22, barTop+barHeight, 0, 0.5)
}
