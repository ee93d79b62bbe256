// Package final writes the per-run summary of processed scenes.
package final

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/andaleebali/sent-2-analysis/internal/index"
	"github.com/gocarina/gocsv"
)

// SceneRow is one line of the run summary. Stats and bounds are zero when
// the scene failed; Error then holds the reason.
type SceneRow struct {
	Scene      string `csv:"scene"`
	BandA      string `csv:"band_a"`
	BandB      string `csv:"band_b"`
	Resolution string `csv:"resolution"`
	Output     string `csv:"output"`
	index.Stats
	MinX      float64   `csv:"min_x"`
	MinY      float64   `csv:"min_y"`
	MaxX      float64   `csv:"max_x"`
	MaxY      float64   `csv:"max_y"`
	Error     string    `csv:"error"`
	CreatedAt time.Time `csv:"created_at"`
}

func SaveSummary(path string, rows []SceneRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("no scene rows to save")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return nil
}

func LoadSummary(path string) ([]SceneRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary file: %w", err)
	}
	defer file.Close()

	var rows []SceneRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to read summary %s: %w", path, err)
	}
	return rows, nil
}
