// Package delivery runs the band-to-index pipeline for one scene or a folder
// of scenes.
package delivery

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andaleebali/sent-2-analysis/internal/cache"
	"github.com/andaleebali/sent-2-analysis/internal/index"
	"github.com/andaleebali/sent-2-analysis/internal/raster"
	"github.com/andaleebali/sent-2-analysis/internal/sentinel"
)

// Request carries the run parameters as given on the command line.
type Request struct {
	Folder      string
	BandA       string
	BandB       string
	Resolution  string
	Extension   string
	Output      string
	ExtractRoot string
	Visualise   bool
	Workers     int
}

// Visualizer renders a finished index grid. Its failures never fail a scene.
type Visualizer interface {
	Render(grid raster.Grid, name string) (string, error)
	Histogram(grid raster.Grid, name string) (string, error)
}

// SceneResult is the outcome of one scene.
type SceneResult struct {
	Scene     sentinel.Scene
	BandAPath string
	BandBPath string
	Output    string
	Profile   raster.Profile
	Stats     index.Stats
	Err       error
}

type Pipeline struct {
	logger     *slog.Logger
	unpacker   *sentinel.Unpacker
	writer     *raster.Writer
	visualizer Visualizer
	stats      cache.CacheService[index.Stats]
}

type Option func(*Pipeline)

// WithVisualizer sets the renderer used when a request asks for visualisation.
func WithVisualizer(v Visualizer) Option {
	return func(p *Pipeline) { p.visualizer = v }
}

// WithStatsCache stores the summary of every written raster.
func WithStatsCache(c cache.CacheService[index.Stats]) Option {
	return func(p *Pipeline) { p.stats = c }
}

func NewPipeline(logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Pipeline{
		logger:   logger,
		unpacker: sentinel.NewUnpacker(logger),
		writer:   raster.NewWriter(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OutputPath names the index raster of a scene. A request output ending in
// .tif is used verbatim when single is true; otherwise it is a directory.
func OutputPath(output string, scene sentinel.Scene, bandA, bandB string, single bool) string {
	if isTIFF(output) {
		if single {
			return output
		}
		output = filepath.Dir(output)
	}
	return filepath.Join(output, fmt.Sprintf("%s_%s_%s.tif", scene.Name, bandA, bandB))
}

// ComputeIndex reads both bands and returns their normalised difference.
// Each band file is opened and closed before the next one is read.
func (p *Pipeline) ComputeIndex(bandAPath, bandBPath string) (raster.Grid, error) {
	p.logger.Info("reading band A", "path", bandAPath)
	bandA, err := raster.ReadBand(bandAPath)
	if err != nil {
		return raster.Grid{}, err
	}

	p.logger.Info("reading band B", "path", bandBPath)
	bandB, err := raster.ReadBand(bandBPath)
	if err != nil {
		return raster.Grid{}, err
	}

	result, err := index.Compute(bandA, bandB)
	if err != nil {
		return raster.Grid{}, err
	}
	p.logger.Info("index calculation complete", "width", result.Width, "height", result.Height)
	return result, nil
}

// ProcessScene locates the two bands of scene, computes the index and writes
// it to output, georeferenced like band A.
func (p *Pipeline) ProcessScene(scene sentinel.Scene, req Request, output string) SceneResult {
	result := SceneResult{Scene: scene, Output: output}
	logger := p.logger.With("scene", scene.Name)

	ext := req.Extension
	if ext == "" {
		ext = sentinel.BandExt
	}

	result.BandAPath, result.Err = sentinel.FindBand(scene.Root, req.BandA, req.Resolution, ext)
	if result.Err != nil {
		return result
	}
	result.BandBPath, result.Err = sentinel.FindBand(scene.Root, req.BandB, req.Resolution, ext)
	if result.Err != nil {
		return result
	}

	grid, err := p.ComputeIndex(result.BandAPath, result.BandBPath)
	if err != nil {
		result.Err = err
		return result
	}

	result.Profile, result.Err = p.writer.Write(result.BandAPath, grid, output)
	if result.Err != nil {
		return result
	}

	stats, err := index.SummarizeGrid(grid)
	if err != nil {
		logger.Warn("no summary statistics", "error", err)
	} else {
		result.Stats = stats
		p.cacheStats(output, stats)
		logger.Info("index summary", "mean", stats.Mean, "min", stats.Min, "max", stats.Max, "std", stats.Std, "median", stats.Median)
	}

	footprint := strings.TrimSuffix(output, filepath.Ext(output)) + ".geojson"
	props := map[string]interface{}{
		"scene":  scene.Name,
		"band_a": req.BandA,
		"band_b": req.BandB,
		"crs":    result.Profile.CRS,
	}
	if err := sentinel.WriteFootprint(footprint, result.Profile.Bound(), props); err != nil {
		logger.Warn("failed to write footprint", "path", footprint, "error", err)
	}

	if req.Visualise && p.visualizer != nil {
		p.visualise(logger, grid, strings.TrimSuffix(filepath.Base(output), filepath.Ext(output)))
	}
	return result
}

func (p *Pipeline) visualise(logger *slog.Logger, grid raster.Grid, name string) {
	if _, err := p.visualizer.Render(grid, name); err != nil {
		logger.Warn("visualisation failed", "error", err)
	}
	if _, err := p.visualizer.Histogram(grid, name); err != nil {
		logger.Warn("histogram failed", "error", err)
	}
}

func (p *Pipeline) cacheStats(path string, stats index.Stats) {
	if p.stats == nil {
		return
	}
	key, err := StatsKey(p.stats, path)
	if err == nil {
		err = p.stats.Set(key, stats)
	}
	if err != nil {
		p.logger.Warn("failed to cache summary statistics", "path", path, "error", err)
	}
}

// StatsKey identifies a raster file by path, size and modification time.
func StatsKey(c cache.CacheService[index.Stats], path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return c.GenerateKey(abs, info.Size(), info.ModTime().UTC().Format(time.RFC3339Nano)), nil
}

// RasterStats summarizes band 1 of any raster, answering from the cache when
// the file has not changed since it was last summarized.
func RasterStats(c cache.CacheService[index.Stats], path string) (index.Stats, error) {
	var key string
	if c != nil {
		if k, err := StatsKey(c, path); err == nil {
			key = k
			if stats, ok := c.Get(key); ok {
				return stats, nil
			}
		}
	}

	grid, err := raster.ReadBand(path)
	if err != nil {
		return index.Stats{}, err
	}
	stats, err := index.SummarizeGrid(grid)
	if err != nil {
		return index.Stats{}, fmt.Errorf("%s: %w", path, err)
	}
	if key != "" {
		if err := c.Set(key, stats); err != nil {
			return stats, fmt.Errorf("failed to cache statistics: %w", err)
		}
	}
	return stats, nil
}

