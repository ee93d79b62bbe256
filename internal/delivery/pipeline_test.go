package delivery

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/andaleebali/sent-2-analysis/internal/cache"
	"github.com/andaleebali/sent-2-analysis/internal/final"
	"github.com/andaleebali/sent-2-analysis/internal/index"
	"github.com/andaleebali/sent-2-analysis/internal/raster"
	"github.com/andaleebali/sent-2-analysis/internal/raster/rastertest"
	"github.com/andaleebali/sent-2-analysis/internal/sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVisualizer struct {
	mu      sync.Mutex
	renders []string
	err     error
}

func (s *stubVisualizer) Render(grid raster.Grid, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renders = append(s.renders, name)
	return name + ".png", s.err
}

func (s *stubVisualizer) Histogram(grid raster.Grid, name string) (string, error) {
	return name + "_histogram.png", s.err
}

var (
	redValues = []uint16{100, 200, 0, 50}
	nirValues = []uint16{300, 200, 0, 150}
)

// writeScene builds a .SAFE tree holding the given bands as 2x2 GeoTIFFs.
func writeScene(t *testing.T, folder, name string, bands map[string][]uint16) sentinel.Scene {
	t.Helper()
	root := filepath.Join(folder, name+sentinel.SceneSuffix)
	dir := filepath.Join(root, "GRANULE", "L2A_T60HWC", "IMG_DATA", "R10m")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for band, values := range bands {
		rastertest.WriteBand(t, filepath.Join(dir, "T60HWC_"+band+"_10m.tif"), 2, 2, values)
	}
	return sentinel.Scene{Name: name, Root: root}
}

func request(folder, output string) Request {
	return Request{
		Folder:     folder,
		BandA:      "B04",
		BandB:      "B08",
		Resolution: "10m",
		Extension:  "tif",
		Output:     output,
		Workers:    2,
	}
}

func TestOutputPath(t *testing.T) {
	scene := sentinel.Scene{Name: "S2A_T60HWC", Root: "in/S2A_T60HWC.SAFE"}

	tests := []struct {
		name   string
		output string
		single bool
		want   string
	}{
		{"directory", "Outputs", false, filepath.Join("Outputs", "S2A_T60HWC_B04_B08.tif")},
		{"directory single", "Outputs", true, filepath.Join("Outputs", "S2A_T60HWC_B04_B08.tif")},
		{"file single", "out/ndvi.tif", true, "out/ndvi.tif"},
		{"file upper case", "out/ndvi.TIFF", true, "out/ndvi.TIFF"},
		{"file with many scenes", "out/ndvi.tif", false, filepath.Join("out", "S2A_T60HWC_B04_B08.tif")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputPath(tt.output, scene, "B04", "B08", tt.single))
		})
	}
}

func TestProcessScene(t *testing.T) {
	folder := t.TempDir()
	scene := writeScene(t, folder, "S2A_T60HWC", map[string][]uint16{"B04": redValues, "B08": nirValues})
	output := filepath.Join(t.TempDir(), "ndvi.tif")
	vis := &stubVisualizer{}
	stats := cache.NewFileCache[index.Stats](t.TempDir())

	p := NewPipeline(nil, WithVisualizer(vis), WithStatsCache(stats))
	req := request(folder, output)
	req.Visualise = true
	result := p.ProcessScene(scene, req, output)
	require.NoError(t, result.Err)

	grid, err := raster.ReadBand(output)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, grid.Data[0], 1e-6)
	assert.InDelta(t, 0.0, grid.Data[1], 1e-6)
	assert.True(t, math.IsNaN(grid.Data[2]))
	assert.InDelta(t, 0.5, grid.Data[3], 1e-6)

	profile, err := raster.ReadProfile(output)
	require.NoError(t, err)
	assert.Equal(t, rastertest.Transform, profile.Transform)

	assert.Equal(t, 3, result.Stats.Count)
	assert.InDelta(t, 1.0/3, result.Stats.Mean, 1e-6)
	assert.Equal(t, []string{"ndvi"}, vis.renders)
	assert.FileExists(t, filepath.Join(filepath.Dir(output), "ndvi.geojson"))

	t.Run("stats are cached", func(t *testing.T) {
		key, err := StatsKey(stats, output)
		require.NoError(t, err)
		cached, ok := stats.Get(key)
		require.True(t, ok)
		assert.Equal(t, result.Stats, cached)

		got, err := RasterStats(stats, output)
		require.NoError(t, err)
		assert.Equal(t, result.Stats, got)
	})
}

func TestProcessSceneVisualiseFailureIsNotFatal(t *testing.T) {
	folder := t.TempDir()
	scene := writeScene(t, folder, "S2A_T60HWC", map[string][]uint16{"B04": redValues, "B08": nirValues})
	output := filepath.Join(t.TempDir(), "ndvi.tif")

	p := NewPipeline(nil, WithVisualizer(&stubVisualizer{err: errors.New("no display")}))
	req := request(folder, output)
	req.Visualise = true
	result := p.ProcessScene(scene, req, output)
	require.NoError(t, result.Err)
	assert.FileExists(t, output)
}

func TestProcessSceneMissingBand(t *testing.T) {
	folder := t.TempDir()
	scene := writeScene(t, folder, "S2A_T60HWC", map[string][]uint16{"B04": redValues})
	output := filepath.Join(t.TempDir(), "ndvi.tif")

	result := NewPipeline(nil).ProcessScene(scene, request(folder, output), output)
	var notFound *sentinel.BandNotFoundError
	require.True(t, errors.As(result.Err, &notFound))
	assert.Equal(t, "B08", notFound.Band)
	assert.NoFileExists(t, output)
}

func TestRasterStatsWithoutCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "band.tif")
	rastertest.WriteBand(t, path, 2, 2, []uint16{1, 2, 3, 4})

	stats, err := RasterStats(nil, path)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 2.5, stats.Mean, 1e-9)
	assert.InDelta(t, 2.5, stats.Median, 1e-9)
}

func TestDiscoverScenes(t *testing.T) {
	t.Run("safe directories", func(t *testing.T) {
		folder := t.TempDir()
		extract := filepath.Join(folder, "extracted")
		require.NoError(t, os.MkdirAll(filepath.Join(folder, "B.SAFE"), 0755))
		require.NoError(t, os.MkdirAll(filepath.Join(extract, "zipped", "A.SAFE"), 0755))

		scenes, err := DiscoverScenes(folder, extract)
		require.NoError(t, err)
		var names []string
		for _, s := range scenes {
			names = append(names, s.Name)
		}
		assert.ElementsMatch(t, []string{"A", "B"}, names)
	})

	t.Run("folder is the scene", func(t *testing.T) {
		folder := filepath.Join(t.TempDir(), "T60HWC")
		require.NoError(t, os.MkdirAll(folder, 0755))

		scenes, err := DiscoverScenes(folder, "")
		require.NoError(t, err)
		assert.Equal(t, []sentinel.Scene{{Name: "T60HWC", Root: folder}}, scenes)
	})

	t.Run("missing folder", func(t *testing.T) {
		_, err := DiscoverScenes(filepath.Join(t.TempDir(), "absent"), "")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestRun(t *testing.T) {
	folder := t.TempDir()
	writeScene(t, folder, "S2A_GOOD", map[string][]uint16{"B04": redValues, "B08": nirValues})
	writeScene(t, folder, "S2B_BROKEN", map[string][]uint16{"B04": redValues})
	output := filepath.Join(t.TempDir(), "Outputs")

	batch, err := NewPipeline(nil).Run(request(folder, output))
	require.NoError(t, err)
	require.Len(t, batch.Scenes, 2)
	assert.True(t, batch.Failed())
	assert.Len(t, batch.Errors(), 1)
	assert.NoError(t, batch.ArchiveErr)

	good, broken := batch.Scenes[0], batch.Scenes[1]
	assert.Equal(t, "S2A_GOOD", good.Scene.Name)
	assert.NoError(t, good.Err)
	assert.FileExists(t, filepath.Join(output, "S2A_GOOD_B04_B08.tif"))
	assert.Equal(t, "S2B_BROKEN", broken.Scene.Name)
	assert.Error(t, broken.Err)
	assert.NoFileExists(t, filepath.Join(output, "S2B_BROKEN_B04_B08.tif"))

	rows, err := final.LoadSummary(filepath.Join(output, SummaryFile))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Count)
	assert.NotEmpty(t, rows[1].Error)
}

func TestRunSingleSceneVerbatimOutput(t *testing.T) {
	folder := t.TempDir()
	writeScene(t, folder, "S2A_GOOD", map[string][]uint16{"B04": redValues, "B08": nirValues})
	output := filepath.Join(t.TempDir(), "ndvi.tif")

	batch, err := NewPipeline(nil).Run(request(folder, output))
	require.NoError(t, err)
	assert.False(t, batch.Failed())
	assert.FileExists(t, output)
	assert.Equal(t, filepath.Join(filepath.Dir(output), SummaryFile), batch.Summary)
}
