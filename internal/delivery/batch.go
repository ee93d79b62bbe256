package delivery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andaleebali/sent-2-analysis/internal/final"
	"github.com/andaleebali/sent-2-analysis/internal/sentinel"
	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
)

// SummaryFile is the name of the per-run CSV written next to the outputs.
const SummaryFile = "summary.csv"

// BatchResult collects the outcome of every scene of a run, ordered by
// scene name.
type BatchResult struct {
	Scenes     []SceneResult
	ArchiveErr error
	Summary    string
}

// Failed reports whether any scene or archive failed.
func (b BatchResult) Failed() bool {
	if b.ArchiveErr != nil {
		return true
	}
	for _, r := range b.Scenes {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Errors returns every archive failure followed by every scene failure
// tagged with its scene name.
func (b BatchResult) Errors() []error {
	var errs []error
	if b.ArchiveErr != nil {
		if joined, ok := b.ArchiveErr.(interface{ Unwrap() []error }); ok {
			errs = append(errs, joined.Unwrap()...)
		} else {
			errs = append(errs, b.ArchiveErr)
		}
	}
	for _, r := range b.Scenes {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("scene %s: %w", r.Scene.Name, r.Err))
		}
	}
	return errs
}

// DiscoverScenes returns every scene found below folder and extractRoot,
// each directory once. A folder without scene directories is itself the
// only scene.
func DiscoverScenes(folder, extractRoot string) ([]sentinel.Scene, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input folder %s is not a directory", folder)
	}

	roots := []string{folder}
	if extractRoot != "" {
		if _, err := os.Stat(extractRoot); err == nil {
			roots = append(roots, extractRoot)
		}
	}

	seen := make(map[string]bool)
	var scenes []sentinel.Scene
	for _, root := range roots {
		found, err := sentinel.FindScenes(root, sentinel.SceneSuffix)
		if err != nil {
			return nil, err
		}
		for _, s := range found {
			abs, err := filepath.Abs(s.Root)
			if err != nil {
				return nil, err
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			scenes = append(scenes, s)
		}
	}

	if len(scenes) == 0 {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, sentinel.Scene{Name: filepath.Base(abs), Root: folder})
	}
	return scenes, nil
}

// Run processes every scene of req concurrently. An archive that cannot be
// expanded fails the run like a failing scene but stops nothing; a failing
// scene does not stop its siblings. Two scenes resolving to the same output
// path are never both processed: the later one fails with
// *DuplicateOutputError.
func (p *Pipeline) Run(req Request) (BatchResult, error) {
	var batch BatchResult

	if req.ExtractRoot != "" {
		if _, err := os.Stat(req.Folder); err == nil {
			_, batch.ArchiveErr = p.unpacker.UnpackAll(req.Folder, req.ExtractRoot)
		}
	}

	scenes, err := DiscoverScenes(req.Folder, req.ExtractRoot)
	if err != nil {
		return batch, err
	}
	p.logger.Info("scenes found", "count", len(scenes), "folder", req.Folder)

	workers := req.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu          sync.Mutex
		results     = make([]SceneResult, 0, len(scenes))
		single      = len(scenes) == 1
		progressBar = progressbar.Default(int64(len(scenes)), "Processing scenes")
	)

	wp := workerpool.New(workers)
	claimed := make(map[string]string, len(scenes))
	for _, scene := range scenes {
		s := scene
		output := OutputPath(req.Output, s, req.BandA, req.BandB, single)
		key, err := filepath.Abs(output)
		if err != nil {
			key = output
		}
		if first, ok := claimed[key]; ok {
			dup := SceneResult{Scene: s, Err: &DuplicateOutputError{Output: output, Root: s.Root, First: first}}
			p.logger.Error("scene failed", "scene", s.Name, "error", dup.Err)
			mu.Lock()
			results = append(results, dup)
			progressBar.Add(1)
			mu.Unlock()
			continue
		}
		claimed[key] = s.Root

		wp.Submit(func() {
			r := p.ProcessScene(s, req, output)
			if r.Err != nil {
				p.logger.Error("scene failed", "scene", s.Name, "error", r.Err)
			} else {
				p.logger.Info("scene complete", "scene", s.Name, "output", r.Output)
			}

			mu.Lock()
			results = append(results, r)
			progressBar.Add(1)
			mu.Unlock()
		})
	}
	wp.StopWait()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Scene.Name != results[j].Scene.Name {
			return results[i].Scene.Name < results[j].Scene.Name
		}
		return results[i].Scene.Root < results[j].Scene.Root
	})
	batch.Scenes = results

	summary := filepath.Join(OutputDir(req.Output), SummaryFile)
	if err := final.SaveSummary(summary, summaryRows(req, results, archiveErrors(batch.ArchiveErr))); err != nil {
		p.logger.Warn("failed to write run summary", "path", summary, "error", err)
	} else {
		batch.Summary = summary
	}
	return batch, nil
}

// OutputDir is the directory receiving the rasters named by output.
func OutputDir(output string) string {
	if isTIFF(output) {
		return filepath.Dir(output)
	}
	return output
}

// archiveErrors flattens the joined error of UnpackAll.
func archiveErrors(err error) []*sentinel.ArchiveError {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	var archives []*sentinel.ArchiveError
	for _, e := range errs {
		var archiveErr *sentinel.ArchiveError
		if errors.As(e, &archiveErr) {
			archives = append(archives, archiveErr)
		}
	}
	return archives
}

func summaryRows(req Request, results []SceneResult, archives []*sentinel.ArchiveError) []final.SceneRow {
	now := time.Now().UTC()
	rows := make([]final.SceneRow, 0, len(archives)+len(results))
	for _, a := range archives {
		rows = append(rows, final.SceneRow{
			Scene:      sentinel.ArchiveScene(a.Archive),
			BandA:      req.BandA,
			BandB:      req.BandB,
			Resolution: req.Resolution,
			Error:      a.Error(),
			CreatedAt:  now,
		})
	}
	for _, r := range results {
		row := final.SceneRow{
			Scene:      r.Scene.Name,
			BandA:      req.BandA,
			BandB:      req.BandB,
			Resolution: req.Resolution,
			Output:     r.Output,
			CreatedAt:  now,
		}
		if r.Err != nil {
			row.Output = ""
			row.Error = r.Err.Error()
		} else {
			row.Stats = r.Stats
			b := r.Profile.Bound()
			row.MinX, row.MinY = b.Min[0], b.Min[1]
			row.MaxX, row.MaxY = b.Max[0], b.Max[1]
		}
		rows = append(rows, row)
	}
	return rows
}

func isTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
