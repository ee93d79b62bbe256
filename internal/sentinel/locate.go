package sentinel

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

const (
	// SceneSuffix marks a product directory as a processable scene.
	SceneSuffix = ".SAFE"
	// BandExt is the extension of Sentinel-2 band files.
	BandExt = "jp2"
)

// Scene is one product directory tree.
type Scene struct {
	Name string
	Root string
}

// BandPattern returns the glob matching a band file name, e.g. *B04_10m.jp2.
func BandPattern(band, resolution, ext string) string {
	return fmt.Sprintf("*%s_%s.%s", band, resolution, strings.TrimPrefix(ext, "."))
}

// LocateBands returns every file below root whose name matches
// BandPattern(band, resolution, ext), sorted so the first entry is the
// authoritative one. No match is a *BandNotFoundError; an unreadable
// directory below root fails the search instead.
func LocateBands(root, band, resolution, ext string) ([]string, error) {
	pattern := BandPattern(band, resolution, ext)
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid band pattern %q: %w", pattern, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scene root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scene root %s is not a directory", root)
	}

	var (
		mu      sync.Mutex
		matches []string
	)
	conf := &fastwalk.Config{Follow: false}
	walkErr := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			mu.Lock()
			matches = append(matches, path)
			mu.Unlock()
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to search %s: %w", root, walkErr)
	}

	if len(matches) == 0 {
		return nil, &BandNotFoundError{Band: band, Resolution: resolution, Root: root, Pattern: pattern}
	}
	sort.Strings(matches)
	return matches, nil
}

// FindBand returns the authoritative match of LocateBands.
func FindBand(root, band, resolution, ext string) (string, error) {
	matches, err := LocateBands(root, band, resolution, ext)
	if err != nil {
		return "", err
	}
	return matches[0], nil
}

// FindScenes returns the directories below folder (folder included) whose
// name ends in suffix. The walk does not descend into a scene once found.
func FindScenes(folder, suffix string) ([]Scene, error) {
	var (
		mu     sync.Mutex
		scenes []Scene
	)
	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		mu.Lock()
		scenes = append(scenes, Scene{Name: strings.TrimSuffix(d.Name(), suffix), Root: path})
		mu.Unlock()
		return fs.SkipDir
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search scenes in %s: %w", folder, err)
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].Root < scenes[j].Root
	})
	return scenes, nil
}
