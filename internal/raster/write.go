package raster

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
)

// OutputProfile derives the profile of an index raster from its reference band:
// same transform, CRS and dimensions, one float32 band with a NaN nodata sentinel.
func OutputProfile(src Profile) Profile {
	return Profile{
		Transform: src.Transform,
		CRS:       src.CRS,
		Width:     src.Width,
		Height:    src.Height,
		BandCount: 1,
		DataType:  godal.Float32,
		NoData:    math.NaN(),
		HasNoData: true,
		Driver:    godal.GTiff,
	}
}

// Writer persists result grids as GeoTIFFs georeferenced like a reference band.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{logger: logger}
}

// Write stores result at outputPath using the output profile derived from the
// band at referencePath. The file is written under a temporary name and renamed
// into place, so outputPath only ever holds a complete raster.
func (w *Writer) Write(referencePath string, result Grid, outputPath string) (Profile, error) {
	src, err := ReadProfile(referencePath)
	if err != nil {
		return Profile{}, err
	}
	profile := OutputProfile(src)

	if !result.Consistent() || result.Width != profile.Width || result.Height != profile.Height {
		return Profile{}, &IOError{
			Op:   "write",
			Path: outputPath,
			Err:  fmt.Errorf("%w: grid %dx%d, reference %dx%d", ErrShape, result.Width, result.Height, profile.Width, profile.Height),
		}
	}

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Profile{}, &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return Profile{}, &IOError{Op: "create", Path: outputPath, Err: err}
	}
	tmpName := tmp.Name()
	tmp.Close()

	if err := create(profile, result, tmpName); err != nil {
		os.Remove(tmpName)
		return Profile{}, &IOError{Op: "write", Path: outputPath, Err: err}
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		os.Remove(tmpName)
		return Profile{}, &IOError{Op: "rename", Path: outputPath, Err: err}
	}

	w.logger.Info("raster written",
		"path", outputPath,
		"width", profile.Width,
		"height", profile.Height,
		"reference", referencePath,
	)
	return profile, nil
}

func create(profile Profile, grid Grid, name string) error {
	registerDrivers()
	ds, err := godal.Create(profile.Driver, name, profile.BandCount, profile.DataType, profile.Width, profile.Height,
		godal.CreationOption("COMPRESS=DEFLATE"))
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}

	if err := ds.SetGeoTransform(profile.Transform); err != nil {
		ds.Close()
		return fmt.Errorf("set geotransform: %w", err)
	}
	if profile.CRS != "" {
		if err := ds.SetProjection(profile.CRS); err != nil {
			ds.Close()
			return fmt.Errorf("set projection: %w", err)
		}
	}

	band := ds.Bands()[0]
	if profile.HasNoData {
		if err := band.SetNoData(profile.NoData); err != nil {
			ds.Close()
			return fmt.Errorf("set nodata: %w", err)
		}
	}
	if err := band.Write(0, 0, grid.Float32(), profile.Width, profile.Height); err != nil {
		ds.Close()
		return fmt.Errorf("write band: %w", err)
	}

	// Close flushes the GeoTIFF; its error is the write error.
	return ds.Close()
}
