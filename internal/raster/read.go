package raster

import (
	"errors"
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

func registerDrivers() {
	registerOnce.Do(godal.RegisterAll)
}

// openDataset opens path read-only. GDAL warnings are dropped, failures are
// returned as *IOError.
func openDataset(path string) (*godal.Dataset, error) {
	registerDrivers()
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return errors.New(msg)
	}))
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	return ds, nil
}

func profileOf(ds *godal.Dataset, path string) (Profile, error) {
	bands := ds.Bands()
	if len(bands) == 0 {
		return Profile{}, &IOError{Op: "read", Path: path, Err: ErrNoBand}
	}

	geoTransform, err := ds.GeoTransform()
	if err != nil {
		return Profile{}, &IOError{Op: "read", Path: path, Err: fmt.Errorf("geotransform: %w", err)}
	}

	structure := ds.Structure()
	noData, hasNoData := bands[0].NoData()
	return Profile{
		Transform: geoTransform,
		CRS:       ds.Projection(),
		Width:     structure.SizeX,
		Height:    structure.SizeY,
		BandCount: structure.NBands,
		DataType:  bands[0].Structure().DataType,
		NoData:    noData,
		HasNoData: hasNoData,
	}, nil
}

// ReadProfile returns the georeferencing and encoding metadata of the raster at path.
func ReadProfile(path string) (Profile, error) {
	ds, err := openDataset(path)
	if err != nil {
		return Profile{}, err
	}
	defer ds.Close()

	return profileOf(ds, path)
}

// ReadBand reads the full extent of the first band at path as float64,
// whatever the on-disk pixel encoding.
func ReadBand(path string) (Grid, error) {
	ds, err := openDataset(path)
	if err != nil {
		return Grid{}, err
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return Grid{}, &IOError{Op: "read", Path: path, Err: ErrNoBand}
	}

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	grid := NewGrid(width, height)
	if err := bands[0].Read(0, 0, grid.Data, width, height); err != nil {
		return Grid{}, &IOError{Op: "read", Path: path, Err: fmt.Errorf("band 1: %w", err)}
	}
	return grid, nil
}
