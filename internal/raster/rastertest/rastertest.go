// Package rastertest builds small georeferenced GeoTIFF fixtures for tests.
package rastertest

import (
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/require"
)

// Transform is the geotransform given to every fixture: 10 m pixels in UTM 60S.
var Transform = [6]float64{600000, 10, 0, 5900020, 0, -10}

// EPSG is the CRS given to every fixture.
const EPSG = 32760

// WriteBand writes a single-band uint16 GeoTIFF at path.
func WriteBand(t *testing.T, path string, width, height int, values []uint16) {
	t.Helper()
	require.Len(t, values, width*height)

	godal.RegisterAll()
	ds, err := godal.Create(godal.GTiff, path, 1, godal.UInt16, width, height)
	require.NoError(t, err)

	require.NoError(t, ds.SetGeoTransform(Transform))
	sr, err := godal.NewSpatialRefFromEPSG(EPSG)
	require.NoError(t, err)
	defer sr.Close()
	require.NoError(t, ds.SetSpatialRef(sr))

	require.NoError(t, ds.Bands()[0].Write(0, 0, values, width, height))
	require.NoError(t, ds.Close())
}
