package raster

import (
	"math"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
)

// Profile describes how a band maps to geographic space and how it is encoded.
// It is a value type: derive new profiles instead of mutating shared ones.
type Profile struct {
	Transform [6]float64
	CRS       string // WKT
	Width     int
	Height    int
	BandCount int
	DataType  godal.DataType
	NoData    float64
	HasNoData bool
	Driver    godal.DriverName
}

// SameSpatial reports whether both profiles share transform, CRS and dimensions.
func (p Profile) SameSpatial(other Profile) bool {
	return p.Transform == other.Transform &&
		p.CRS == other.CRS &&
		p.Width == other.Width &&
		p.Height == other.Height
}

// SameNoData compares nodata values, treating two NaN sentinels as equal.
func (p Profile) SameNoData(other Profile) bool {
	if p.HasNoData != other.HasNoData {
		return false
	}
	if math.IsNaN(p.NoData) && math.IsNaN(other.NoData) {
		return true
	}
	return p.NoData == other.NoData
}

// PixelToWorld applies the affine geotransform to a pixel corner.
func (p Profile) PixelToWorld(col, row float64) (float64, float64) {
	gt := p.Transform
	x := gt[0] + col*gt[1] + row*gt[2]
	y := gt[3] + col*gt[4] + row*gt[5]
	return x, y
}

// Bound returns the raster footprint in CRS units.
func (p Profile) Bound() orb.Bound {
	w, h := float64(p.Width), float64(p.Height)
	corners := orb.MultiPoint{}
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}} {
		x, y := p.PixelToWorld(c[0], c[1])
		corners = append(corners, orb.Point{x, y})
	}
	return corners.Bound()
}
