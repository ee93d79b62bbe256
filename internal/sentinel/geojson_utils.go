package sentinel

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// FootprintCentroid returns the centre of a raster footprint in CRS units.
func FootprintCentroid(bound orb.Bound) (float64, float64, error) {
	centroid, area := planar.CentroidArea(bound.ToPolygon())
	if area <= 0 {
		return 0, 0, fmt.Errorf("footprint %v has no area", bound)
	}
	return centroid.X(), centroid.Y(), nil
}

// WriteFootprint stores the footprint of an output raster as a GeoJSON
// FeatureCollection holding one polygon. Coordinates stay in the raster CRS.
func WriteFootprint(path string, bound orb.Bound, properties map[string]interface{}) error {
	feature := geojson.NewFeature(bound.ToPolygon())
	for key, value := range properties {
		feature.Properties[key] = value
	}
	if x, y, err := FootprintCentroid(bound); err == nil {
		feature.Properties["centroid"] = []float64{x, y}
	}

	collection := geojson.NewFeatureCollection()
	collection.Append(feature)

	data, err := collection.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode footprint: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write footprint %s: %w", path, err)
	}
	return nil
}
