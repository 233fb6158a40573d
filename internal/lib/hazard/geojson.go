package hazard

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// RadiusProperty is the feature property holding a buffered point's radius
const RadiusProperty = "radius_meters"

// ShapesFromGeoJSON reads hazards from a GeoJSON FeatureCollection. Point
// features become buffered points using the radius_meters property (or
// defaultRadius when absent); Polygon and MultiPolygon features become drawn
// polygons.
func ShapesFromGeoJSON(data []byte, defaultRadius float64) ([]Shape, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode feature collection: %w", err)
	}

	shapes := make([]Shape, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			center := geo.Point{Latitude: g.Lat(), Longitude: g.Lon()}
			shapes = append(shapes, Shape{
				Kind:         BufferedPoint,
				Center:       &center,
				RadiusMeters: f.Properties.MustFloat64(RadiusProperty, defaultRadius),
			})
		default:
			geometry, err := geo.FromOrbGeometry(g)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			shapes = append(shapes, Shape{Kind: DrawnPolygon, Geometry: geometry})
		}
	}
	return shapes, nil
}
