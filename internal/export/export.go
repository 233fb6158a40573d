package export

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/twpayne/go-kml"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/avoidance"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// DefaultRouteTolerance is the Douglas-Peucker tolerance in meters applied
// to routes before hand-off. Well under the off-route threshold.
const DefaultRouteTolerance = 5.0

// WriteKML writes the accepted avoidance polygons and, when route is not
// nil, the simplified route as a KML document. toleranceMeters <= 0 keeps
// every route vertex.
func WriteKML(w io.Writer, region avoidance.Region, route *geo.Polyline, toleranceMeters float64) error {
	areas := []kml.Element{kml.Name("Avoidance region")}
	for i, poly := range region.Accepted {
		areas = append(areas, kml.Placemark(
			kml.Name(fmt.Sprintf("Avoidance %d", i+1)),
			kml.Description(fmt.Sprintf("%.2f km²", geo.Area(poly))),
			kmlPolygon(poly),
		))
	}

	children := []kml.Element{
		kml.Name("Hazard avoidance"),
		kml.Folder(areas...),
	}

	if route != nil && len(route.Points) >= 2 {
		line := *route
		if toleranceMeters > 0 {
			line = geo.Simplify(line, toleranceMeters)
		}
		children = append(children, kml.Placemark(
			kml.Name("Route"),
			kml.Description(fmt.Sprintf("%.1f km", geo.PathLength(route.Points)/1000)),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(kmlCoordinates(line.Points)...),
			),
		))
	}

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

func kmlPolygon(poly geo.Polygon) kml.Element {
	elements := []kml.Element{
		kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(kmlCoordinates(poly.Outer())...))),
	}
	for _, hole := range poly.Holes() {
		elements = append(elements, kml.InnerBoundaryIs(kml.LinearRing(kml.Coordinates(kmlCoordinates(hole)...))))
	}
	return kml.Polygon(elements...)
}

func kmlCoordinates(points []geo.Point) []kml.Coordinate {
	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	return coords
}

// RegionGeoJSON returns the avoidance region as a GeoJSON FeatureCollection:
// one feature per accepted polygon, plus the route as a LineString when
// route is not nil.
func RegionGeoJSON(region avoidance.Region, route *geo.Polyline) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for i, poly := range region.Accepted {
		f := geojson.NewFeature(geo.ToOrbPolygon(poly))
		f.Properties["kind"] = "avoidance"
		f.Properties["index"] = i
		f.Properties["area_km2"] = geo.Area(poly)
		fc.Append(f)
	}

	if route != nil && len(route.Points) >= 2 {
		ls := make(orb.LineString, len(route.Points))
		for i, p := range route.Points {
			ls[i] = orb.Point{p.Longitude, p.Latitude}
		}
		f := geojson.NewFeature(ls)
		f.Properties["kind"] = "route"
		f.Properties["length_km"] = geo.PathLength(route.Points) / 1000
		fc.Append(f)
	}

	fc.ExtraMembers = geojson.Properties{
		"dropped": len(region.Dropped),
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	return data, nil
}
