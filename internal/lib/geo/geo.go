package geo

import (
	"errors"
	"math"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/twpayne/go-polyline"
)

// metersPerDegree is the length of one degree of arc on the equator.
const metersPerDegree = EarthRadiusMeters * math.Pi / 180

// PointToPoint calculates great-circle distance between two points in meters
func PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return haversine(p1, p2), nil
}

// haversine is PointToPoint without validation, for internal loops over
// points that are already known to be valid.
func haversine(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}
	return toLatLng(p1).Distance(toLatLng(p2)).Radians() * EarthRadiusMeters
}

// PointToPolyline calculates the minimum geodesic distance in meters from a
// point to any segment of the polyline.
func PointToPolyline(point Point, line Polyline) (float64, error) {
	if !isValidCoordinate(point) {
		return 0, errors.New("invalid point coordinates")
	}

	if len(line.Points) == 0 {
		return 0, errors.New("polyline has no points")
	}

	if len(line.Points) == 1 {
		// Single point polyline - return point to point distance
		return PointToPoint(point, line.Points[0])
	}

	target := toS2Point(point)
	closest, _ := toS2Polyline(line.Points).Project(target)
	return closest.Distance(target).Radians() * EarthRadiusMeters, nil
}

// ClosestPointOnPolyline finds the point on the polyline nearest to the
// given point, projecting onto the great-circle segments.
func ClosestPointOnPolyline(point Point, line Polyline) (Point, error) {
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid point coordinates")
	}

	if len(line.Points) == 0 {
		return Point{}, errors.New("polyline has no points")
	}

	if len(line.Points) == 1 {
		return line.Points[0], nil
	}

	closest, _ := toS2Polyline(line.Points).Project(toS2Point(point))
	return fromLatLng(s2.LatLngFromPoint(closest)), nil
}

// PathLength returns the total length of the point sequence in meters.
func PathLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += haversine(points[i-1], points[i])
	}
	return total
}

// Interpolate returns the point reached after travelling distanceMeters
// along the points from the first one. Distances past the end clamp to the
// final point exactly; negative distances clamp to the first point.
func Interpolate(points []Point, distanceMeters float64) Point {
	if len(points) == 0 {
		return Point{}
	}
	if distanceMeters <= 0 {
		return points[0]
	}

	remaining := distanceMeters
	for i := 1; i < len(points); i++ {
		segment := haversine(points[i-1], points[i])
		if segment == 0 {
			continue
		}
		if remaining < segment {
			// Segments are short enough that linear interpolation in
			// degrees stays within the planar approximation.
			t := remaining / segment
			start, end := points[i-1], points[i]
			return Point{
				Latitude:  start.Latitude + t*(end.Latitude-start.Latitude),
				Longitude: start.Longitude + t*(end.Longitude-start.Longitude),
			}
		}
		remaining -= segment
	}

	return points[len(points)-1]
}

// BufferCircle returns a closed polygon of steps vertices approximating a
// circle of radiusMeters around center. Steps below 3 use DefaultCircleSteps.
func BufferCircle(center Point, radiusMeters float64, steps int) Polygon {
	if steps < 3 {
		steps = DefaultCircleSteps
	}

	ring := make(Ring, 0, steps+1)
	for i := 0; i < steps; i++ {
		bearing := float64(i) * -360 / float64(steps)
		ring = append(ring, DestinationPoint(center, bearing, radiusMeters))
	}
	ring = append(ring, ring[0])

	return Polygon{ring}
}

// DestinationPoint calculates the point reached from start after travelling
// distanceMeters along the given initial bearing (degrees clockwise from north).
func DestinationPoint(start Point, bearing, distanceMeters float64) Point {
	ll := toLatLng(start)
	bearingRad := bearing * math.Pi / 180
	angularDistance := distanceMeters / EarthRadiusMeters

	latRad := ll.Lat.Radians()
	lonRad := ll.Lng.Radians()

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(angularDistance) +
		math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(bearingRad))

	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(lat2))

	lng := lon2 * 180 / math.Pi
	// Normalize to [-180, 180]
	lng = math.Mod(lng+540, 360) - 180

	return Point{Latitude: lat2 * 180 / math.Pi, Longitude: lng}
}

// Simplify reduces the polyline with Douglas-Peucker. The tolerance is
// converted from meters to degrees at the equator, which over-simplifies
// slightly towards the poles. Only for hand-off sampling; routing and
// deviation use the full polyline.
func Simplify(line Polyline, toleranceMeters float64) Polyline {
	if len(line.Points) < 3 || toleranceMeters <= 0 {
		return Polyline{Points: append([]Point(nil), line.Points...)}
	}

	ls := make(orb.LineString, len(line.Points))
	for i, p := range line.Points {
		ls[i] = toOrbPoint(p)
	}

	simplified, ok := simplify.DouglasPeucker(toleranceMeters / metersPerDegree).Simplify(ls).(orb.LineString)
	if !ok {
		return Polyline{Points: append([]Point(nil), line.Points...)}
	}

	points := make([]Point, len(simplified))
	for i, p := range simplified {
		points[i] = fromOrbPoint(p)
	}
	return Polyline{Points: points}
}

// DecodePolyline decodes an encoded polyline string to a point sequence
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return nil, errors.New("encoded polyline string is empty")
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, errors.New("failed to decode polyline: " + err.Error())
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !isValidCoordinate(points[i]) {
			return nil, errors.New("decoded polyline contains invalid coordinates")
		}
	}

	return points, nil
}

// EncodePolyline encodes points with the standard 1e5 polyline precision.
func EncodePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// IsValid reports whether the point is a finite WGS84 coordinate.
func (p Point) IsValid() bool {
	return isValidCoordinate(p)
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

func toLatLng(p Point) s2.LatLng {
	return s2.LatLngFromDegrees(p.Latitude, p.Longitude)
}

func fromLatLng(ll s2.LatLng) Point {
	return Point{Latitude: ll.Lat.Degrees(), Longitude: ll.Lng.Degrees()}
}

func toS2Point(p Point) s2.Point {
	return s2.PointFromLatLng(toLatLng(p))
}

func toS2Polyline(points []Point) *s2.Polyline {
	line := make(s2.Polyline, len(points))
	for i, p := range points {
		line[i] = toS2Point(p)
	}
	return &line
}
