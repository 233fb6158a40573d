package geo

// EarthRadiusMeters is the WGS84 equatorial radius. Distances, circle
// buffers and areas all use it so that measurements agree with each other.
const EarthRadiusMeters = 6378137.0

// DefaultCircleSteps is the number of vertices used to approximate a
// circular buffer. At 64 vertices the inscribed polygon loses about 0.16%
// of the true circle area.
const DefaultCircleSteps = 64

// Point represents a geographic coordinate
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Ring is a closed sequence of points; the first and last point are equal.
type Ring []Point

// Polygon holds an outer ring at index 0 followed by zero or more holes.
type Polygon []Ring

// MultiPolygon is an ordered set of polygons.
type MultiPolygon []Polygon

// Polyline represents an encoded polyline with optional decoded points
type Polyline struct {
	EncodedPolyline string  `json:"encoded_polyline,omitempty"`
	Points          []Point `json:"points"`
}

// Outer returns the outer ring of the polygon, or nil for an empty polygon.
func (p Polygon) Outer() Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Holes returns the hole rings of the polygon.
func (p Polygon) Holes() []Ring {
	if len(p) < 2 {
		return nil
	}
	return p[1:]
}

// IsClosed reports whether the ring's first and last points are equal.
func (r Ring) IsClosed() bool {
	return len(r) > 1 && r[0] == r[len(r)-1]
}

// Clone returns a deep copy of the multipolygon.
func (mp MultiPolygon) Clone() MultiPolygon {
	if mp == nil {
		return nil
	}
	out := make(MultiPolygon, len(mp))
	for i, poly := range mp {
		out[i] = make(Polygon, len(poly))
		for j, ring := range poly {
			out[i][j] = append(Ring(nil), ring...)
		}
	}
	return out
}

// RingCount returns the total number of rings across all polygons.
func (mp MultiPolygon) RingCount() int {
	n := 0
	for _, poly := range mp {
		n += len(poly)
	}
	return n
}
