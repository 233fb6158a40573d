package hazard

import (
	"errors"
	"fmt"
	"time"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// Kind records how a hazard was created
type Kind string

const (
	BufferedPoint  Kind = "buffered_point"  // center + radius
	DrawnPolygon   Kind = "drawn_polygon"   // freehand polygon
	DrawnRectangle Kind = "drawn_rectangle" // two-corner rectangle
	DrawnCircle    Kind = "drawn_circle"    // circle drawn on the map
)

// Hazard is a region to be avoided by routing
type Hazard struct {
	ID           string           `json:"id"`
	Kind         Kind             `json:"kind"`
	Center       *geo.Point       `json:"center,omitempty"`
	RadiusMeters float64          `json:"radius_meters,omitempty"`
	Geometry     geo.MultiPolygon `json:"geometry"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Shape is the user input that becomes a Hazard. Circles and buffered
// points set Center and RadiusMeters; rectangles set Corners; polygons set
// Geometry.
type Shape struct {
	Kind         Kind             `json:"kind"`
	Center       *geo.Point       `json:"center,omitempty"`
	RadiusMeters float64          `json:"radius_meters,omitempty"`
	Corners      []geo.Point      `json:"corners,omitempty"`
	Geometry     geo.MultiPolygon `json:"geometry,omitempty"`
}

// ErrInvalidShape is returned when a shape cannot be turned into a hazard
var ErrInvalidShape = errors.New("invalid hazard shape")

// Realize converts the shape into polygon geometry. Circles use
// geo.DefaultCircleSteps vertices.
func (s Shape) Realize() (geo.MultiPolygon, error) {
	switch s.Kind {
	case BufferedPoint, DrawnCircle:
		if s.Center == nil || !s.Center.IsValid() {
			return nil, fmt.Errorf("%w: %s requires a valid center", ErrInvalidShape, s.Kind)
		}
		if s.RadiusMeters <= 0 {
			return nil, fmt.Errorf("%w: %s requires a positive radius", ErrInvalidShape, s.Kind)
		}
		return geo.MultiPolygon{geo.BufferCircle(*s.Center, s.RadiusMeters, geo.DefaultCircleSteps)}, nil

	case DrawnRectangle:
		if len(s.Corners) != 2 || !s.Corners[0].IsValid() || !s.Corners[1].IsValid() {
			return nil, fmt.Errorf("%w: rectangle requires two valid corners", ErrInvalidShape)
		}
		return geo.MultiPolygon{Rectangle(s.Corners[0], s.Corners[1])}, nil

	case DrawnPolygon:
		if len(s.Geometry) == 0 {
			return nil, fmt.Errorf("%w: polygon requires geometry", ErrInvalidShape)
		}
		for _, poly := range s.Geometry {
			for _, ring := range poly {
				for _, p := range ring {
					if !p.IsValid() {
						return nil, fmt.Errorf("%w: invalid coordinate %v", ErrInvalidShape, p)
					}
				}
			}
		}
		return s.Geometry.Clone(), nil
	}

	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, s.Kind)
}

// Rectangle builds a closed axis-aligned rectangle from two opposite corners.
func Rectangle(a, b geo.Point) geo.Polygon {
	south, north := a.Latitude, b.Latitude
	if south > north {
		south, north = north, south
	}
	west, east := a.Longitude, b.Longitude
	if west > east {
		west, east = east, west
	}

	return geo.Polygon{geo.Ring{
		{Latitude: south, Longitude: west},
		{Latitude: south, Longitude: east},
		{Latitude: north, Longitude: east},
		{Latitude: north, Longitude: west},
		{Latitude: south, Longitude: west},
	}}
}
