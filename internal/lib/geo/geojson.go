package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// GeoJSON positions are [longitude, latitude]; these helpers are the only
// place the axis order flips.

func toOrbPoint(p Point) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

func fromOrbPoint(p orb.Point) Point {
	return Point{Latitude: p.Lat(), Longitude: p.Lon()}
}

// ToOrbRing converts a ring to its orb representation.
func ToOrbRing(r Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = toOrbPoint(p)
	}
	return out
}

// FromOrbRing converts an orb ring.
func FromOrbRing(r orb.Ring) Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[i] = fromOrbPoint(p)
	}
	return out
}

// ToOrbPolygon converts a polygon to its orb representation.
func ToOrbPolygon(p Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, r := range p {
		out[i] = ToOrbRing(r)
	}
	return out
}

// FromOrbPolygon converts an orb polygon.
func FromOrbPolygon(p orb.Polygon) Polygon {
	out := make(Polygon, len(p))
	for i, r := range p {
		out[i] = FromOrbRing(r)
	}
	return out
}

// ToOrbMultiPolygon converts a multipolygon to its orb representation.
func ToOrbMultiPolygon(mp MultiPolygon) orb.MultiPolygon {
	out := make(orb.MultiPolygon, len(mp))
	for i, p := range mp {
		out[i] = ToOrbPolygon(p)
	}
	return out
}

// FromOrbMultiPolygon converts an orb multipolygon.
func FromOrbMultiPolygon(mp orb.MultiPolygon) MultiPolygon {
	out := make(MultiPolygon, len(mp))
	for i, p := range mp {
		out[i] = FromOrbPolygon(p)
	}
	return out
}

// Contains reports whether the point lies inside the multipolygon, holes
// excluded. Planar test in degree space.
func (mp MultiPolygon) Contains(p Point) bool {
	return planar.MultiPolygonContains(ToOrbMultiPolygon(mp), toOrbPoint(p))
}

// MarshalGeometry encodes a multipolygon as a GeoJSON MultiPolygon geometry.
func MarshalGeometry(mp MultiPolygon) ([]byte, error) {
	return geojson.NewGeometry(ToOrbMultiPolygon(mp)).MarshalJSON()
}

// MarshalLineString encodes a polyline as a GeoJSON LineString geometry.
func MarshalLineString(line Polyline) ([]byte, error) {
	ls := make(orb.LineString, len(line.Points))
	for i, p := range line.Points {
		ls[i] = toOrbPoint(p)
	}
	return geojson.NewGeometry(ls).MarshalJSON()
}

// UnmarshalGeometry decodes a GeoJSON Polygon or MultiPolygon geometry.
func UnmarshalGeometry(data []byte) (MultiPolygon, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	return FromOrbGeometry(g.Geometry())
}

// FromOrbGeometry accepts polygonal orb geometries and rejects the rest.
func FromOrbGeometry(g orb.Geometry) (MultiPolygon, error) {
	var mp MultiPolygon
	switch g := g.(type) {
	case orb.Polygon:
		mp = MultiPolygon{FromOrbPolygon(g)}
	case orb.MultiPolygon:
		mp = FromOrbMultiPolygon(g)
	case orb.Bound:
		mp = MultiPolygon{FromOrbPolygon(g.ToPolygon())}
	default:
		return nil, fmt.Errorf("unsupported geometry type %T: want Polygon or MultiPolygon", g)
	}

	for _, poly := range mp {
		for _, ring := range poly {
			for _, p := range ring {
				if !isValidCoordinate(p) {
					return nil, fmt.Errorf("invalid coordinate %v", p)
				}
			}
		}
	}
	return mp, nil
}
