package geo

import (
	"math"

	orbgeo "github.com/paulmach/orb/geo"
)

// NormalizeRing closes an open ring by appending its first point. The
// second return value is false when the closed ring has fewer than 4
// points and cannot describe an area.
func NormalizeRing(ring Ring) (Ring, bool) {
	if len(ring) == 0 {
		return nil, false
	}

	out := append(Ring(nil), ring...)
	if !out.IsClosed() {
		out = append(out, out[0])
	}

	if len(out) < 4 {
		return nil, false
	}
	return out, true
}

// RingArea returns the geodesic area enclosed by the ring in km².
func RingArea(ring Ring) float64 {
	if len(ring) < 3 {
		return 0
	}
	return math.Abs(orbgeo.Area(ToOrbRing(ring))) / 1e6
}

// Area returns the geodesic area of the polygon in km², outer ring minus
// holes. The spherical-excess formula agrees with ellipsoidal results to
// well within a percent for hazard-sized shapes.
func Area(poly Polygon) float64 {
	if len(poly) == 0 {
		return 0
	}

	area := RingArea(poly[0])
	for _, hole := range poly.Holes() {
		area -= RingArea(hole)
	}
	return math.Max(area, 0)
}

// MultiArea sums the area of every polygon in km². Overlapping polygons
// are counted twice.
func MultiArea(mp MultiPolygon) float64 {
	total := 0.0
	for _, poly := range mp {
		total += Area(poly)
	}
	return total
}

// BoundingBoxSpan returns the width and height in km of the polygon's
// bounding box: the distance from the west to the east edge measured along
// the southern edge, and from the south to the north edge along the
// western edge.
func BoundingBoxSpan(poly Polygon) (widthKm, heightKm float64) {
	outer := poly.Outer()
	if len(outer) == 0 {
		return 0, 0
	}

	bound := ToOrbRing(outer).Bound()
	southWest := Point{Latitude: bound.Bottom(), Longitude: bound.Left()}
	southEast := Point{Latitude: bound.Bottom(), Longitude: bound.Right()}
	northWest := Point{Latitude: bound.Top(), Longitude: bound.Left()}

	return haversine(southWest, southEast) / 1000, haversine(southWest, northWest) / 1000
}
