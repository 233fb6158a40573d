package hazard

import (
	"fmt"
	"math"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// unionAreaTolerance is the relative slack allowed when checking that a
// union did not lose area compared to its largest member.
const unionAreaTolerance = 1e-3

// Union merges the hazards into one multipolygon. It returns nil for no
// hazards and the hazard's own geometry for a single one. When the polygon
// union cannot be computed, every ring with at least 4 points becomes its
// own polygon and overlaps are kept. Union never panics.
func Union(hazards []Hazard) geo.MultiPolygon {
	switch len(hazards) {
	case 0:
		return nil
	case 1:
		return hazards[0].Geometry
	}

	merged, err := polygonUnion(hazards)
	if err != nil {
		return Concatenate(hazards)
	}
	return merged
}

// Concatenate is the union fallback: each outer ring that normalizes to at
// least 4 points becomes one polygon. Holes are dropped, which can only
// enlarge the covered region.
func Concatenate(hazards []Hazard) geo.MultiPolygon {
	var out geo.MultiPolygon
	for _, h := range hazards {
		for _, poly := range h.Geometry {
			ring, ok := geo.NormalizeRing(poly.Outer())
			if !ok {
				continue
			}
			out = append(out, geo.Polygon{ring})
		}
	}
	return out
}

// polygonUnion folds every hazard polygon into one clipping polygon and
// converts the result back. Any panic inside the clipper, an empty result,
// or a result smaller than its largest member is reported as an error.
func polygonUnion(hazards []Hazard) (result geo.MultiPolygon, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("polygon union panicked: %v", r)
		}
	}()

	var acc polyclip.Polygon
	largest := 0.0
	for _, h := range hazards {
		for _, poly := range h.Geometry {
			clip := toClipPolygon(poly)
			if len(clip) == 0 {
				continue
			}
			if area := geo.Area(poly); area > largest {
				largest = area
			}
			if acc == nil {
				acc = clip
				continue
			}
			acc = acc.Construct(polyclip.UNION, clip)
		}
	}

	if len(acc) == 0 {
		return nil, fmt.Errorf("polygon union produced no contours")
	}

	result = fromClipPolygon(acc)
	if len(result) == 0 {
		return nil, fmt.Errorf("polygon union produced no valid rings")
	}

	if area := geo.MultiArea(result); math.IsNaN(area) || area < largest*(1-unionAreaTolerance) {
		return nil, fmt.Errorf("polygon union lost area: %.6f km² < %.6f km²", area, largest)
	}
	return result, nil
}

// toClipPolygon converts outer ring and holes to clipper contours in
// lng/lat planar space. Contours are open: the clipper joins last to first.
func toClipPolygon(poly geo.Polygon) polyclip.Polygon {
	var out polyclip.Polygon
	for i, ring := range poly {
		closed, ok := geo.NormalizeRing(ring)
		if !ok {
			if i == 0 {
				return nil
			}
			continue
		}

		contour := make(polyclip.Contour, 0, len(closed)-1)
		for _, p := range closed[:len(closed)-1] {
			contour = append(contour, polyclip.Point{X: p.Longitude, Y: p.Latitude})
		}
		out = append(out, contour)
	}
	return out
}

// fromClipPolygon turns clipper output contours back into polygons. The
// clipper does not label holes, so each contour's nesting depth decides:
// even depth is an outer ring, odd depth is a hole of the innermost outer
// ring containing it.
func fromClipPolygon(clip polyclip.Polygon) geo.MultiPolygon {
	var rings []geo.Ring
	for _, contour := range clip {
		ring := make(geo.Ring, 0, len(contour)+1)
		for _, p := range contour {
			ring = append(ring, geo.Point{Latitude: p.Y, Longitude: p.X})
		}
		if closed, ok := geo.NormalizeRing(ring); ok {
			rings = append(rings, closed)
		}
	}

	depth := make([]int, len(rings))
	parent := make([]int, len(rings))
	for i := range rings {
		parent[i] = -1
		for j := range rings {
			if i == j || !ringInside(rings[i], rings[j]) {
				continue
			}
			depth[i]++
			if parent[i] == -1 || geo.RingArea(rings[j]) < geo.RingArea(rings[parent[i]]) {
				parent[i] = j
			}
		}
	}

	index := make(map[int]int)
	var out geo.MultiPolygon
	for i, ring := range rings {
		if depth[i]%2 == 0 {
			index[i] = len(out)
			out = append(out, geo.Polygon{ring})
		}
	}
	for i, ring := range rings {
		if depth[i]%2 == 1 {
			if at, ok := index[parent[i]]; ok {
				out[at] = append(out[at], ring)
			}
		}
	}
	return out
}

// ringInside reports whether inner lies within outer by majority vote over
// a handful of inner's vertices, so a single vertex touching outer's
// boundary cannot flip the answer.
func ringInside(inner, outer geo.Ring) bool {
	orbOuter := geo.ToOrbRing(outer)
	samples := len(inner) - 1
	if samples > 5 {
		samples = 5
	}

	inside := 0
	for k := 0; k < samples; k++ {
		p := inner[k*(len(inner)-1)/samples]
		if planar.RingContains(orbOuter, orb.Point{p.Longitude, p.Latitude}) {
			inside++
		}
	}
	return inside*2 > samples
}
