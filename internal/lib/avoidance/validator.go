package avoidance

import (
	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// Limits are the size constraints the routing provider accepts for
// avoidance polygons and for routes requested with them. The defaults are
// tuned against one provider's undocumented limits.
type Limits struct {
	MaxAreaKm2              float64 `json:"max_area_km2" yaml:"max_area_km2" koanf:"max_area_km2"`
	MaxBoundingSideKm       float64 `json:"max_bounding_side_km" yaml:"max_bounding_side_km" koanf:"max_bounding_side_km"`
	MaxRouteKmWithAvoidance float64 `json:"max_route_km_with_avoidance" yaml:"max_route_km_with_avoidance" koanf:"max_route_km_with_avoidance"`
}

// DefaultLimits returns the reference limits
func DefaultLimits() Limits {
	return Limits{
		MaxAreaKm2:              200,
		MaxBoundingSideKm:       20,
		MaxRouteKmWithAvoidance: 150,
	}
}

// DroppedHazard describes a polygon that was too large to submit
type DroppedHazard struct {
	AreaKm2  float64 `json:"area_km2"`
	WidthKm  float64 `json:"width_km"`
	HeightKm float64 `json:"height_km"`
}

// Region is the validated avoidance geometry plus what had to be left out.
// Accepted is nil when no polygon passed.
type Region struct {
	Accepted geo.MultiPolygon `json:"accepted,omitempty"`
	Dropped  []DroppedHazard  `json:"dropped,omitempty"`
}

// Constraint returns the geometry to hand to the router. The second value
// is false when the avoidance option must be omitted from the request.
func (r Region) Constraint() (geo.MultiPolygon, bool) {
	if len(r.Accepted) == 0 {
		return nil, false
	}
	return r.Accepted, true
}

// AcceptedAreaKm2 sums the area of the accepted polygons
func (r Region) AcceptedAreaKm2() float64 {
	return geo.MultiArea(r.Accepted)
}

// Validate splits the merged multipolygon into per-polygon candidates and
// keeps those within limits. Polygons whose outer ring collapses below 4
// points are skipped without being reported; everything measured and
// rejected appears exactly once in Dropped.
func Validate(merged geo.MultiPolygon, limits Limits) Region {
	var region Region

	for _, poly := range merged {
		outer, ok := geo.NormalizeRing(poly.Outer())
		if !ok {
			continue
		}

		candidate := geo.Polygon{outer}
		for _, hole := range poly.Holes() {
			if closed, ok := geo.NormalizeRing(hole); ok {
				candidate = append(candidate, closed)
			}
		}

		area := geo.Area(candidate)
		width, height := geo.BoundingBoxSpan(candidate)

		if area <= limits.MaxAreaKm2 && width <= limits.MaxBoundingSideKm && height <= limits.MaxBoundingSideKm {
			region.Accepted = append(region.Accepted, candidate)
			continue
		}

		region.Dropped = append(region.Dropped, DroppedHazard{
			AreaKm2:  area,
			WidthKm:  width,
			HeightKm: height,
		})
	}

	return region
}
