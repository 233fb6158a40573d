package avoidance

import (
	"errors"
	"fmt"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// ErrRouteTooLong reports that a route with avoidance polygons was not
// requested because the provider is likely to reject or time out on it.
var ErrRouteTooLong = errors.New("route too long for avoidance request")

// Feasibility is the result of the pre-flight route length check
type Feasibility struct {
	OK          bool    `json:"ok"`
	EstimatedKm float64 `json:"estimated_km"`
	MaxKm       float64 `json:"max_km,omitempty"`
}

// Err returns nil for a feasible request, or an error wrapping
// ErrRouteTooLong with the estimate.
func (f Feasibility) Err() error {
	if f.OK {
		return nil
	}
	return fmt.Errorf("%w: straight-line distance %.1f km exceeds %.1f km", ErrRouteTooLong, f.EstimatedKm, f.MaxKm)
}

// CheckFeasible estimates the straight-line origin-destination distance and
// refuses requests with avoidance whose estimate exceeds maxKmWithAvoidance.
// Without avoidance every request is feasible.
func CheckFeasible(origin, destination geo.Point, hasAvoidance bool, maxKmWithAvoidance float64) Feasibility {
	meters, err := geo.PointToPoint(origin, destination)
	if err != nil {
		// Invalid coordinates are the router's problem to reject
		return Feasibility{OK: true}
	}

	estimated := meters / 1000
	if hasAvoidance && estimated > maxKmWithAvoidance {
		return Feasibility{OK: false, EstimatedKm: estimated, MaxKm: maxKmWithAvoidance}
	}
	return Feasibility{OK: true, EstimatedKm: estimated}
}
