package routing

import (
	"time"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// Status represents the relationship between the tracked position and the active route
type Status string

const (
	NoRoute  Status = "no_route"  // no route, or fewer than 2 points
	OnRoute  Status = "on_route"  // within threshold of the polyline
	OffRoute Status = "off_route" // beyond threshold
)

// Source identifies where a position sample came from
type Source string

const (
	Live      Source = "live"
	Simulated Source = "simulated"
)

// DefaultOffRouteThreshold is the distance in meters beyond which the position is off route
const DefaultOffRouteThreshold = 40.0

// PositionSample is a single position fix
type PositionSample struct {
	Point     geo.Point `json:"point"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviationState is the monitor's view after the latest accepted sample
type DeviationState struct {
	Status         Status          `json:"status"`
	DistanceMeters float64         `json:"distance_meters"`
	Sample         *PositionSample `json:"sample,omitempty"`
	// Nearest is the closest point on the route to the sample, where a
	// driver off route would rejoin it.
	Nearest *geo.Point `json:"nearest,omitempty"`
}

// TransitionFunc is called when the monitor's status changes
type TransitionFunc func(from, to Status, state DeviationState)
