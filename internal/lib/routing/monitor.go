package routing

import (
	"math"
	"sync"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

// Monitor tracks the distance between position samples and the active
// route polyline and classifies it against a fixed threshold. It keeps only
// the latest sample; there is no queue.
type Monitor struct {
	mu        sync.RWMutex
	threshold float64
	route     *geo.Polyline
	state     DeviationState
	listeners []TransitionFunc
}

// NewMonitor creates a monitor with the given off-route threshold in
// meters. Non-positive thresholds use DefaultOffRouteThreshold.
func NewMonitor(thresholdMeters float64) *Monitor {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultOffRouteThreshold
	}
	return &Monitor{
		threshold: thresholdMeters,
		state:     DeviationState{Status: NoRoute},
	}
}

// Threshold returns the off-route threshold in meters
func (m *Monitor) Threshold() float64 {
	return m.threshold
}

// OnTransition registers a listener for status changes. Listeners run
// synchronously after the state is updated.
func (m *Monitor) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// SetRoute replaces the active route. A polyline with fewer than 2 points
// leaves the monitor without a route. The state resets to NoRoute until the
// next sample is evaluated.
func (m *Monitor) SetRoute(line geo.Polyline) {
	if len(line.Points) < 2 {
		m.ClearRoute()
		return
	}

	route := geo.Polyline{
		EncodedPolyline: line.EncodedPolyline,
		Points:          append([]geo.Point(nil), line.Points...),
	}

	m.mu.Lock()
	m.route = &route
	m.mu.Unlock()

	m.setState(DeviationState{Status: NoRoute})
}

// ClearRoute drops the active route and resets the state to NoRoute
func (m *Monitor) ClearRoute() {
	m.mu.Lock()
	m.route = nil
	m.mu.Unlock()

	m.setState(DeviationState{Status: NoRoute})
}

// Route returns the active route, if any
func (m *Monitor) Route() (geo.Polyline, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.route == nil {
		return geo.Polyline{}, false
	}
	return *m.route, true
}

// Reset returns the state to NoRoute while keeping the route, so the next
// sample is classified from scratch.
func (m *Monitor) Reset() {
	m.setState(DeviationState{Status: NoRoute})
}

// Evaluate classifies the sample against the active route. Distances are
// rounded to the millimeter before comparing: at or under the threshold is
// OnRoute, over it is OffRoute. Without a route the result is NoRoute at
// distance zero. If the route changes while the sample is being measured the
// result is discarded and the current state returned.
func (m *Monitor) Evaluate(sample PositionSample) DeviationState {
	m.mu.RLock()
	route := m.route
	m.mu.RUnlock()

	s := sample
	next := DeviationState{Status: NoRoute, Sample: &s}
	if route != nil {
		distance, err := geo.PointToPolyline(sample.Point, *route)
		if err == nil {
			distance = math.Round(distance*1000) / 1000
			next.DistanceMeters = distance
			next.Status = OnRoute
			if distance > m.threshold {
				next.Status = OffRoute
			}
			if nearest, err := geo.ClosestPointOnPolyline(sample.Point, *route); err == nil {
				next.Nearest = &nearest
			}
		}
	}

	m.mu.Lock()
	if m.route != route {
		current := m.state
		m.mu.Unlock()
		return current
	}
	m.commit(next)
	return next
}

// State returns the latest deviation state
func (m *Monitor) State() DeviationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) setState(next DeviationState) {
	m.mu.Lock()
	m.commit(next)
}

// commit stores next and notifies listeners of a status change. It must be
// called with mu held and releases it.
func (m *Monitor) commit(next DeviationState) {
	previous := m.state.Status
	m.state = next
	listeners := append([]TransitionFunc(nil), m.listeners...)
	m.mu.Unlock()

	if previous == next.Status {
		return
	}
	for _, fn := range listeners {
		fn(previous, next.Status, next)
	}
}
