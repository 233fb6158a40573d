package routing

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
)

func equatorRoute() geo.Polyline {
	return geo.Polyline{Points: []geo.Point{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: 1},
	}}
}

// northOf returns a point metersNorth of (0, lng), perpendicular to the equator route
func northOf(lng, metersNorth float64) geo.Point {
	return geo.Point{
		Latitude:  metersNorth / (geo.EarthRadiusMeters * math.Pi / 180),
		Longitude: lng,
	}
}

func sample(p geo.Point) PositionSample {
	return PositionSample{Point: p, Source: Live, Timestamp: time.Now()}
}

func TestMonitor_ThresholdBoundary(t *testing.T) {
	monitor := NewMonitor(40)
	monitor.SetRoute(equatorRoute())

	state := monitor.Evaluate(sample(northOf(0.5, 40)))
	assert.Equal(t, OnRoute, state.Status, "exactly at the threshold is on route")
	assert.InDelta(t, 40, state.DistanceMeters, 1e-3)

	state = monitor.Evaluate(sample(northOf(0.5, 41)))
	assert.Equal(t, OffRoute, state.Status)
	assert.InDelta(t, 41, state.DistanceMeters, 1e-3)

	state = monitor.Evaluate(sample(northOf(0.25, 0)))
	assert.Equal(t, OnRoute, state.Status, "back on route")
	assert.Equal(t, 0.0, state.DistanceMeters)
}

func TestMonitor_NoRoute(t *testing.T) {
	monitor := NewMonitor(0)
	assert.Equal(t, DefaultOffRouteThreshold, monitor.Threshold())

	state := monitor.Evaluate(sample(northOf(0.5, 10)))
	assert.Equal(t, NoRoute, state.Status)
	assert.Equal(t, 0.0, state.DistanceMeters)
	require.NotNil(t, state.Sample, "latest sample is kept even without a route")

	monitor.SetRoute(geo.Polyline{Points: []geo.Point{{Latitude: 0, Longitude: 0}}})
	_, ok := monitor.Route()
	assert.False(t, ok, "a single point route is no route")
	assert.Equal(t, NoRoute, monitor.Evaluate(sample(northOf(0, 0))).Status)
}

func TestMonitor_RouteLifecycle(t *testing.T) {
	monitor := NewMonitor(40)
	monitor.SetRoute(equatorRoute())
	assert.Equal(t, NoRoute, monitor.State().Status, "no sample yet after a new route")

	monitor.Evaluate(sample(northOf(0.5, 100)))
	assert.Equal(t, OffRoute, monitor.State().Status)

	monitor.Reset()
	assert.Equal(t, NoRoute, monitor.State().Status)
	_, ok := monitor.Route()
	assert.True(t, ok, "reset keeps the route")

	monitor.Evaluate(sample(northOf(0.5, 1)))
	assert.Equal(t, OnRoute, monitor.State().Status)

	monitor.ClearRoute()
	assert.Equal(t, NoRoute, monitor.State().Status)
	assert.Equal(t, NoRoute, monitor.Evaluate(sample(northOf(0.5, 1))).Status)
}

func TestMonitor_RouteIsCopied(t *testing.T) {
	route := equatorRoute()
	monitor := NewMonitor(40)
	monitor.SetRoute(route)

	route.Points[1] = geo.Point{Latitude: 10, Longitude: 10}
	active, ok := monitor.Route()
	require.True(t, ok)
	assert.Equal(t, 1.0, active.Points[1].Longitude)
}

func TestMonitor_TransitionListeners(t *testing.T) {
	type transition struct{ from, to Status }
	var seen []transition

	monitor := NewMonitor(40)
	monitor.OnTransition(func(from, to Status, _ DeviationState) {
		seen = append(seen, transition{from, to})
	})

	monitor.SetRoute(equatorRoute())
	monitor.Evaluate(sample(northOf(0.5, 10)))
	monitor.Evaluate(sample(northOf(0.5, 20)))
	monitor.Evaluate(sample(northOf(0.5, 80)))
	monitor.ClearRoute()

	assert.Equal(t, []transition{
		{NoRoute, OnRoute},
		{OnRoute, OffRoute},
		{OffRoute, NoRoute},
	}, seen, "repeated statuses do not fire")
}

func TestMonitor_NearestPoint(t *testing.T) {
	monitor := NewMonitor(40)
	monitor.SetRoute(equatorRoute())

	state := monitor.Evaluate(sample(northOf(0.3, 120)))
	assert.Equal(t, OffRoute, state.Status)
	require.NotNil(t, state.Nearest)
	assert.InDelta(t, 0, state.Nearest.Latitude, 1e-9)
	assert.InDelta(t, 0.3, state.Nearest.Longitude, 1e-9)

	monitor.ClearRoute()
	state = monitor.Evaluate(sample(northOf(0.3, 120)))
	assert.Nil(t, state.Nearest, "no route to rejoin")
}

func TestMonitor_ClearRouteWinsOverInFlightEvaluate(t *testing.T) {
	monitor := NewMonitor(40)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					monitor.Evaluate(sample(northOf(0.5, 10)))
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		monitor.SetRoute(equatorRoute())
		monitor.ClearRoute()
		assert.Equal(t, NoRoute, monitor.State().Status, "iteration %d", i)
	}
	close(done)
	wg.Wait()
}
