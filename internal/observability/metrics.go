package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route request outcomes
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeTooLong  = "too_long"
	OutcomeError    = "error"
	OutcomeNoRouter = "no_router"
)

// Collector bundles Prometheus metrics for the planner and deviation
// monitor. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	HazardMutations      *prometheus.CounterVec
	AvoidanceDropped     prometheus.Counter
	RouteRequests        *prometheus.CounterVec
	RouteDurations       prometheus.Histogram
	DeviationTransitions *prometheus.CounterVec

	PositionsInAvoidance prometheus.Counter

	HazardsActive     prometheus.Gauge
	AvoidanceAreaKm2  prometheus.Gauge
	DeviationDistance prometheus.Gauge

	reg prometheus.Registerer
}

// NewCollector registers metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	mutations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hazard_mutations_total",
		Help: "Hazard set mutations, labeled by operation.",
	}, []string{"op"}), "hazard_mutations_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avoidance_dropped_total",
		Help: "Merged hazard polygons left out of the avoidance region for exceeding size limits.",
	}), "avoidance_dropped_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_requests_total",
		Help: "Route planning requests, labeled by outcome.",
	}, []string{"outcome"}), "route_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_request_duration_seconds",
		Help:    "Directions provider latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "route_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deviation_transitions_total",
		Help: "Deviation status changes, labeled by the new status.",
	}, []string{"to"}), "deviation_transitions_total")
	if err != nil {
		return nil, err
	}

	inside, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "positions_in_avoidance_total",
		Help: "Position samples that fell inside the accepted avoidance region.",
	}), "positions_in_avoidance_total")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hazards_active",
		Help: "Current number of hazards in the set.",
	}), "hazards_active")
	if err != nil {
		return nil, err
	}
	area, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "avoidance_area_km2",
		Help: "Total area of the accepted avoidance region.",
	}), "avoidance_area_km2")
	if err != nil {
		return nil, err
	}
	distance, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deviation_distance_meters",
		Help: "Distance from the latest position sample to the active route.",
	}), "deviation_distance_meters")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:             gatherer,
		HazardMutations:      mutations,
		AvoidanceDropped:     dropped,
		RouteRequests:        requests,
		RouteDurations:       durations,
		DeviationTransitions: transitions,
		PositionsInAvoidance: inside,
		HazardsActive:        active,
		AvoidanceAreaKm2:     area,
		DeviationDistance:    distance,
		reg:                  reg,
	}, nil
}

// ObserveRouteCache exports route cache occupancy. stats is called on every
// scrape and returns the fresh and stale entry counts.
func (c *Collector) ObserveRouteCache(stats func() (fresh, stale int)) error {
	if c == nil {
		return nil
	}
	for _, state := range []string{"fresh", "stale"} {
		state := state
		gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "route_cache_entries",
			Help:        "Cached directions responses, labeled by freshness.",
			ConstLabels: prometheus.Labels{"state": state},
		}, func() float64 {
			fresh, stale := stats()
			if state == "fresh" {
				return float64(fresh)
			}
			return float64(stale)
		})
		if err := c.reg.Register(gauge); err != nil {
			return fmt.Errorf("failed to register route_cache_entries: %w", err)
		}
	}
	return nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordRegion records a hazard mutation and the region it produced
func (c *Collector) RecordRegion(op string, hazards, dropped int, acceptedAreaKm2 float64) {
	if c == nil {
		return
	}
	c.HazardMutations.WithLabelValues(op).Inc()
	c.HazardsActive.Set(float64(hazards))
	c.AvoidanceAreaKm2.Set(acceptedAreaKm2)
	if dropped > 0 {
		c.AvoidanceDropped.Add(float64(dropped))
	}
}

// RecordRoute records a route request outcome. elapsed is only observed
// when the provider was called.
func (c *Collector) RecordRoute(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RouteRequests.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeError {
		c.RouteDurations.Observe(elapsed.Seconds())
	}
}

// RecordTransition records a deviation status change
func (c *Collector) RecordTransition(to string) {
	if c == nil {
		return
	}
	c.DeviationTransitions.WithLabelValues(to).Inc()
}

// RecordPositionInAvoidance counts a sample inside the avoidance region
func (c *Collector) RecordPositionInAvoidance() {
	if c == nil {
		return
	}
	c.PositionsInAvoidance.Inc()
}

// RecordDistance updates the latest deviation distance
func (c *Collector) RecordDistance(meters float64) {
	if c == nil {
		return
	}
	c.DeviationDistance.Set(meters)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
