package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/alvaro-cleavant/hazard-map/internal/cache"
	"github.com/alvaro-cleavant/hazard-map/internal/config"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/avoidance"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/hazard"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/motion"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/routing"
	"github.com/alvaro-cleavant/hazard-map/internal/observability"
)

var (
	// ErrNoRoute is returned by operations that need an active route
	ErrNoRoute = errors.New("no active route")
	// ErrNoRouter is returned by PlanRoute when no directions provider is configured
	ErrNoRouter = errors.New("no directions provider configured")
	// ErrInvalidPoint is returned for out-of-range coordinates
	ErrInvalidPoint = errors.New("invalid coordinate")
)

// Router computes a driving route. A nil avoid means the avoidance option
// must be omitted from the provider request.
type Router interface {
	Directions(ctx context.Context, origin, destination geo.Point, avoid geo.MultiPolygon) (geo.Polyline, error)
}

// PlanResult is the outcome of a route request
type PlanResult struct {
	Route       *geo.Polyline             `json:"route,omitempty"`
	Feasibility avoidance.Feasibility     `json:"feasibility"`
	Avoided     int                       `json:"avoided_polygons"`
	Dropped     []avoidance.DroppedHazard `json:"dropped,omitempty"`
	Cached      bool                      `json:"cached"`
}

// Planner owns one planning session: the hazard set, the avoidance region
// derived from it, and deviation tracking against the active route. The
// hazard set, the region and the deviation state are guarded independently.
type Planner struct {
	ctx      context.Context
	router   Router
	cache    *cache.Cache
	metrics  *observability.Collector
	limits   avoidance.Limits
	routeTTL time.Duration
	speedKmh float64

	hazardMu sync.Mutex
	hazards  *hazard.Set

	regionMu sync.RWMutex
	region   avoidance.Region

	monitor *routing.Monitor
	tracker *motion.Tracker
}

// NewPlanner creates a planner. ctx carries the logger and bounds background
// work such as simulations. router, routeCache and metrics may be nil.
func NewPlanner(ctx context.Context, router Router, routeCache *cache.Cache, metrics *observability.Collector, cfg *config.Config) *Planner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	monitor := routing.NewMonitor(cfg.Monitor.OffRouteThresholdMeters)
	p := &Planner{
		ctx:      ctx,
		router:   router,
		cache:    routeCache,
		metrics:  metrics,
		limits:   cfg.Avoidance,
		routeTTL: cfg.Cache.RouteTTL,
		speedKmh: cfg.Simulation.DefaultSpeedKmh,
		hazards:  hazard.NewSet(),
		monitor:  monitor,
		tracker:  motion.NewTracker(monitor, cfg.Monitor.LiveDebounce, cfg.Simulation.Tick),
	}
	monitor.OnTransition(p.onTransition)
	return p
}

// AddHazard realizes the shape, adds it to the set and recomputes the
// avoidance region before returning.
func (p *Planner) AddHazard(ctx context.Context, shape hazard.Shape) (hazard.Hazard, error) {
	p.hazardMu.Lock()
	defer p.hazardMu.Unlock()

	h, err := p.hazards.Add(shape)
	if err != nil {
		return hazard.Hazard{}, err
	}
	logging.Infow(ctx, "Hazard added", "hazard.id", h.ID, "hazard.kind", string(h.Kind))

	p.recompute(ctx, "add")
	return h, nil
}

// RemoveHazard removes a hazard by id and recomputes the region. It reports
// whether the hazard existed.
func (p *Planner) RemoveHazard(ctx context.Context, id string) bool {
	p.hazardMu.Lock()
	defer p.hazardMu.Unlock()

	if !p.hazards.Remove(id) {
		return false
	}
	logging.Infow(ctx, "Hazard removed", "hazard.id", id)

	p.recompute(ctx, "remove")
	return true
}

// ClearHazards empties the set and the avoidance region
func (p *Planner) ClearHazards(ctx context.Context) {
	p.hazardMu.Lock()
	defer p.hazardMu.Unlock()

	p.hazards.Clear()
	logging.Infow(ctx, "Hazards cleared")

	p.recompute(ctx, "clear")
}

// Hazards returns the current hazards in insertion order
func (p *Planner) Hazards() []hazard.Hazard {
	p.hazardMu.Lock()
	defer p.hazardMu.Unlock()
	return p.hazards.List()
}

// Hazard returns a hazard by id
func (p *Planner) Hazard(id string) (hazard.Hazard, bool) {
	p.hazardMu.Lock()
	defer p.hazardMu.Unlock()
	return p.hazards.Get(id)
}

// recompute merges and validates the current hazard set. Callers hold hazardMu.
func (p *Planner) recompute(ctx context.Context, op string) {
	hazards := p.hazards.List()
	region := avoidance.Validate(hazard.Union(hazards), p.limits)

	p.regionMu.Lock()
	p.region = region
	p.regionMu.Unlock()

	for _, d := range region.Dropped {
		logging.Warnw(ctx, "Hazard area too large for avoidance, dropped",
			"hazard.area_km2", d.AreaKm2,
			"hazard.width_km", d.WidthKm,
			"hazard.height_km", d.HeightKm)
	}
	p.metrics.RecordRegion(op, len(hazards), len(region.Dropped), region.AcceptedAreaKm2())
}

// AvoidanceRegion returns the validated region for the current hazard set
func (p *Planner) AvoidanceRegion() avoidance.Region {
	p.regionMu.RLock()
	defer p.regionMu.RUnlock()
	return avoidance.Region{
		Accepted: p.region.Accepted.Clone(),
		Dropped:  append([]avoidance.DroppedHazard(nil), p.region.Dropped...),
	}
}

// BuildAvoidanceConstraint returns the geometry to submit to the router, or
// false when the avoidance option must be omitted.
func (p *Planner) BuildAvoidanceConstraint() (geo.MultiPolygon, bool) {
	p.regionMu.RLock()
	defer p.regionMu.RUnlock()
	constraint, ok := p.region.Constraint()
	return constraint.Clone(), ok
}

// PlanRoute requests a route around the current avoidance region. Requests
// with avoidance whose straight-line distance exceeds the configured limit
// are refused with avoidance.ErrRouteTooLong without calling the router;
// the active route is left unchanged. Router failures clear the active
// route.
func (p *Planner) PlanRoute(ctx context.Context, origin, destination geo.Point) (PlanResult, error) {
	if !origin.IsValid() || !destination.IsValid() {
		return PlanResult{}, fmt.Errorf("%w: origin %v destination %v", ErrInvalidPoint, origin, destination)
	}

	constraint, hasAvoidance := p.BuildAvoidanceConstraint()
	region := p.AvoidanceRegion()

	result := PlanResult{
		Feasibility: avoidance.CheckFeasible(origin, destination, hasAvoidance, p.limits.MaxRouteKmWithAvoidance),
		Avoided:     len(constraint),
		Dropped:     region.Dropped,
	}
	if err := result.Feasibility.Err(); err != nil {
		logging.Warnw(ctx, "Route not requested",
			"route.estimated_km", result.Feasibility.EstimatedKm,
			"route.max_km", result.Feasibility.MaxKm)
		p.metrics.RecordRoute(observability.OutcomeTooLong, 0)
		return result, err
	}

	if !hasAvoidance {
		constraint = nil
	}

	if p.cache != nil {
		route, found, err := p.cache.GetRoute(origin, destination, constraint)
		if err != nil {
			logging.Warnw(ctx, "Route cache error", "error", err)
		}
		if found {
			p.metrics.RecordRoute(observability.OutcomeCached, 0)
			p.OnNewRoute(route)
			result.Route = &route
			result.Cached = true
			return result, nil
		}
	}

	if p.router == nil {
		p.metrics.RecordRoute(observability.OutcomeNoRouter, 0)
		p.ClearRoute()
		return result, ErrNoRouter
	}

	start := time.Now()
	route, err := p.router.Directions(ctx, origin, destination, constraint)
	elapsed := time.Since(start)
	if err != nil {
		logging.Errorw(ctx, "Directions request failed", "error", err, "route.avoided_polygons", len(constraint))
		p.metrics.RecordRoute(observability.OutcomeError, elapsed)
		p.ClearRoute()
		return result, fmt.Errorf("failed to compute route: %w", err)
	}
	p.metrics.RecordRoute(observability.OutcomeOK, elapsed)

	if p.cache != nil {
		if err := p.cache.SetRoute(origin, destination, constraint, route, p.routeTTL); err != nil {
			logging.Warnw(ctx, "Failed to cache route", "error", err)
		}
	}

	logging.Infow(ctx, "Route planned",
		"route.points", len(route.Points),
		"route.length_km", geo.PathLength(route.Points)/1000,
		"route.avoided_polygons", len(constraint),
		"route.elapsed", elapsed)

	p.OnNewRoute(route)
	result.Route = &route
	return result, nil
}

// OnNewRoute makes line the active route. Any running simulation is stopped
// because it follows the previous route.
func (p *Planner) OnNewRoute(line geo.Polyline) {
	p.tracker.StopSimulation()
	p.tracker.SetRoute(line)
}

// ClearRoute drops the active route; deviation returns to NoRoute
func (p *Planner) ClearRoute() {
	p.tracker.StopSimulation()
	p.tracker.ClearRoute()
}

// ActiveRoute returns the route deviation is measured against
func (p *Planner) ActiveRoute() (geo.Polyline, bool) {
	return p.monitor.Route()
}

// OnPositionSample feeds a position into the monitor and returns the
// current deviation state. Live samples are debounced, so the returned state
// may not reflect this sample yet.
func (p *Planner) OnPositionSample(point geo.Point, source routing.Source) (routing.DeviationState, error) {
	if !point.IsValid() {
		return routing.DeviationState{}, fmt.Errorf("%w: %v", ErrInvalidPoint, point)
	}

	p.regionMu.RLock()
	inside := p.region.Accepted.Contains(point)
	p.regionMu.RUnlock()
	if inside {
		p.metrics.RecordPositionInAvoidance()
		logging.Warnw(p.ctx, "Position is inside an avoided hazard",
			"position.lat", point.Latitude, "position.lng", point.Longitude,
			"position.source", string(source))
	}

	return p.tracker.SubmitPoint(point, source), nil
}

// DeviationState returns the latest deviation state
func (p *Planner) DeviationState() routing.DeviationState {
	return p.monitor.State()
}

// StartSimulation drives a simulated position along the active route at
// speedKmh. Zero uses the configured default speed.
func (p *Planner) StartSimulation(speedKmh float64) (*motion.Simulator, error) {
	route, ok := p.monitor.Route()
	if !ok {
		return nil, ErrNoRoute
	}
	if speedKmh == 0 {
		speedKmh = p.speedKmh
	}

	sim, err := p.tracker.StartSimulation(p.ctx, route, speedKmh)
	if err != nil {
		return nil, err
	}
	logging.Infow(p.ctx, "Simulation started",
		"simulation.speed_kmh", speedKmh,
		"simulation.total_ticks", sim.TotalTicks())
	return sim, nil
}

// Simulation returns the running simulator, if any
func (p *Planner) Simulation() (*motion.Simulator, bool) {
	return p.tracker.Simulation()
}

// StopSimulation halts the simulation and resets deviation to NoRoute. Safe
// to call when nothing is running.
func (p *Planner) StopSimulation() {
	p.tracker.StopSimulation()
}

// StopTracking drops pending live samples and resets deviation to NoRoute.
// Safe to call when nothing is tracked.
func (p *Planner) StopTracking() {
	p.tracker.StopLive()
}

// Close stops all background work
func (p *Planner) Close() {
	p.tracker.Close()
}

func (p *Planner) onTransition(from, to routing.Status, state routing.DeviationState) {
	p.metrics.RecordTransition(string(to))
	p.metrics.RecordDistance(state.DistanceMeters)

	kv := []any{"deviation.from", string(from), "deviation.to", string(to), "deviation.distance_m", state.DistanceMeters}
	if state.Sample != nil {
		kv = append(kv, "deviation.source", string(state.Sample.Source))
	}
	if to == routing.OffRoute {
		logging.Warnw(p.ctx, "Position is off route", kv...)
		return
	}
	logging.Debugw(p.ctx, "Deviation state changed", kv...)
}
