package motion

import (
	"context"
	"sync"
	"time"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/routing"
)

// Tracker is the single entry point between position sources and the
// deviation monitor. Live samples are debounced; simulated samples are
// evaluated as soon as they arrive. Both end up in the same Evaluate call.
//
// Monitor transition listeners run while the tracker holds its evaluation
// lock and must not call back into the tracker.
type Tracker struct {
	monitor *routing.Monitor
	tick    time.Duration

	// evalMu serializes monitor evaluations with stop resets so a sample
	// delivered after a stop can not resurrect a stale state.
	evalMu    sync.Mutex
	liveEpoch uint64
	live      *Debouncer[liveSample]

	simMu sync.Mutex
	sim   *Simulator
}

type liveSample struct {
	sample routing.PositionSample
	epoch  uint64
}

// NewTracker creates a tracker feeding monitor. debounceWindow applies to
// live samples, tick to simulations.
func NewTracker(monitor *routing.Monitor, debounceWindow, tick time.Duration) *Tracker {
	t := &Tracker{monitor: monitor, tick: tick}
	t.live = NewDebouncer(debounceWindow, t.evaluateLive)
	return t
}

// Monitor returns the monitor the tracker feeds
func (t *Tracker) Monitor() *routing.Monitor {
	return t.monitor
}

// Submit hands a sample to the monitor. Simulated samples are evaluated
// immediately and the new state returned. Live samples wait for the
// debounce window; the current state is returned.
func (t *Tracker) Submit(sample routing.PositionSample) routing.DeviationState {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	if sample.Source == routing.Simulated {
		t.evalMu.Lock()
		defer t.evalMu.Unlock()
		return t.monitor.Evaluate(sample)
	}

	sample.Source = routing.Live
	t.evalMu.Lock()
	epoch := t.liveEpoch
	t.evalMu.Unlock()

	t.live.Submit(liveSample{sample: sample, epoch: epoch})
	return t.monitor.State()
}

// SubmitPoint is a convenience for Submit with a fresh timestamp
func (t *Tracker) SubmitPoint(point geo.Point, source routing.Source) routing.DeviationState {
	return t.Submit(routing.PositionSample{Point: point, Source: source, Timestamp: time.Now()})
}

// SetRoute swaps the route the monitor measures against. A live sample still
// waiting in the debounce window predates the route and is dropped, so the
// first classification comes from a sample taken after the swap.
func (t *Tracker) SetRoute(line geo.Polyline) {
	t.live.Stop()

	t.evalMu.Lock()
	defer t.evalMu.Unlock()
	t.liveEpoch++
	t.monitor.SetRoute(line)
}

// ClearRoute drops the route and any pending live sample. Deviation stays
// NoRoute until a new route arrives.
func (t *Tracker) ClearRoute() {
	t.live.Stop()

	t.evalMu.Lock()
	defer t.evalMu.Unlock()
	t.liveEpoch++
	t.monitor.ClearRoute()
}

// StopLive drops any pending live sample and resets the deviation state to
// NoRoute. Safe to call when nothing is being tracked.
func (t *Tracker) StopLive() {
	t.live.Stop()

	t.evalMu.Lock()
	defer t.evalMu.Unlock()
	t.liveEpoch++
	t.monitor.Reset()
}

// StartSimulation replaces any running simulation with a new one along line
// at speedKmh. Samples go through Submit as simulated samples. The returned
// simulator can be polled for progress.
func (t *Tracker) StartSimulation(ctx context.Context, line geo.Polyline, speedKmh float64) (*Simulator, error) {
	sim, err := NewSimulator(line, speedKmh, t.tick)
	if err != nil {
		return nil, err
	}

	t.simMu.Lock()
	defer t.simMu.Unlock()
	if t.sim != nil {
		t.sim.Stop()
	}
	t.sim = sim

	sim.Run(ctx, func(sample routing.PositionSample) {
		t.Submit(sample)
	})
	return sim, nil
}

// Simulation returns the current simulator, if one was started and not stopped
func (t *Tracker) Simulation() (*Simulator, bool) {
	t.simMu.Lock()
	defer t.simMu.Unlock()
	return t.sim, t.sim != nil
}

// StopSimulation halts the running simulation, if any, and resets the
// deviation state to NoRoute. Safe to call repeatedly.
func (t *Tracker) StopSimulation() {
	t.simMu.Lock()
	if t.sim != nil {
		t.sim.Stop()
		t.sim = nil
	}
	t.simMu.Unlock()

	t.evalMu.Lock()
	defer t.evalMu.Unlock()
	t.monitor.Reset()
}

// Close stops both sources
func (t *Tracker) Close() {
	t.StopSimulation()
	t.StopLive()
}

func (t *Tracker) evaluateLive(ls liveSample) {
	t.evalMu.Lock()
	defer t.evalMu.Unlock()
	if ls.epoch != t.liveEpoch {
		return
	}
	t.monitor.Evaluate(ls.sample)
}
