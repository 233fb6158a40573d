package motion

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/alvaro-cleavant/hazard-map/internal/lib/geo"
	"github.com/alvaro-cleavant/hazard-map/internal/lib/routing"
)

// DefaultTick is the fixed interval between simulated position samples
const DefaultTick = 500 * time.Millisecond

var (
	ErrInvalidSpeed = errors.New("simulation speed must be positive")
	ErrEmptyRoute   = errors.New("simulation route needs at least 2 points")
)

// Simulator advances a position along a route polyline at a constant speed.
// Each step moves the traveled distance forward by speed/3600*tick km and
// derives the position by arc-length interpolation. The final step lands on
// the route's last point exactly.
type Simulator struct {
	points   []geo.Point
	lengthKm float64
	stepKm   float64
	tick     time.Duration
	now      func() time.Time

	mu    sync.Mutex
	ticks int
	done  bool

	running  bool
	stopChan chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

// NewSimulator creates a simulator for the route at speedKmh. A
// non-positive tick uses DefaultTick.
func NewSimulator(line geo.Polyline, speedKmh float64, tick time.Duration) (*Simulator, error) {
	if !(speedKmh > 0) || math.IsInf(speedKmh, 0) {
		return nil, ErrInvalidSpeed
	}
	if len(line.Points) < 2 {
		return nil, ErrEmptyRoute
	}
	if tick <= 0 {
		tick = DefaultTick
	}

	return &Simulator{
		points:   append([]geo.Point(nil), line.Points...),
		lengthKm: geo.PathLength(line.Points) / 1000,
		stepKm:   speedKmh / 3600 * tick.Seconds(),
		tick:     tick,
		now:      time.Now,
		stopChan: make(chan struct{}),
		finished: make(chan struct{}),
	}, nil
}

// StepDistanceKm returns the distance advanced per tick
func (s *Simulator) StepDistanceKm() float64 {
	return s.stepKm
}

// LengthKm returns the route length
func (s *Simulator) LengthKm() float64 {
	return s.lengthKm
}

// Tick returns the interval between steps when running
func (s *Simulator) Tick() time.Duration {
	return s.tick
}

// TotalTicks returns the number of steps needed to reach the end of the
// route. A zero-length route still takes one step to emit its end point.
func (s *Simulator) TotalTicks() int {
	n := int(math.Ceil(s.lengthKm / s.stepKm))
	if n < 1 {
		return 1
	}
	return n
}

// Step advances one tick and returns the resulting sample. done is true
// for the sample at the end of the route; further calls keep returning the
// final point.
func (s *Simulator) Step() (routing.PositionSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.done {
		s.ticks++
	}
	total := s.TotalTicks()

	var point geo.Point
	if s.ticks >= total {
		s.done = true
		point = s.points[len(s.points)-1]
	} else {
		// Traveled distance is derived from the tick count so rounding
		// does not accumulate across steps.
		traveled := float64(s.ticks) * s.stepKm
		point = geo.Interpolate(s.points, traveled*1000)
	}

	return routing.PositionSample{
		Point:     point,
		Source:    routing.Simulated,
		Timestamp: s.now(),
	}, s.done
}

// Done reports whether the simulator has reached the end of the route
func (s *Simulator) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Progress returns the fraction of the route covered, in [0, 1]
func (s *Simulator) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done || s.lengthKm == 0 {
		return 1
	}
	return math.Min(float64(s.ticks)*s.stepKm/s.lengthKm, 1)
}

// RemainingKm returns the distance left to the end of the route
func (s *Simulator) RemainingKm() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return 0
	}
	return math.Max(s.lengthKm-float64(s.ticks)*s.stepKm, 0)
}

// Run steps the simulator on a ticker and passes every sample to emit
// until the route is complete, ctx is cancelled or Stop is called. The
// returned channel is closed when the loop exits. Calling Run again returns
// the same channel without starting a second loop.
func (s *Simulator) Run(ctx context.Context, emit func(routing.PositionSample)) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.finished
	}
	s.running = true

	go s.loop(ctx, emit)
	return s.finished
}

// Stop halts a running loop and waits for it to exit. Safe to call more
// than once and before Run. Must not be called from inside emit.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		<-s.finished
	}
}

func (s *Simulator) loop(ctx context.Context, emit func(routing.PositionSample)) {
	defer close(s.finished)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	logging.Debugw(ctx, "Simulation started",
		"route.length_km", s.lengthKm,
		"simulation.step_km", s.stepKm,
		"simulation.total_ticks", s.TotalTicks())

	for {
		select {
		case <-ctx.Done():
			logging.Debugw(ctx, "Simulation stopping due to context cancellation")
			return
		case <-s.stopChan:
			logging.Debugw(ctx, "Simulation stopping due to stop signal")
			return
		case <-ticker.C:
			// A stop that raced the tick wins
			select {
			case <-s.stopChan:
				return
			default:
			}

			sample, done := s.Step()
			emit(sample)
			if done {
				logging.Debugw(ctx, "Simulation reached end of route")
				return
			}
		}
	}
}
