package motion

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the delay used to collapse bursts of live samples
const DefaultDebounceWindow = 400 * time.Millisecond

// Debouncer collapses bursts of submitted values into a single call with the
// latest value once no new value has arrived for the window. Earlier values
// in a burst are superseded, never queued.
type Debouncer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	fn      func(T)
	timer   *time.Timer
	pending T
	has     bool
}

// NewDebouncer returns a debouncer that calls fn with the latest value
// after window has passed without another Submit.
func NewDebouncer[T any](window time.Duration, fn func(T)) *Debouncer[T] {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer[T]{window: window, fn: fn}
}

// Submit records v as the latest value and restarts the window
func (d *Debouncer[T]) Submit(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = v
	d.has = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.fire)
		return
	}
	d.timer.Reset(d.window)
}

// Stop drops the pending value without delivering it. Safe to call
// repeatedly; the debouncer can be used again afterwards.
func (d *Debouncer[T]) Stop() {
	d.take()
}

func (d *Debouncer[T]) fire() {
	v, ok := d.take()
	if ok {
		d.fn(v)
	}
}

func (d *Debouncer[T]) take() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if d.timer != nil {
		d.timer.Stop()
	}
	if !d.has {
		return zero, false
	}
	v := d.pending
	d.pending = zero
	d.has = false
	return v, true
}
