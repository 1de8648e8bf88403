// Package autosave runs one recurring callback on an injected clock.
package autosave

import (
	"sync"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/clock"
)

// DefaultInterval is how often the tracker saves while running.
const DefaultInterval = 5 * time.Minute

// Ticker calls fn every interval until Stop. A tick whose fn is still
// running when the next is due is not doubled up: the next tick is only
// armed after fn returns.
type Ticker struct {
	clock    clock.Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *clock.Timer
	stopped bool
}

// New returns a stopped Ticker. A non-positive interval means
// DefaultInterval.
func New(clk clock.Clock, interval time.Duration, fn func()) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{clock: clk, interval: interval, fn: fn, stopped: true}
}

// Interval returns the tick period.
func (t *Ticker) Interval() time.Duration { return t.interval }

// Start arms the first tick. Starting a started Ticker does nothing.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		return
	}
	t.stopped = false
	t.arm()
}

// Stop cancels the pending tick. After Stop returns no new tick begins,
// though one already executing may finish.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// arm schedules the next tick. Caller holds t.mu.
func (t *Ticker) arm() {
	t.timer = t.clock.AfterFunc(t.interval, t.tick)
}

func (t *Ticker) tick() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.fn()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.arm()
	}
}
