package autosave

import (
	"testing"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/clock"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestTicksEveryInterval(t *testing.T) {
	c := clock.Fake(epoch)
	count := 0
	tk := New(c, 300*time.Second, func() { count++ })
	tk.Start()

	c.Advance(299 * time.Second)
	if count != 0 {
		t.Fatalf("ticked early: %d", count)
	}
	c.Advance(time.Second)
	if count != 1 {
		t.Fatalf("expected 1 tick, got %d", count)
	}
	c.Advance(20 * time.Minute)
	if count != 5 {
		t.Fatalf("expected 5 ticks, got %d", count)
	}
}

func TestStopCancelsPendingTick(t *testing.T) {
	c := clock.Fake(epoch)
	count := 0
	tk := New(c, time.Minute, func() { count++ })
	tk.Start()
	tk.Start() // no second timer
	if c.PendingTimers() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", c.PendingTimers())
	}

	tk.Stop()
	c.Advance(time.Hour)
	if count != 0 {
		t.Fatalf("stopped ticker fired %d times", count)
	}
	if c.PendingTimers() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.PendingTimers())
	}
}

func TestStopFromCallbackDoesNotRearm(t *testing.T) {
	c := clock.Fake(epoch)
	var tk *Ticker
	count := 0
	tk = New(c, time.Minute, func() {
		count++
		tk.Stop()
	})
	tk.Start()
	c.Advance(time.Hour)
	if count != 1 {
		t.Fatalf("expected exactly one tick, got %d", count)
	}
}

func TestDefaultInterval(t *testing.T) {
	if got := New(clock.Real(), 0, func() {}).Interval(); got != DefaultInterval {
		t.Fatalf("Interval() = %v, want %v", got, DefaultInterval)
	}
}
