package model

import (
	"testing"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/clock"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type countingObserver struct {
	ids []int
}

func (o *countingObserver) TaskChanged(id int) { o.ids = append(o.ids, id) }

func TestStartStopAccruesElapsed(t *testing.T) {
	c := clock.Fake(epoch)
	task := NewTask(c, 1, "write report", 10*time.Minute, 1)

	task.Start()
	c.Advance(5 * time.Minute)
	if got := task.Consumption(); got != 15*time.Minute {
		t.Fatalf("live consumption = %v, want 15m", got)
	}
	task.Stop()
	c.Advance(time.Hour)
	if got := task.Consumption(); got != 15*time.Minute {
		t.Fatalf("consumption after stop = %v, want 15m", got)
	}
}

func TestStopStartStopAddsDelta(t *testing.T) {
	c := clock.Fake(epoch)
	task := NewTask(c, 1, "a", 0, 1)
	task.Start()
	c.Advance(3 * time.Minute)
	task.Stop()
	before := task.Consumption()

	task.Start()
	c.Advance(42 * time.Second)
	task.Stop()
	if got := task.Consumption(); got != before+42*time.Second {
		t.Fatalf("consumption = %v, want %v", got, before+42*time.Second)
	}
}

func TestDoubleStartKeepsAnchor(t *testing.T) {
	c := clock.Fake(epoch)
	task := NewTask(c, 1, "a", 0, 1)
	task.Start()
	c.Advance(time.Minute)
	task.Start()
	c.Advance(time.Minute)
	if got := task.Consumption(); got != 2*time.Minute {
		t.Fatalf("double start reset the anchor: consumption = %v, want 2m", got)
	}
}

func TestElapsedNeverDecreasesWhileRunning(t *testing.T) {
	c := clock.Fake(epoch)
	task := NewTask(c, 1, "a", 7*time.Minute, 1)
	task.Start()
	prev := task.Consumption()
	for i := 0; i < 10; i++ {
		c.Advance(time.Duration(i) * time.Second)
		got := task.Consumption()
		if got < prev || got < 7*time.Minute {
			t.Fatalf("elapsed went from %v to %v", prev, got)
		}
		prev = got
	}
}

func TestSetConsumptionWhileRunningKeepsAccruing(t *testing.T) {
	c := clock.Fake(epoch)
	task := NewTask(c, 1, "a", time.Hour, 1)
	task.Start()
	c.Advance(10 * time.Minute)
	task.SetConsumption(0)
	if got := task.Consumption(); got != 10*time.Minute {
		t.Fatalf("after reset while running = %v, want 10m", got)
	}
	c.Advance(5 * time.Minute)
	task.Stop()
	if got := task.Consumption(); got != 15*time.Minute {
		t.Fatalf("after stop = %v, want 15m", got)
	}
}

func TestTotalPrice(t *testing.T) {
	c := clock.Fake(epoch)
	task := NewTask(c, 1, "a", 90*time.Minute, 2.5)
	if got := task.TotalPrice(); got != 3.75 {
		t.Fatalf("TotalPrice() = %v, want 3.75", got)
	}

	task.Start()
	c.Advance(30 * time.Minute)
	if got := task.TotalPrice(); got != 5 {
		t.Fatalf("live TotalPrice() = %v, want 5", got)
	}
}

func TestObserverNotifiedOnTransitions(t *testing.T) {
	c := clock.Fake(epoch)
	task := NewTask(c, 4, "a", 0, 1)
	obs := &countingObserver{}
	task.SetObserver(obs)

	task.Stop() // no-op
	task.Start()
	task.Start() // no-op
	task.SetConsumption(time.Minute)
	task.Stop()

	if len(obs.ids) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(obs.ids))
	}
	for _, id := range obs.ids {
		if id != 4 {
			t.Fatalf("notification carried id %d, want 4", id)
		}
	}

	task.SetObserver(nil)
	task.Start()
	if len(obs.ids) != 3 {
		t.Fatal("detached observer was notified")
	}
}
