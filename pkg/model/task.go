package model

import (
	"cmp"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/clock"
)

// DefaultRate is the hourly rate given to tasks that have none.
const DefaultRate = 1.0

// State is the position of a Task in its timing state machine.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Observer is told synchronously, on the mutating goroutine, whenever a
// task's state, consumption, rate or name changes.
type Observer interface {
	TaskChanged(id int)
}

// Task is one tracked activity. Its elapsed time is stored as the
// consumption accrued before the current run plus, while running, the
// instant the run began; the live value is always derived on read.
type Task struct {
	id          int
	name        string
	consumption time.Duration // accrued before the current run
	rate        float64       // price per hour
	startedAt   time.Time     // set only while running
	state       State

	clock    clock.Clock
	observer Observer
}

// NewTask returns a stopped task. Use Registry.Create for fresh tasks;
// NewTask is for reconstructing persisted ones.
func NewTask(clk clock.Clock, id int, name string, consumption time.Duration, rate float64) *Task {
	if consumption < 0 {
		consumption = 0
	}
	return &Task{
		id:          id,
		name:        name,
		consumption: consumption,
		rate:        rate,
		clock:       clk,
	}
}

func (t *Task) ID() int         { return t.id }
func (t *Task) Name() string    { return t.name }
func (t *Task) Rate() float64   { return t.rate }
func (t *Task) State() State    { return t.state }
func (t *Task) IsRunning() bool { return t.state == Running }

// SetObserver replaces the task's observer. Pass nil to detach.
func (t *Task) SetObserver(o Observer) { t.observer = o }

// Start begins a run. Starting a running task does nothing and keeps
// the first start instant.
func (t *Task) Start() {
	if t.state == Running {
		return
	}
	t.startedAt = t.clock.Now()
	t.state = Running
	t.notify()
}

// Stop ends the current run and folds its elapsed time into the stored
// consumption. Stopping a stopped task does nothing.
func (t *Task) Stop() {
	if t.state != Running {
		return
	}
	t.consumption = t.Consumption()
	t.startedAt = time.Time{}
	t.state = Stopped
	t.notify()
}

// SetConsumption overrides the accrued base. While running, the current
// run keeps accruing on top of the new base.
func (t *Task) SetConsumption(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.consumption = d
	t.notify()
}

// Consumption returns the live elapsed time, including any run in
// progress.
func (t *Task) Consumption() time.Duration {
	if t.state != Running {
		return t.consumption
	}
	live := t.clock.Now().Sub(t.startedAt)
	if live < 0 {
		// wall clock stepped backwards; never report less than the base
		live = 0
	}
	return t.consumption + live
}

// TotalPrice is rate times the live elapsed hours.
func (t *Task) TotalPrice() float64 {
	return t.rate * t.Consumption().Hours()
}

func (t *Task) SetName(name string) {
	if t.name == name {
		return
	}
	t.name = name
	t.notify()
}

func (t *Task) SetRate(rate float64) {
	if t.rate == rate {
		return
	}
	t.rate = rate
	t.notify()
}

func (t *Task) notify() {
	if t.observer != nil {
		t.observer.TaskChanged(t.id)
	}
}

// CompareByID orders tasks by ascending id, the order used to stabilize
// a freshly loaded registry.
func CompareByID(a, b *Task) int {
	return cmp.Compare(a.id, b.id)
}
