package model

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/clock"
)

// DefaultName is the name given to newly created tasks.
const DefaultName = "New task"

// ErrIndexOutOfRange reports a registry index outside [0, Len()).
var ErrIndexOutOfRange = errors.New("task index out of range")

// Listener receives row-level notifications in registry order.
type Listener interface {
	RowInserted(index int)
	RowDeleted(index int)
	RowChanged(index int)
	DataChanged()
}

// Record is the value form of a task, used for persistence.
type Record struct {
	ID          int
	Name        string
	Consumption time.Duration
	Rate        float64
}

// Registry owns the ordered task list. Registry order is insertion (or
// reload) order and is never changed by presentation-side sorting.
//
// A Registry is not safe for concurrent use; callers serialize access
// (see app.Session).
type Registry struct {
	clock       clock.Clock
	tasks       []*Task
	nextID      int
	defaultRate float64
	listener    Listener
}

// NewRegistry returns an empty registry whose tasks read time from clk.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{clock: clk, defaultRate: DefaultRate}
}

// SetListener installs the row listener. Pass nil to detach.
func (r *Registry) SetListener(l Listener) { r.listener = l }

// SetDefaultRate changes the rate given to tasks created afterwards.
func (r *Registry) SetDefaultRate(rate float64) { r.defaultRate = rate }

// Restore replaces the registry contents with records, ordered by
// ascending id. Ids must be unique and non-negative. Ids handed out
// earlier in this process are still never reused.
func (r *Registry) Restore(records []Record) error {
	seen := make(map[int]bool, len(records))
	tasks := make([]*Task, 0, len(records))
	next := 0
	for _, rec := range records {
		if rec.ID < 0 {
			return fmt.Errorf("restore task %d: negative id", rec.ID)
		}
		if seen[rec.ID] {
			return fmt.Errorf("restore task %d: duplicate id", rec.ID)
		}
		seen[rec.ID] = true
		tasks = append(tasks, NewTask(r.clock, rec.ID, rec.Name, rec.Consumption, rec.Rate))
		next = max(next, rec.ID+1)
	}
	slices.SortFunc(tasks, CompareByID)

	for _, t := range r.tasks {
		t.SetObserver(nil)
		t.Stop()
	}
	for _, t := range tasks {
		t.SetObserver(r)
	}
	r.tasks = tasks
	r.nextID = max(r.nextID, next)
	r.dataChanged()
	return nil
}

// Snapshot returns every task as a Record in registry order, using the
// live consumption of running tasks.
func (r *Registry) Snapshot() []Record {
	records := make([]Record, len(r.tasks))
	for i, t := range r.tasks {
		records[i] = Record{
			ID:          t.id,
			Name:        t.name,
			Consumption: t.Consumption(),
			Rate:        t.rate,
		}
	}
	return records
}

// Len returns the number of tasks.
func (r *Registry) Len() int { return len(r.tasks) }

// At returns the task at registry index i. It panics if i is out of
// range, like a slice index.
func (r *Registry) At(i int) *Task { return r.tasks[i] }

// IsRunning reports whether the task at registry index i is running.
func (r *Registry) IsRunning(i int) bool { return r.tasks[i].IsRunning() }

// IndexOf returns the registry index of the task with the given id.
func (r *Registry) IndexOf(id int) (int, bool) {
	for i, t := range r.tasks {
		if t.id == id {
			return i, true
		}
	}
	return -1, false
}

// Create appends a stopped task with zero consumption and the default
// rate. Ids grow monotonically and are not reused after removal.
func (r *Registry) Create() *Task {
	t := NewTask(r.clock, r.nextID, DefaultName, 0, r.defaultRate)
	r.nextID++
	t.SetObserver(r)
	r.tasks = append(r.tasks, t)
	if r.listener != nil {
		r.listener.RowInserted(len(r.tasks) - 1)
	}
	return t
}

// Remove deletes the tasks at the given registry indices. Indices may be
// unordered, non-contiguous and repeated; they all refer to positions
// before the call. Running tasks are stopped before they are detached.
func (r *Registry) Remove(indices []int) error {
	targets, err := r.normalize(indices)
	if err != nil {
		return err
	}
	// highest first so earlier removals do not shift later targets
	slices.Reverse(targets)
	for _, i := range targets {
		t := r.tasks[i]
		t.Stop()
		t.SetObserver(nil)
		r.tasks = slices.Delete(r.tasks, i, i+1)
		if r.listener != nil {
			r.listener.RowDeleted(i)
		}
	}
	return nil
}

// StartMany starts the tasks at the given registry indices.
func (r *Registry) StartMany(indices []int) error {
	return r.each(indices, (*Task).Start)
}

// StopMany stops the tasks at the given registry indices.
func (r *Registry) StopMany(indices []int) error {
	return r.each(indices, (*Task).Stop)
}

// ResetMany zeroes the consumption of the tasks at the given indices.
func (r *Registry) ResetMany(indices []int) error {
	return r.each(indices, func(t *Task) { t.SetConsumption(0) })
}

// StopAll stops every task, freezing elapsed time before a final save.
func (r *Registry) StopAll() {
	for _, t := range r.tasks {
		t.Stop()
	}
	r.dataChanged()
}

// TaskChanged implements Observer for the tasks the registry owns.
func (r *Registry) TaskChanged(id int) {
	if r.listener == nil {
		return
	}
	if i, ok := r.IndexOf(id); ok {
		r.listener.RowChanged(i)
	}
}

func (r *Registry) each(indices []int, fn func(*Task)) error {
	targets, err := r.normalize(indices)
	if err != nil {
		return err
	}
	for _, i := range targets {
		fn(r.tasks[i])
	}
	return nil
}

// normalize validates indices and returns them sorted and deduplicated.
// Nothing is mutated when any index is invalid.
func (r *Registry) normalize(indices []int) ([]int, error) {
	out := slices.Clone(indices)
	for _, i := range out {
		if i < 0 || i >= len(r.tasks) {
			return nil, fmt.Errorf("%w: %d (have %d tasks)", ErrIndexOutOfRange, i, len(r.tasks))
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (r *Registry) dataChanged() {
	if r.listener != nil {
		r.listener.DataChanged()
	}
}
