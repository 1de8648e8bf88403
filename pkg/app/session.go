// Package app is the tracker's single point of mutation. A Session owns
// the registry, its grid adapter, the preference bag and the autosave
// ticker, and serializes every call behind one lock so that user
// actions and autosave ticks never interleave.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/autosave"
	"github.com/harrisonrobin/lwtt/pkg/clock"
	"github.com/harrisonrobin/lwtt/pkg/model"
	"github.com/harrisonrobin/lwtt/pkg/sortview"
	"github.com/harrisonrobin/lwtt/pkg/store"
	"github.com/harrisonrobin/lwtt/pkg/table"
)

// ErrClosed is returned by mutations after Close.
var ErrClosed = errors.New("session closed")

// Persister loads and saves the task document.
type Persister interface {
	Load() (*store.State, error)
	Save(records []model.Record, prefs store.Preferences) error
}

// Options configures Open. Zero values pick defaults.
type Options struct {
	Clock            clock.Clock
	Logger           *slog.Logger
	AutosaveInterval time.Duration
	DefaultRate      float64
	// Autosave disables the periodic save when false. Short-lived CLI
	// commands save explicitly instead.
	Autosave bool
	// OnError is told about every non-fatal problem the user should
	// see: skipped records on load and failed saves.
	OnError func(error)
}

// Row is one rendered grid row in view order.
type Row struct {
	ID          int
	Name        string
	Consumption time.Duration
	Price       float64
	Rate        float64
	Running     bool
}

// Session is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   *slog.Logger
	persist  Persister
	registry *model.Registry
	grid     *table.Model
	prefs    store.Preferences
	ticker   *autosave.Ticker
	onError  func(error)
	closed   bool
}

// Open loads the document through p and builds a session around it.
// Malformed records are skipped and reported; a document that cannot be
// read at all is an error.
func Open(p Persister, opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}

	state, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}

	s := &Session{
		clock:    opts.Clock,
		logger:   opts.Logger,
		persist:  p,
		registry: model.NewRegistry(opts.Clock),
		prefs:    state.Prefs,
		onError:  opts.OnError,
	}
	if opts.DefaultRate > 0 {
		s.registry.SetDefaultRate(opts.DefaultRate)
	}

	for _, warning := range state.Warnings {
		s.logger.Warn("skipped persisted entry", "err", warning)
		s.onError(warning)
	}
	if err := s.registry.Restore(state.Records); err != nil {
		return nil, fmt.Errorf("restoring tasks: %w", err)
	}

	s.grid = table.New(s.registry)
	if err := s.grid.SetSortKey(state.Prefs.Sort); err != nil {
		s.logger.Warn("ignoring saved sort key", "column", state.Prefs.Sort.Column, "err", err)
		s.prefs.Sort = sortview.NoSort
	}
	s.logger.Debug("session opened", "tasks", s.registry.Len(), "sort_column", s.grid.SortKey().Column)

	if opts.Autosave {
		s.ticker = autosave.New(opts.Clock, opts.AutosaveInterval, s.autosave)
		s.ticker.Start()
	}
	return s, nil
}

// SetListener installs a grid listener. It is called with the session
// lock held and must not call back into the Session.
func (s *Session) SetListener(l table.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.SetListener(l)
}

// Rows re-sorts and returns every task in view order. Row positions are
// the view rows that the other methods accept until the next Rows call
// or row insertion/removal.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.Refresh()

	rows := make([]Row, s.grid.RowCount())
	for i := range rows {
		t, _ := s.grid.Task(i)
		rows[i] = Row{
			ID:          t.ID(),
			Name:        t.Name(),
			Consumption: t.Consumption(),
			Price:       t.TotalPrice(),
			Rate:        t.Rate(),
			Running:     t.IsRunning(),
		}
	}
	return rows
}

// Len returns the number of tasks.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Len()
}

// Records returns the live task values in registry order.
func (s *Session) Records() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Snapshot()
}

// Add creates a task and returns its view row.
func (s *Session) Add() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1, ErrClosed
	}
	row := s.grid.Add()
	s.logger.Debug("task added", "row", row)
	return row, nil
}

func (s *Session) Start(viewRows []int) error  { return s.batch("start", viewRows, s.grid.Start) }
func (s *Session) Stop(viewRows []int) error   { return s.batch("stop", viewRows, s.grid.Stop) }
func (s *Session) Reset(viewRows []int) error  { return s.batch("reset", viewRows, s.grid.Reset) }
func (s *Session) Remove(viewRows []int) error { return s.batch("remove", viewRows, s.grid.Remove) }

// Rename sets the name of the task at viewRow.
func (s *Session) Rename(viewRow int, name string) error {
	return s.edit(viewRow, table.ColumnName, name)
}

// EditConsumption sets the consumption of the task at viewRow from
// "<hours>:<minutes>" input. Bad input leaves the task unchanged and
// returns an error wrapping table.ErrRejectedInput.
func (s *Session) EditConsumption(viewRow int, value string) error {
	return s.edit(viewRow, table.ColumnConsumption, value)
}

// SetRate sets the hourly rate of the task at viewRow.
func (s *Session) SetRate(viewRow int, rate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.grid.SetRate(viewRow, rate)
}

// Actions reports which actions apply to a selection.
func (s *Session) Actions(viewRows []int) table.Enablement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Actions(viewRows)
}

// SortKey returns the active sort key.
func (s *Session) SortKey() sortview.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.SortKey()
}

// SetSort changes the sort key; it is persisted with the next save.
func (s *Session) SetSort(k sortview.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.grid.SetSortKey(k); err != nil {
		return err
	}
	s.prefs.Sort = s.grid.SortKey()
	return nil
}

// Preferences returns the preference bag as it will be saved.
func (s *Session) Preferences() store.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetGeometry records the presentation's window geometry.
func (s *Session) SetGeometry(location *store.Point, size *store.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Location = location
	s.prefs.Size = size
}

// Save writes the document now. A failure is logged, reported through
// OnError and returned; in-memory state is untouched and the next save
// tries again.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// Close stops the autosave ticker, stops every running task so no
// elapsed time is lost, and saves. The session rejects mutations
// afterwards. Closing twice does nothing.
func (s *Session) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.registry.StopAll()
	return s.save()
}

func (s *Session) autosave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := s.save(); err == nil {
		s.logger.Debug("autosaved", "tasks", s.registry.Len())
	}
}

// save persists the current state. Caller holds s.mu.
func (s *Session) save() error {
	if err := s.persist.Save(s.registry.Snapshot(), s.prefs); err != nil {
		err = fmt.Errorf("cannot save data: %w", err)
		s.logger.Error("save failed", "err", err)
		s.onError(err)
		return err
	}
	return nil
}

func (s *Session) batch(action string, viewRows []int, fn func([]int) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(viewRows) == 0 {
		return nil
	}
	if err := fn(viewRows); err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	s.logger.Debug("tasks updated", "action", action, "rows", viewRows)
	return nil
}

func (s *Session) edit(viewRow, column int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.grid.SetValue(viewRow, column, value)
}
