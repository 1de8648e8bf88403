package table

import (
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/clock"
	"github.com/harrisonrobin/lwtt/pkg/model"
	"github.com/harrisonrobin/lwtt/pkg/sortview"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type gridEvents struct {
	inserted []int
	deleted  []int
	updated  []int
	reloads  int
}

func (g *gridEvents) RowInserted(r int) { g.inserted = append(g.inserted, r) }
func (g *gridEvents) RowDeleted(r int)  { g.deleted = append(g.deleted, r) }
func (g *gridEvents) RowUpdated(r int)  { g.updated = append(g.updated, r) }
func (g *gridEvents) DataChanged()      { g.reloads++ }

// newGrid builds a grid with tasks named in registry order.
func newGrid(t *testing.T, names ...string) (*Model, *clock.FakeClock, *gridEvents) {
	t.Helper()
	c := clock.Fake(epoch)
	reg := model.NewRegistry(c)
	m := New(reg)
	for _, name := range names {
		row := m.Add()
		if err := m.SetValue(row, ColumnName, name); err != nil {
			t.Fatalf("SetValue: %v", err)
		}
	}
	events := &gridEvents{}
	m.SetListener(events)
	return m, c, events
}

func names(t *testing.T, m *Model) []string {
	t.Helper()
	var out []string
	for row := 0; row < m.RowCount(); row++ {
		v, err := m.Value(row, ColumnName)
		if err != nil {
			t.Fatalf("Value(%d): %v", row, err)
		}
		out = append(out, v)
	}
	return out
}

func TestSortedActionsHitTheVisibleRows(t *testing.T) {
	m, _, _ := newGrid(t, "charlie", "alpha", "bravo")
	if err := m.SetSortKey(sortview.Key{Column: ColumnName, Order: sortview.Ascending}); err != nil {
		t.Fatalf("SetSortKey: %v", err)
	}
	if got := names(t, m); got[0] != "alpha" || got[1] != "bravo" || got[2] != "charlie" {
		t.Fatalf("sorted names = %v", got)
	}

	// view row 0 is "alpha", stored at registry index 1
	if err := m.Start([]int{0}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !m.Registry().At(1).IsRunning() || m.Registry().At(0).IsRunning() {
		t.Fatal("start acted on the wrong task")
	}
	if !m.IsRunning(0) {
		t.Fatal("view row 0 should be running")
	}
}

func TestSortedRemoveNonContiguous(t *testing.T) {
	m, _, events := newGrid(t, "charlie", "alpha", "bravo")
	m.SetSortKey(sortview.Key{Column: ColumnName, Order: sortview.Ascending})

	// remove "alpha" (view 0) and "charlie" (view 2)
	if err := m.Remove([]int{2, 0}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := names(t, m); len(got) != 1 || got[0] != "bravo" {
		t.Fatalf("remaining = %v, want [bravo]", got)
	}
	// registry removes index 1 (alpha, view 0) before index 0 (charlie)
	if len(events.deleted) != 2 {
		t.Fatalf("delete notifications = %v", events.deleted)
	}
	if events.deleted[0] != 0 {
		t.Fatalf("first deleted view row = %d, want 0", events.deleted[0])
	}
	if events.deleted[1] != 1 {
		t.Fatalf("second deleted view row = %d, want 1", events.deleted[1])
	}
}

func TestRowUpdateTranslatedToView(t *testing.T) {
	m, _, events := newGrid(t, "b", "a")
	m.SetSortKey(sortview.Key{Column: ColumnName, Order: sortview.Ascending})
	events.updated = nil

	// registry index 0 ("b") is shown at view row 1
	m.Registry().At(0).Start()
	if len(events.updated) != 1 || events.updated[0] != 1 {
		t.Fatalf("updated rows = %v, want [1]", events.updated)
	}
}

func TestLiveValues(t *testing.T) {
	m, c, _ := newGrid(t, "work")
	m.SetRate(0, 2.5)
	m.Start([]int{0})
	c.Advance(90 * time.Minute)

	if v, _ := m.Value(0, ColumnConsumption); v != "1:30" {
		t.Fatalf("consumption cell = %q, want 1:30", v)
	}
	if v, _ := m.Value(0, ColumnPrice); v != "3.75" {
		t.Fatalf("price cell = %q, want 3.75", v)
	}
}

func TestEditConsumption(t *testing.T) {
	m, _, events := newGrid(t, "work")
	if err := m.SetValue(0, ColumnConsumption, "1:16"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	task, _ := m.Task(0)
	if task.Consumption().Milliseconds() != 76*60000 {
		t.Fatalf("consumption = %v ms", task.Consumption().Milliseconds())
	}
	if len(events.updated) != 1 {
		t.Fatalf("expected one row update, got %v", events.updated)
	}

	err := m.SetValue(0, ColumnConsumption, "abc")
	if !errors.Is(err, ErrRejectedInput) {
		t.Fatalf("expected ErrRejectedInput, got %v", err)
	}
	if task.Consumption().Milliseconds() != 76*60000 {
		t.Fatal("rejected edit changed consumption")
	}
	if err := m.SetValue(0, ColumnConsumption, "3000000:00"); !errors.Is(err, ErrRejectedInput) {
		t.Fatalf("expected overlong time to be rejected, got %v", err)
	}
	if task.Consumption().Milliseconds() != 76*60000 {
		t.Fatal("overlong edit changed consumption")
	}
	if err := m.SetValue(0, ColumnPrice, "3"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("expected ErrNotEditable, got %v", err)
	}
	if m.Editable(ColumnPrice) || !m.Editable(ColumnName) || !m.Editable(ColumnConsumption) {
		t.Fatal("wrong column editability")
	}
}

func TestSetRateRejectsNegative(t *testing.T) {
	m, _, _ := newGrid(t, "work")
	if err := m.SetRate(0, -1); !errors.Is(err, ErrRejectedInput) {
		t.Fatalf("expected ErrRejectedInput, got %v", err)
	}
	task, _ := m.Task(0)
	if task.Rate() != model.DefaultRate {
		t.Fatalf("rate = %v", task.Rate())
	}
}

func TestActions(t *testing.T) {
	m, _, _ := newGrid(t, "a", "b")
	if got := m.Actions(nil); got != (Enablement{}) {
		t.Fatalf("empty selection = %+v", got)
	}
	m.Start([]int{0})

	got := m.Actions([]int{0, 1})
	if !got.Start || !got.Stop || !got.Remove || !got.Reset || got.Properties {
		t.Fatalf("mixed selection = %+v", got)
	}
	got = m.Actions([]int{0})
	if got.Start || !got.Stop || !got.Properties {
		t.Fatalf("running selection = %+v", got)
	}
}

func TestSortByLiveConsumption(t *testing.T) {
	m, c, _ := newGrid(t, "slow", "fast")
	m.SetValue(0, ColumnConsumption, "0:10")
	m.Start([]int{1})
	c.Advance(20 * time.Minute)

	m.SetSortKey(sortview.Key{Column: ColumnConsumption, Order: sortview.Descending})
	if got := names(t, m); got[0] != "fast" {
		t.Fatalf("descending by consumption = %v", got)
	}

	m.SetSortKey(sortview.Key{Column: ColumnConsumption, Order: sortview.Unsorted})
	if m.SortKey() != sortview.NoSort {
		t.Fatalf("unsorted key = %+v", m.SortKey())
	}
	if got := names(t, m); got[0] != "slow" {
		t.Fatalf("registry order = %v", got)
	}
}

func TestSetSortKeyRejectsUnknownColumn(t *testing.T) {
	m, _, _ := newGrid(t, "a")
	if err := m.SetSortKey(sortview.Key{Column: 7, Order: sortview.Ascending}); !errors.Is(err, ErrBadColumn) {
		t.Fatalf("expected ErrBadColumn, got %v", err)
	}
}
