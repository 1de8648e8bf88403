// Package table adapts a task registry to a sortable grid. Every row
// index it accepts or reports is a view row, i.e. a position under the
// current sort key; translation to registry order happens here and
// nowhere else.
package table

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/harrisonrobin/lwtt/pkg/model"
	"github.com/harrisonrobin/lwtt/pkg/sortview"
	"github.com/harrisonrobin/lwtt/pkg/util"
)

// Columns of the grid.
const (
	ColumnName = iota
	ColumnConsumption
	ColumnPrice
	ColumnCount
)

var columnNames = [ColumnCount]string{
	"Task name",
	"Time consumption [h:min]",
	"Total price",
}

var (
	// ErrRejectedInput reports an edit whose value failed validation.
	// The cell keeps its previous value.
	ErrRejectedInput = errors.New("input rejected")
	// ErrNotEditable reports an edit of a read-only column.
	ErrNotEditable = errors.New("column is not editable")
	// ErrBadColumn reports a column outside [0, ColumnCount).
	ErrBadColumn = errors.New("no such column")
)

// Listener receives grid notifications keyed by view row.
type Listener interface {
	RowInserted(viewRow int)
	RowDeleted(viewRow int)
	RowUpdated(viewRow int)
	DataChanged()
}

// Enablement says which row actions make sense for a selection.
type Enablement struct {
	Start      bool
	Stop       bool
	Remove     bool
	Reset      bool
	Properties bool
}

// Model is the grid over a registry. It is not safe for concurrent use.
type Model struct {
	registry *model.Registry
	key      sortview.Key
	view     sortview.View
	listener Listener
}

// New wraps reg and registers itself as its row listener.
func New(reg *model.Registry) *Model {
	m := &Model{registry: reg, key: sortview.NoSort}
	reg.SetListener(m)
	m.Refresh()
	return m
}

// SetListener installs the grid listener. Pass nil to detach.
func (m *Model) SetListener(l Listener) { m.listener = l }

// Registry returns the wrapped registry.
func (m *Model) Registry() *model.Registry { return m.registry }

func (m *Model) RowCount() int    { return m.registry.Len() }
func (m *Model) ColumnCount() int { return ColumnCount }

// ColumnName returns the header of column c.
func (m *Model) ColumnName(c int) string { return Title(c) }

// Title returns the header of column c, or "" for an unknown column.
func Title(c int) string {
	if c < 0 || c >= ColumnCount {
		return ""
	}
	return columnNames[c]
}

// Editable reports whether cells of column c accept SetValue.
func (m *Model) Editable(c int) bool {
	return c == ColumnName || c == ColumnConsumption
}

// SortKey returns the active sort key.
func (m *Model) SortKey() sortview.Key { return m.key }

// SetSortKey changes the sort key and re-sorts. Any unsorted key clears
// sorting entirely.
func (m *Model) SetSortKey(k sortview.Key) error {
	k = k.Normalize()
	if k.Sorted() && k.Column >= ColumnCount {
		return fmt.Errorf("%w: %d", ErrBadColumn, k.Column)
	}
	m.key = k
	m.Refresh()
	m.dataChanged()
	return nil
}

// View returns the current view snapshot.
func (m *Model) View() sortview.View { return m.view }

// Refresh re-sorts the rows. Live columns change with time, so callers
// refresh before rendering; row updates alone never move rows.
func (m *Model) Refresh() {
	m.view = sortview.Snapshot(registryRows{m.registry}, m.key)
}

// Task returns the task shown at viewRow.
func (m *Model) Task(viewRow int) (*model.Task, error) {
	i, err := m.view.Model(viewRow)
	if err != nil {
		return nil, err
	}
	return m.registry.At(i), nil
}

// Value renders the cell at (viewRow, column) using live elapsed time.
func (m *Model) Value(viewRow, column int) (string, error) {
	t, err := m.Task(viewRow)
	if err != nil {
		return "", err
	}
	switch column {
	case ColumnName:
		return t.Name(), nil
	case ColumnConsumption:
		return util.FormatHoursMinutes(t.Consumption()), nil
	case ColumnPrice:
		return util.FormatPrice(t.TotalPrice()), nil
	}
	return "", fmt.Errorf("%w: %d", ErrBadColumn, column)
}

// SetValue applies a user edit. Consumption must be "<hours>:<minutes>";
// anything else is rejected with ErrRejectedInput and changes nothing.
func (m *Model) SetValue(viewRow, column int, value string) error {
	t, err := m.Task(viewRow)
	if err != nil {
		return err
	}
	switch column {
	case ColumnName:
		t.SetName(value)
		return nil
	case ColumnConsumption:
		d, err := util.ParseHoursMinutes(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRejectedInput, err)
		}
		t.SetConsumption(d)
		return nil
	case ColumnPrice:
		return fmt.Errorf("%w: %s", ErrNotEditable, columnNames[column])
	}
	return fmt.Errorf("%w: %d", ErrBadColumn, column)
}

// SetRate changes the hourly rate of the task at viewRow. Negative rates
// are rejected.
func (m *Model) SetRate(viewRow int, rate float64) error {
	if rate < 0 {
		return fmt.Errorf("%w: rate %v is negative", ErrRejectedInput, rate)
	}
	t, err := m.Task(viewRow)
	if err != nil {
		return err
	}
	t.SetRate(rate)
	return nil
}

// Add creates a new task and returns its view row.
func (m *Model) Add() int {
	t := m.registry.Create()
	i, _ := m.registry.IndexOf(t.ID())
	row, _ := m.view.ViewRow(i)
	return row
}

// Start starts the tasks at the given view rows.
func (m *Model) Start(viewRows []int) error {
	return m.apply(viewRows, m.registry.StartMany)
}

// Stop stops the tasks at the given view rows.
func (m *Model) Stop(viewRows []int) error {
	return m.apply(viewRows, m.registry.StopMany)
}

// Reset zeroes the consumption of the tasks at the given view rows.
func (m *Model) Reset(viewRows []int) error {
	return m.apply(viewRows, m.registry.ResetMany)
}

// Remove deletes the tasks at the given view rows.
func (m *Model) Remove(viewRows []int) error {
	return m.apply(viewRows, m.registry.Remove)
}

// IsRunning reports whether the task at viewRow is running.
func (m *Model) IsRunning(viewRow int) bool {
	t, err := m.Task(viewRow)
	return err == nil && t.IsRunning()
}

// Actions reports which actions apply to a selection of view rows.
func (m *Model) Actions(viewRows []int) Enablement {
	rows, err := m.view.ToModel(viewRows)
	if err != nil || len(rows) == 0 {
		return Enablement{}
	}
	running := 0
	for _, i := range rows {
		if m.registry.IsRunning(i) {
			running++
		}
	}
	return Enablement{
		Start:      running < len(rows),
		Stop:       running > 0,
		Remove:     true,
		Reset:      true,
		Properties: len(rows) == 1,
	}
}

func (m *Model) apply(viewRows []int, fn func([]int) error) error {
	rows, err := m.view.ToModel(viewRows)
	if err != nil {
		return err
	}
	return fn(rows)
}

// RowInserted implements model.Listener.
func (m *Model) RowInserted(index int) {
	m.Refresh()
	if m.listener == nil {
		return
	}
	if row, err := m.view.ViewRow(index); err == nil {
		m.listener.RowInserted(row)
	}
}

// RowDeleted implements model.Listener. The held snapshot still
// describes the rows as they were before this deletion.
func (m *Model) RowDeleted(index int) {
	row, err := m.view.ViewRow(index)
	m.Refresh()
	if m.listener != nil && err == nil {
		m.listener.RowDeleted(row)
	}
}

// RowChanged implements model.Listener.
func (m *Model) RowChanged(index int) {
	if m.listener == nil {
		return
	}
	if row, err := m.view.ViewRow(index); err == nil {
		m.listener.RowUpdated(row)
	}
}

// DataChanged implements model.Listener.
func (m *Model) DataChanged() {
	m.Refresh()
	m.dataChanged()
}

func (m *Model) dataChanged() {
	if m.listener != nil {
		m.listener.DataChanged()
	}
}

// registryRows exposes a registry to sortview with live column values.
type registryRows struct {
	reg *model.Registry
}

func (r registryRows) Len() int { return r.reg.Len() }

func (r registryRows) Compare(i, j, column int) int {
	a, b := r.reg.At(i), r.reg.At(j)
	switch column {
	case ColumnName:
		return cmp.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	case ColumnConsumption:
		return cmp.Compare(a.Consumption(), b.Consumption())
	case ColumnPrice:
		return cmp.Compare(a.TotalPrice(), b.TotalPrice())
	}
	return 0
}
