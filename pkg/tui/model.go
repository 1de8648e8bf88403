// Package tui is the interactive tracker window: a task grid with
// multi-row selection, start/stop/reset/remove actions, inline editors
// for name, time and rate, and column sorting.
package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harrisonrobin/lwtt/pkg/app"
	"github.com/harrisonrobin/lwtt/pkg/sortview"
	"github.com/harrisonrobin/lwtt/pkg/store"
	"github.com/harrisonrobin/lwtt/pkg/table"
	"github.com/harrisonrobin/lwtt/pkg/util"
)

// RefreshInterval is how often running times are redrawn.
const RefreshInterval = time.Second

// Tracker is the part of app.Session the window drives. Row arguments
// are positions in the slice last returned by Rows.
type Tracker interface {
	Rows() []app.Row
	Add() (int, error)
	Start(viewRows []int) error
	Stop(viewRows []int) error
	Reset(viewRows []int) error
	Remove(viewRows []int) error
	Rename(viewRow int, name string) error
	EditConsumption(viewRow int, value string) error
	SetRate(viewRow int, rate float64) error
	Actions(viewRows []int) table.Enablement
	SortKey() sortview.Key
	SetSort(k sortview.Key) error
	Preferences() store.Preferences
	SetGeometry(location *store.Point, size *store.Size)
	Save() error
}

// ErrorMsg carries a problem reported outside the update loop, such as
// a failed autosave, into the status line.
type ErrorMsg struct{ Err error }

type tickMsg time.Time

type editField int

const (
	editNone editField = iota
	editName
	editTime
	editRate
)

func (f editField) prompt() string {
	switch f {
	case editName:
		return "Name: "
	case editTime:
		return "Time [h:min]: "
	case editRate:
		return "Hourly rate: "
	}
	return ""
}

// Model is the bubbletea model of the tracker window.
type Model struct {
	tracker Tracker
	keys    KeyMap
	help    help.Model
	theme   Theme

	rows   []app.Row
	cursor int
	// marked holds task ids, which survive re-sorting.
	marked map[int]bool

	editing  editField
	editID   int
	input    textinput.Model
	status   string
	statusOK bool

	width  int
	height int
}

// New builds a window over t.
func New(t Tracker) Model {
	input := textinput.New()
	input.CharLimit = 200
	m := Model{
		tracker: t,
		keys:    DefaultKeyMap,
		help:    help.New(),
		theme:   DefaultTheme,
		marked:  make(map[int]bool),
		input:   input,
	}
	m.refresh()
	return m
}

// Init starts the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, tick()

	case ErrorMsg:
		m.fail(msg.Err)
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		prefs := m.tracker.Preferences()
		m.tracker.SetGeometry(prefs.Location, &store.Size{W: msg.Width, H: msg.Height})
		return m, nil

	case tea.KeyMsg:
		if m.editing != editNone {
			return m.updateEditor(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Mark):
		if m.cursor < len(m.rows) {
			id := m.rows[m.cursor].ID
			if m.marked[id] {
				delete(m.marked, id)
			} else {
				m.marked[id] = true
			}
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		}

	case key.Matches(msg, m.keys.Add):
		if _, err := m.tracker.Add(); err != nil {
			m.fail(err)
			break
		}
		m.refresh()
		m.cursor = m.newest()
		return m.beginEdit(editName)

	case key.Matches(msg, m.keys.Start):
		m.act("start", func(e table.Enablement) bool { return e.Start }, m.tracker.Start)

	case key.Matches(msg, m.keys.Stop):
		m.act("stop", func(e table.Enablement) bool { return e.Stop }, m.tracker.Stop)

	case key.Matches(msg, m.keys.Reset):
		m.act("reset", func(e table.Enablement) bool { return e.Reset }, m.tracker.Reset)

	case key.Matches(msg, m.keys.Remove):
		removed := m.selectedIDs()
		if m.act("remove", func(e table.Enablement) bool { return e.Remove }, m.tracker.Remove) {
			for _, id := range removed {
				delete(m.marked, id)
			}
		}

	case key.Matches(msg, m.keys.Rename):
		return m.beginEdit(editName)

	case key.Matches(msg, m.keys.SetTime):
		return m.beginEdit(editTime)

	case key.Matches(msg, m.keys.SetRate):
		if !m.tracker.Actions(m.selection()).Properties {
			m.notify("select exactly one task to set its rate")
			break
		}
		return m.beginEdit(editRate)

	case key.Matches(msg, m.keys.SortName):
		m.cycleSort(table.ColumnName)

	case key.Matches(msg, m.keys.SortTime):
		m.cycleSort(table.ColumnConsumption)

	case key.Matches(msg, m.keys.SortPrice):
		m.cycleSort(table.ColumnPrice)

	case key.Matches(msg, m.keys.Save):
		if err := m.tracker.Save(); err != nil {
			m.fail(err)
		} else {
			m.succeed("saved")
		}

	case key.Matches(msg, m.keys.Cancel):
		clear(m.marked)
	}
	return m, nil
}

// act runs a batch action on the selection when enabled says it applies,
// and reports whether it ran.
func (m *Model) act(name string, enabled func(table.Enablement) bool, fn func([]int) error) bool {
	sel := m.selection()
	if !enabled(m.tracker.Actions(sel)) {
		m.notify(fmt.Sprintf("nothing to %s", name))
		return false
	}
	if err := fn(sel); err != nil {
		m.fail(err)
		return false
	}
	m.status = ""
	m.refresh()
	return true
}

func (m Model) beginEdit(field editField) (tea.Model, tea.Cmd) {
	if m.cursor >= len(m.rows) {
		return m, nil
	}
	row := m.rows[m.cursor]
	if field == editRate {
		row = m.rows[m.selection()[0]]
	}
	m.editing = field
	m.editID = row.ID
	m.input.Prompt = field.prompt()
	switch field {
	case editName:
		m.input.SetValue(row.Name)
	case editTime:
		m.input.SetValue(util.FormatHoursMinutes(row.Consumption))
	case editRate:
		m.input.SetValue(strconv.FormatFloat(row.Rate, 'f', -1, 64))
	}
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.endEdit()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if err := m.submitEdit(); err != nil {
			m.fail(err)
			return m, nil
		}
		m.endEdit()
		m.status = ""
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submitEdit() error {
	// Re-resolve the row: a tick may have re-sorted the grid while editing.
	m.refresh()
	row := m.indexOf(m.editID)
	if row < 0 {
		return errors.New("task no longer exists")
	}
	value := m.input.Value()
	switch m.editing {
	case editName:
		return m.tracker.Rename(row, value)
	case editTime:
		return m.tracker.EditConsumption(row, value)
	case editRate:
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%w: rate %q is not a number", table.ErrRejectedInput, value)
		}
		return m.tracker.SetRate(row, rate)
	}
	return nil
}

func (m *Model) endEdit() {
	m.editing = editNone
	m.editID = 0
	m.input.Blur()
	m.input.Reset()
}

// cycleSort moves column through ascending, descending and unsorted.
func (m *Model) cycleSort(column int) {
	k := m.tracker.SortKey()
	next := sortview.Key{Column: column, Order: sortview.Ascending}
	if k.Column == column {
		switch k.Order {
		case sortview.Ascending:
			next.Order = sortview.Descending
		case sortview.Descending:
			next = sortview.NoSort
		}
	}
	cursorID := -1
	if m.cursor < len(m.rows) {
		cursorID = m.rows[m.cursor].ID
	}
	if err := m.tracker.SetSort(next); err != nil {
		m.fail(err)
		return
	}
	m.refresh()
	if i := m.indexOf(cursorID); i >= 0 {
		m.cursor = i
	}
}

// selection is the marked rows in view order, or the cursor row when
// nothing is marked.
func (m *Model) selection() []int {
	var sel []int
	for i, r := range m.rows {
		if m.marked[r.ID] {
			sel = append(sel, i)
		}
	}
	if len(sel) == 0 && m.cursor < len(m.rows) {
		sel = []int{m.cursor}
	}
	return sel
}

func (m *Model) selectedIDs() []int {
	sel := m.selection()
	ids := make([]int, len(sel))
	for i, row := range sel {
		ids[i] = m.rows[row].ID
	}
	return ids
}

// refresh reloads the rows and keeps the cursor on the same task, which
// a live sort column may have moved.
func (m *Model) refresh() {
	cursorID := -1
	if m.cursor < len(m.rows) {
		cursorID = m.rows[m.cursor].ID
	}
	m.rows = m.tracker.Rows()
	for id := range m.marked {
		if m.indexOf(id) < 0 {
			delete(m.marked, id)
		}
	}
	if i := m.indexOf(cursorID); i >= 0 {
		m.cursor = i
		return
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

func (m *Model) indexOf(id int) int {
	for i, r := range m.rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// newest is the row of the most recently created task; ids only grow.
func (m *Model) newest() int {
	best := 0
	for i, r := range m.rows {
		if r.ID > m.rows[best].ID {
			best = i
		}
	}
	return best
}

func (m *Model) fail(err error) {
	m.status = err.Error()
	m.statusOK = false
}

func (m *Model) notify(s string) {
	m.status = s
	m.statusOK = false
}

func (m *Model) succeed(s string) {
	m.status = s
	m.statusOK = true
}
