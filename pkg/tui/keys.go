package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the tracker window.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding
	Mark key.Binding // Toggle the cursor row in the multi-row selection.

	Add     key.Binding
	Remove  key.Binding
	Start   key.Binding
	Stop    key.Binding
	Reset   key.Binding
	Rename  key.Binding
	SetTime key.Binding
	SetRate key.Binding // Task properties; needs exactly one selected row.

	SortName  key.Binding
	SortTime  key.Binding
	SortPrice key.Binding

	Save   key.Binding
	Submit key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

// DefaultKeyMap is the built-in binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Mark: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "select"),
	),
	Add: key.NewBinding(
		key.WithKeys("a", "insert"),
		key.WithHelp("a", "add"),
	),
	Remove: key.NewBinding(
		key.WithKeys("d", "delete"),
		key.WithHelp("d", "remove"),
	),
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start"),
	),
	Stop: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "stop"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Rename: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "rename"),
	),
	SetTime: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "edit time"),
	),
	SetRate: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "rate"),
	),
	SortName: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1-3", "sort"),
	),
	SortTime: key.NewBinding(
		key.WithKeys("2"),
	),
	SortPrice: key.NewBinding(
		key.WithKeys("3"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("C-s", "save"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "apply"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Start, k.Stop, k.Mark, k.Rename, k.SetTime, k.SortName, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Mark},
		{k.Add, k.Remove, k.Start, k.Stop, k.Reset},
		{k.Rename, k.SetTime, k.SetRate, k.SortName},
		{k.Save, k.Quit},
	}
}
