package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/harrisonrobin/lwtt/pkg/sortview"
	"github.com/harrisonrobin/lwtt/pkg/table"
	"github.com/harrisonrobin/lwtt/pkg/util"
)

// Theme holds the window styles.
type Theme struct {
	Header  lipgloss.Style
	Cursor  lipgloss.Style
	Running lipgloss.Style
	Total   lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Empty   lipgloss.Style
}

// DefaultTheme marks running tasks red on light red.
var DefaultTheme = Theme{
	Header:  lipgloss.NewStyle().Bold(true).Underline(true),
	Cursor:  lipgloss.NewStyle().Reverse(true),
	Running: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Background(lipgloss.Color("#FFCCCC")),
	Total:   lipgloss.NewStyle().Bold(true),
	Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
	Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")),
	Empty:   lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true),
}

const (
	markWidth  = 4
	timeWidth  = len("Time consumption [h:min] ▲")
	priceWidth = len("Total price ▲") + 2
	minName    = 12
)

func (m Model) View() string {
	nameWidth := max(m.width-markWidth-timeWidth-priceWidth-2, minName)

	var b strings.Builder
	b.WriteString(m.renderHeader(nameWidth))
	b.WriteByte('\n')

	if len(m.rows) == 0 {
		b.WriteString(m.theme.Empty.Render("No tasks. Press a to add one."))
		b.WriteByte('\n')
	}

	var total time.Duration
	var price float64
	for i, r := range m.rows {
		mark := "[ ] "
		if m.marked[r.ID] {
			mark = "[x] "
		}
		line := mark + cell(r.Name, nameWidth, false) +
			cell(util.FormatHoursMinutes(r.Consumption), timeWidth, true) +
			cell(util.FormatPrice(r.Price), priceWidth, true)

		style := lipgloss.NewStyle()
		if r.Running {
			style = m.theme.Running
		}
		if i == m.cursor {
			style = style.Inherit(m.theme.Cursor)
		}
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
		total += r.Consumption
		price += r.Price
	}

	totals := strings.Repeat(" ", markWidth) + cell("Total", nameWidth, false) +
		cell(util.FormatHoursMinutes(total), timeWidth, true) +
		cell(util.FormatPrice(price), priceWidth, true)
	b.WriteString(m.theme.Total.Render(totals))
	b.WriteString("\n\n")

	switch {
	case m.editing != editNone:
		b.WriteString(m.input.View())
	case m.status != "" && m.statusOK:
		b.WriteString(m.theme.Info.Render(m.status))
	case m.status != "":
		b.WriteString(m.theme.Error.Render(m.status))
	}
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderHeader(nameWidth int) string {
	k := m.tracker.SortKey()
	title := func(column int) string {
		name := table.Title(column)
		if k.Column == column {
			switch k.Order {
			case sortview.Ascending:
				name += " ▲"
			case sortview.Descending:
				name += " ▼"
			}
		}
		return name
	}
	header := strings.Repeat(" ", markWidth) +
		cell(title(table.ColumnName), nameWidth, false) +
		cell(title(table.ColumnConsumption), timeWidth, true) +
		cell(title(table.ColumnPrice), priceWidth, true)
	return m.theme.Header.Render(header)
}

// cell pads or truncates s to exactly width columns.
func cell(s string, width int, right bool) string {
	if lipgloss.Width(s) > width {
		r := []rune(s)
		for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
			r = r[:len(r)-1]
		}
		s = string(r) + "…"
	}
	pad := strings.Repeat(" ", max(width-lipgloss.Width(s), 0))
	if right {
		return pad + s
	}
	return s + pad
}
