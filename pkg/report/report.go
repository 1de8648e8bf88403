// Package report renders the task list as a timesheet.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/app"
	"github.com/harrisonrobin/lwtt/pkg/util"
	"gopkg.in/yaml.v3"
)

// Format selects an output encoding for Render.
type Format string

const (
	Text Format = "text"
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts text, json and yaml, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Text, JSON, YAML:
		return f, nil
	case "":
		return Text, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
}

// Entry is one task line. Time is the H:MM rendering of Minutes.
type Entry struct {
	Row     int     `json:"row" yaml:"row"`
	ID      int     `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Time    string  `json:"time" yaml:"time"`
	Minutes int64   `json:"minutes" yaml:"minutes"`
	Rate    float64 `json:"rate" yaml:"rate"`
	Price   string  `json:"price" yaml:"price"`
	Running bool    `json:"running,omitempty" yaml:"running,omitempty"`
}

type Timesheet struct {
	Entries      []Entry `json:"entries" yaml:"entries"`
	TotalTime    string  `json:"total_time" yaml:"total_time"`
	TotalMinutes int64   `json:"total_minutes" yaml:"total_minutes"`
	TotalPrice   string  `json:"total_price" yaml:"total_price"`

	totalPrice float64
}

// Build summarizes rows in the order given. Row numbers are 1-based.
func Build(rows []app.Row) Timesheet {
	ts := Timesheet{Entries: make([]Entry, 0, len(rows))}
	var total time.Duration
	for i, r := range rows {
		ts.Entries = append(ts.Entries, Entry{
			Row:     i + 1,
			ID:      r.ID,
			Name:    r.Name,
			Time:    util.FormatHoursMinutes(r.Consumption),
			Minutes: int64(r.Consumption / time.Minute),
			Rate:    r.Rate,
			Price:   util.FormatPrice(r.Price),
			Running: r.Running,
		})
		total += r.Consumption
		ts.totalPrice += r.Price
	}
	ts.TotalTime = util.FormatHoursMinutes(total)
	ts.TotalMinutes = int64(total / time.Minute)
	ts.TotalPrice = util.FormatPrice(ts.totalPrice)
	return ts
}

// Render writes ts to w in format f.
func Render(w io.Writer, ts Timesheet, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ts)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ts); err != nil {
			return err
		}
		return enc.Close()
	case Text, "":
		return renderText(w, ts)
	}
	return fmt.Errorf("unknown report format %q", f)
}

func renderText(w io.Writer, ts Timesheet) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tTask name\tTime consumption [h:min]\tTotal price\t")
	for _, e := range ts.Entries {
		name := e.Name
		if e.Running {
			name += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n", e.Row, name, e.Time, e.Price)
	}
	fmt.Fprintf(tw, "\tTotal\t%s\t%s\t\n", ts.TotalTime, ts.TotalPrice)
	return tw.Flush()
}
