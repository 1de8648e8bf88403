package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/app"
	"gopkg.in/yaml.v3"
)

func sampleRows() []app.Row {
	return []app.Row{
		{ID: 4, Name: "Design", Consumption: 90 * time.Minute, Rate: 2, Price: 3},
		{ID: 1, Name: "Review", Consumption: 45*time.Minute + 30*time.Second, Rate: 1, Price: 0.7583, Running: true},
	}
}

func TestBuildTotals(t *testing.T) {
	ts := Build(sampleRows())
	if len(ts.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(ts.Entries))
	}
	if ts.Entries[0].Row != 1 || ts.Entries[1].Row != 2 {
		t.Errorf("expected 1-based rows, got %d and %d", ts.Entries[0].Row, ts.Entries[1].Row)
	}
	if ts.Entries[1].Time != "0:45" || ts.Entries[1].Minutes != 45 {
		t.Errorf("unexpected time %q/%d", ts.Entries[1].Time, ts.Entries[1].Minutes)
	}
	if ts.TotalTime != "2:15" {
		t.Errorf("expected total 2:15, got %s", ts.TotalTime)
	}
	if ts.TotalPrice != "3.75" {
		t.Errorf("expected total price 3.75, got %s", ts.TotalPrice)
	}
}

func TestBuildEmpty(t *testing.T) {
	ts := Build(nil)
	if ts.Entries == nil || len(ts.Entries) != 0 {
		t.Errorf("expected empty non-nil entries, got %#v", ts.Entries)
	}
	if ts.TotalTime != "0:00" || ts.TotalPrice != "0.00" {
		t.Errorf("unexpected totals %s %s", ts.TotalTime, ts.TotalPrice)
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Build(sampleRows()), Text); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Task name", "Design", "1:30", "3.00", "Review *", "Total", "2:15"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 4 {
		t.Errorf("expected 4 lines, got %d:\n%s", lines, out)
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Build(sampleRows()), JSON); err != nil {
		t.Fatal(err)
	}
	var got Timesheet
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.TotalMinutes != 135 || got.Entries[0].Name != "Design" {
		t.Errorf("unexpected decoded timesheet %+v", got)
	}
	if strings.Contains(buf.String(), "totalPrice") {
		t.Error("unexported fields must not be encoded")
	}
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Build(sampleRows()), YAML); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if got["total_time"] != "2:15" {
		t.Errorf("expected total_time 2:15, got %v", got["total_time"])
	}
	entries, ok := got["entries"].([]any)
	if !ok || len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", got["entries"])
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": Text, "TEXT": Text, "json": JSON, " yaml ": YAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected an error for xml")
	}
}
