package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/colors"
	"github.com/harrisonrobin/lwtt/pkg/index"
	"github.com/harrisonrobin/lwtt/pkg/model"
	"github.com/harrisonrobin/lwtt/pkg/util"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendar serves the subset of the Calendar API the client uses.
type fakeCalendar struct {
	mu      sync.Mutex
	events  map[string]*calendar.Event
	nextID  int
	inserts int
	patches int
	lists   int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]*calendar.Event)}
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case path == "users/me/calendarList":
		writeJSON(w, &calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "primary", Summary: "Personal"},
			{Id: "sheet", Summary: "Timesheet"},
		}})
	case path == "calendars/sheet/events" && r.Method == http.MethodGet:
		f.lists++
		var items []*calendar.Event
		for _, ev := range f.events {
			if matches(ev, r.URL.Query()["privateExtendedProperty"]) {
				items = append(items, ev)
			}
		}
		writeJSON(w, &calendar.Events{Items: items})
	case path == "calendars/sheet/events" && r.Method == http.MethodPost:
		var ev calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		f.inserts++
		ev.Id = fmt.Sprintf("ev%d", f.nextID)
		f.events[ev.Id] = &ev
		writeJSON(w, &ev)
	case strings.HasPrefix(path, "calendars/sheet/events/"):
		id := strings.TrimPrefix(path, "calendars/sheet/events/")
		ev, ok := f.events[id]
		if !ok {
			http.Error(w, `{"error":{"code":404,"message":"Not Found"}}`, http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, ev)
		case http.MethodPatch:
			var patch calendar.Event
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.patches++
			if patch.Summary != "" {
				ev.Summary = patch.Summary
			}
			if patch.Description != "" {
				ev.Description = patch.Description
			}
			if patch.Start != nil {
				ev.Start = patch.Start
			}
			if patch.End != nil {
				ev.End = patch.End
			}
			if patch.ColorId != "" {
				ev.ColorId = patch.ColorId
			}
			writeJSON(w, ev)
		case http.MethodDelete:
			delete(f.events, id)
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		http.NotFound(w, r)
	}
}

func matches(ev *calendar.Event, filters []string) bool {
	for _, filter := range filters {
		key, value, _ := strings.Cut(filter, "=")
		if ev.ExtendedProperties == nil || ev.ExtendedProperties.Private[key] != value {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, fake *fakeCalendar, idx *index.EventIndex) *CalendarClient {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	srv, err := calendar.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	id, err := FindCalendar(srv, "Timesheet")
	if err != nil {
		t.Fatalf("FindCalendar failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCalendarClient(srv, id, idx, logger)
}

func newIndex(t *testing.T) *index.EventIndex {
	t.Helper()
	idx, err := index.NewEventIndex(filepath.Join(t.TempDir(), "events.json"))
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

var publishDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestPublishCreatesAndIndexes(t *testing.T) {
	fake := newFakeCalendar()
	idx := newIndex(t)
	client := newTestClient(t, fake, idx)

	rec := model.Record{ID: 3, Name: "Review", Consumption: 90 * time.Minute, Rate: 2}
	ev, err := client.PublishTask(rec, publishDay)
	if err != nil {
		t.Fatalf("PublishTask failed: %v", err)
	}
	if fake.inserts != 1 {
		t.Fatalf("expected 1 insert, got %d", fake.inserts)
	}
	if ev.Summary != "Review (1:30)" {
		t.Errorf("unexpected summary %q", ev.Summary)
	}
	if got := idx.Get(3, "2026-03-02"); got != ev.Id {
		t.Errorf("expected index to map to %s, got %q", ev.Id, got)
	}
}

func TestPublishUnchangedIsNoop(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, newIndex(t))

	rec := model.Record{ID: 1, Name: "A", Consumption: time.Hour, Rate: 1}
	first, err := client.PublishTask(rec, publishDay)
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.PublishTask(rec, publishDay)
	if err != nil {
		t.Fatal(err)
	}
	if first.Id != second.Id {
		t.Errorf("expected the same event, got %s and %s", first.Id, second.Id)
	}
	if fake.inserts != 1 || fake.patches != 0 {
		t.Errorf("expected 1 insert and no patch, got %d inserts and %d patches", fake.inserts, fake.patches)
	}
	if fake.lists != 1 {
		t.Errorf("indexed republish should not search, got %d list calls", fake.lists)
	}
}

func TestPublishPatchesChangedTime(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, newIndex(t))

	rec := model.Record{ID: 1, Name: "A", Consumption: time.Hour, Rate: 1}
	if _, err := client.PublishTask(rec, publishDay); err != nil {
		t.Fatal(err)
	}
	rec.Consumption = 2 * time.Hour
	ev, err := client.PublishTask(rec, publishDay)
	if err != nil {
		t.Fatal(err)
	}
	if fake.patches != 1 {
		t.Fatalf("expected 1 patch, got %d", fake.patches)
	}
	if ev.Summary != "A (2:00)" {
		t.Errorf("unexpected summary %q", ev.Summary)
	}
	if ev.End.DateTime != "2026-03-02T11:00:00Z" {
		t.Errorf("unexpected end %q", ev.End.DateTime)
	}
}

func TestPublishFindsUnindexedEvent(t *testing.T) {
	fake := newFakeCalendar()
	rec := model.Record{ID: 5, Name: "B", Consumption: 30 * time.Minute, Rate: 1}
	if _, err := newTestClient(t, fake, nil).PublishTask(rec, publishDay); err != nil {
		t.Fatal(err)
	}

	idx := newIndex(t)
	ev, err := newTestClient(t, fake, idx).PublishTask(rec, publishDay)
	if err != nil {
		t.Fatal(err)
	}
	if fake.inserts != 1 {
		t.Errorf("expected the existing event to be reused, got %d inserts", fake.inserts)
	}
	if idx.Get(5, "2026-03-02") != ev.Id {
		t.Error("expected the found event to be indexed")
	}
}

func TestPublishSeparateDays(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, newIndex(t))

	rec := model.Record{ID: 1, Name: "A", Consumption: time.Hour, Rate: 1}
	if _, err := client.PublishTask(rec, publishDay); err != nil {
		t.Fatal(err)
	}
	if _, err := client.PublishTask(rec, publishDay.AddDate(0, 0, 1)); err != nil {
		t.Fatal(err)
	}
	if fake.inserts != 2 {
		t.Errorf("expected one event per day, got %d inserts", fake.inserts)
	}
}

func TestPublishRejectsEmptyTask(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, nil)
	if _, err := client.PublishTask(model.Record{ID: 1, Name: "A"}, publishDay); err == nil {
		t.Fatal("expected an error for a task without tracked time")
	}
	if fake.inserts != 0 {
		t.Errorf("expected no insert, got %d", fake.inserts)
	}
}

func TestStaleIndexFallsBackToSearch(t *testing.T) {
	fake := newFakeCalendar()
	idx := newIndex(t)
	idx.Set(1, "2026-03-02", "gone")
	client := newTestClient(t, fake, idx)

	rec := model.Record{ID: 1, Name: "A", Consumption: time.Hour, Rate: 1}
	ev, err := client.PublishTask(rec, publishDay)
	if err != nil {
		t.Fatalf("PublishTask failed: %v", err)
	}
	if idx.Get(1, "2026-03-02") != ev.Id {
		t.Errorf("expected stale mapping to be replaced with %s", ev.Id)
	}
	if ev.ExtendedProperties.Private[util.EventIDProperty] != "1" {
		t.Error("expected the event to carry the task id")
	}
}

func TestFindCalendarMissing(t *testing.T) {
	server := httptest.NewServer(newFakeCalendar())
	defer server.Close()
	srv, err := calendar.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := FindCalendar(srv, "Nope"); err == nil {
		t.Fatal("expected an error for an unknown calendar")
	}
}

func TestPublishAssignsTaskColor(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, newIndex(t))
	cache, err := colors.NewColorCache(filepath.Join(t.TempDir(), "colors.json"), nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := model.Record{ID: 1, Name: "A", Consumption: time.Hour, Rate: 1}
	if _, err := client.PublishTask(rec, publishDay); err != nil {
		t.Fatal(err)
	}
	client.SetColors(cache)
	ev, err := client.PublishTask(rec, publishDay)
	if err != nil {
		t.Fatal(err)
	}
	if ev.ColorId != "1" {
		t.Errorf("expected color 1, got %q", ev.ColorId)
	}
	if fake.patches != 1 {
		t.Errorf("expected the color to be patched in, got %d patches", fake.patches)
	}
}

func TestDeleteEvent(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, nil)

	rec := model.Record{ID: 1, Name: "A", Consumption: time.Hour, Rate: 1}
	ev, err := client.PublishTask(rec, publishDay)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.DeleteEvent(ev.Id); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if len(fake.events) != 0 {
		t.Fatalf("expected the event to be gone, have %d", len(fake.events))
	}
	if err := client.DeleteEvent(ev.Id); err != nil {
		t.Errorf("deleting a missing event should succeed, got %v", err)
	}
}
