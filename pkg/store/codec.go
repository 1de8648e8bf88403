package store

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/lwtt/pkg/model"
	"github.com/harrisonrobin/lwtt/pkg/sortview"
)

// Document keys. Task keys are "<id>.<field>".
const (
	KeyLocationX  = "window.location.x"
	KeyLocationY  = "window.location.y"
	KeySizeW      = "window.size.w"
	KeySizeH      = "window.size.h"
	KeySortColumn = "sortColumn"
	KeySortOrder  = "sortOrder"

	suffixName        = ".name"
	suffixConsumption = ".consumption"
	suffixPrice       = ".price"

	defaultPrice = "1"
)

var (
	// ErrMalformedRecord marks a task record that was skipped on load.
	ErrMalformedRecord = errors.New("malformed task record")
	// ErrMalformedPreference marks a preference that was ignored on load.
	ErrMalformedPreference = errors.New("malformed preference")
)

// Document is the persisted flat key-value form. Unknown keys are
// ignored on decode.
type Document map[string]string

// Point is a window location.
type Point struct{ X, Y int }

// Size is a window size.
type Size struct{ W, H int }

// Preferences is the presentation state kept alongside the tasks. Nil
// geometry means "not recorded".
type Preferences struct {
	Location *Point
	Size     *Size
	Sort     sortview.Key
}

// DefaultPreferences has no geometry and no sort.
func DefaultPreferences() Preferences {
	return Preferences{Sort: sortview.NoSort}
}

// State is a decoded document. Records are in ascending id order.
// Warnings lists every record or preference that was skipped.
type State struct {
	Records  []model.Record
	Prefs    Preferences
	Warnings []error
}

// Encode flattens records and prefs into a document.
func Encode(records []model.Record, prefs Preferences) Document {
	doc := make(Document, 3*len(records)+6)
	if prefs.Location != nil {
		doc[KeyLocationX] = strconv.Itoa(prefs.Location.X)
		doc[KeyLocationY] = strconv.Itoa(prefs.Location.Y)
	}
	if prefs.Size != nil {
		doc[KeySizeW] = strconv.Itoa(prefs.Size.W)
		doc[KeySizeH] = strconv.Itoa(prefs.Size.H)
	}
	key := prefs.Sort.Normalize()
	doc[KeySortColumn] = strconv.Itoa(key.Column)
	doc[KeySortOrder] = key.Order.String()

	for _, rec := range records {
		id := strconv.Itoa(rec.ID)
		doc[id+suffixName] = rec.Name
		doc[id+suffixConsumption] = strconv.FormatInt(rec.Consumption.Milliseconds(), 10)
		doc[id+suffixPrice] = strconv.FormatFloat(rec.Rate, 'f', -1, 64)
	}
	return doc
}

// Decode rebuilds records and prefs from a document. Bad records and
// preferences are skipped and reported in Warnings; decoding itself
// never fails.
func Decode(doc Document) *State {
	state := &State{Prefs: DefaultPreferences()}
	decodePreferences(doc, state)

	var ids []string
	for key := range doc {
		if strings.HasSuffix(key, suffixName) {
			ids = append(ids, strings.TrimSuffix(key, suffixName))
		}
	}
	slices.Sort(ids)

	seen := make(map[int]string)
	for _, key := range ids {
		rec, err := decodeRecord(doc, key)
		if err != nil {
			state.Warnings = append(state.Warnings, fmt.Errorf("%w: task %q: %v", ErrMalformedRecord, key, err))
			continue
		}
		if prev, dup := seen[rec.ID]; dup {
			state.Warnings = append(state.Warnings, fmt.Errorf("%w: task %q: id already used by %q", ErrMalformedRecord, key, prev))
			continue
		}
		seen[rec.ID] = key
		state.Records = append(state.Records, rec)
	}
	slices.SortFunc(state.Records, func(a, b model.Record) int { return cmp.Compare(a.ID, b.ID) })
	return state
}

func decodeRecord(doc Document, ids string) (model.Record, error) {
	id, err := strconv.Atoi(ids)
	if err != nil {
		return model.Record{}, fmt.Errorf("id: %w", err)
	}
	if id < 0 {
		return model.Record{}, fmt.Errorf("id %d is negative", id)
	}

	cons, ok := doc[ids+suffixConsumption]
	if !ok {
		return model.Record{}, errors.New("consumption missing")
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(cons), 10, 64)
	if err != nil {
		return model.Record{}, fmt.Errorf("consumption: %w", err)
	}
	if ms < 0 {
		return model.Record{}, fmt.Errorf("consumption %d is negative", ms)
	}
	if ms > math.MaxInt64/int64(time.Millisecond) {
		return model.Record{}, fmt.Errorf("consumption %d out of range", ms)
	}

	price, ok := doc[ids+suffixPrice]
	if !ok {
		price = defaultPrice
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil {
		return model.Record{}, fmt.Errorf("price: %w", err)
	}
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return model.Record{}, fmt.Errorf("price %v out of range", rate)
	}

	return model.Record{
		ID:          id,
		Name:        doc[ids+suffixName],
		Consumption: time.Duration(ms) * time.Millisecond,
		Rate:        rate,
	}, nil
}

func decodePreferences(doc Document, state *State) {
	warn := func(what string, err error) {
		state.Warnings = append(state.Warnings, fmt.Errorf("%w: %s: %v", ErrMalformedPreference, what, err))
	}

	if x, y, ok, err := intPair(doc, KeyLocationX, KeyLocationY); err != nil {
		warn("window location", err)
	} else if ok {
		state.Prefs.Location = &Point{X: x, Y: y}
	}

	if w, h, ok, err := intPair(doc, KeySizeW, KeySizeH); err != nil {
		warn("window size", err)
	} else if ok {
		state.Prefs.Size = &Size{W: w, H: h}
	}

	column, hasColumn := doc[KeySortColumn]
	if !hasColumn {
		return
	}
	col, err := strconv.Atoi(strings.TrimSpace(column))
	if err != nil {
		warn("sort column", err)
		return
	}
	order := sortview.Unsorted
	if s, ok := doc[KeySortOrder]; ok {
		if order, err = sortview.ParseOrder(s); err != nil {
			warn("sort order", err)
			return
		}
	}
	state.Prefs.Sort = sortview.Key{Column: col, Order: order}.Normalize()
}

// intPair parses two keys that are only meaningful together. ok is false
// when either is absent.
func intPair(doc Document, ka, kb string) (a, b int, ok bool, err error) {
	sa, okA := doc[ka]
	sb, okB := doc[kb]
	if !okA || !okB {
		return 0, 0, false, nil
	}
	if a, err = strconv.Atoi(strings.TrimSpace(sa)); err != nil {
		return 0, 0, false, err
	}
	if b, err = strconv.Atoi(strings.TrimSpace(sb)); err != nil {
		return 0, 0, false, err
	}
	return a, b, true, nil
}
