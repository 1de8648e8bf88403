// Package sortview translates between registry order, the stable order
// tasks are stored in, and view order, the order they are displayed in
// under the current sort key.
//
// Every batch of row indices that comes from the presentation layer goes
// through View.ToModel before it touches the registry, and every
// registry-origin notification that must reach a visible row goes
// through View.ToView. Both return fresh slices and never modify their
// argument.
package sortview

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrIndexOutOfRange reports a row index outside the snapshot.
var ErrIndexOutOfRange = errors.New("row index out of range")

// Order is the direction of a sort key.
type Order int

const (
	Unsorted Order = iota
	Ascending
	Descending
)

// String returns the persisted spelling of o.
func (o Order) String() string {
	switch o {
	case Ascending:
		return "ASCENDING"
	case Descending:
		return "DESCENDING"
	default:
		return "UNSORTED"
	}
}

// ParseOrder parses the persisted spelling of an Order.
func ParseOrder(s string) (Order, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ASCENDING", "ASC":
		return Ascending, nil
	case "DESCENDING", "DESC":
		return Descending, nil
	case "UNSORTED", "":
		return Unsorted, nil
	}
	return Unsorted, fmt.Errorf("unknown sort order %q", s)
}

// Key is the optional single-column sort. The zero value (and any key
// with Order Unsorted or a negative Column) means registry order.
type Key struct {
	Column int
	Order  Order
}

// NoSort is the key that displays rows in registry order.
var NoSort = Key{Column: -1, Order: Unsorted}

// Sorted reports whether k imposes an order.
func (k Key) Sorted() bool {
	return k.Column >= 0 && k.Order != Unsorted
}

// Normalize folds every unsorted spelling into NoSort.
func (k Key) Normalize() Key {
	if !k.Sorted() {
		return NoSort
	}
	return k
}

// Rows is what a View is computed from: the row count and a three-way
// comparison of two registry rows on one column.
type Rows interface {
	Len() int
	Compare(i, j, column int) int
}

// View is a frozen permutation between view and registry order. Take a
// new one after the row set or the sort key changes.
type View struct {
	viewToModel []int
	modelToView []int
}

// Snapshot sorts rows under key. Ties keep registry order.
func Snapshot(rows Rows, key Key) View {
	n := rows.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if key.Sorted() {
		slices.SortStableFunc(order, func(a, b int) int {
			c := rows.Compare(a, b, key.Column)
			if key.Order == Descending {
				c = -c
			}
			return c
		})
	}
	return FromPermutation(order)
}

// FromPermutation builds a View from a view-to-model permutation. It
// panics if perm is not a permutation of 0..len(perm)-1.
func FromPermutation(perm []int) View {
	v := View{
		viewToModel: slices.Clone(perm),
		modelToView: make([]int, len(perm)),
	}
	seen := make([]bool, len(perm))
	for view, model := range perm {
		if model < 0 || model >= len(perm) || seen[model] {
			panic(fmt.Sprintf("sortview: %v is not a permutation", perm))
		}
		seen[model] = true
		v.modelToView[model] = view
	}
	return v
}

// Len is the number of rows in the snapshot.
func (v View) Len() int { return len(v.viewToModel) }

// ToModel maps view rows to registry rows.
func (v View) ToModel(viewRows []int) ([]int, error) {
	return translate(v.viewToModel, viewRows)
}

// ToView maps registry rows to view rows.
func (v View) ToView(modelRows []int) ([]int, error) {
	return translate(v.modelToView, modelRows)
}

// Model maps one view row to its registry row.
func (v View) Model(viewRow int) (int, error) {
	out, err := v.ToModel([]int{viewRow})
	if err != nil {
		return -1, err
	}
	return out[0], nil
}

// ViewRow maps one registry row to its view row.
func (v View) ViewRow(modelRow int) (int, error) {
	out, err := v.ToView([]int{modelRow})
	if err != nil {
		return -1, err
	}
	return out[0], nil
}

func translate(table, in []int) ([]int, error) {
	out := make([]int, len(in))
	for i, idx := range in {
		if idx < 0 || idx >= len(table) {
			return nil, fmt.Errorf("%w: %d (have %d rows)", ErrIndexOutOfRange, idx, len(table))
		}
		out[i] = table[idx]
	}
	return out, nil
}
