package query

import (
	"cmp"
	"slices"
	"strings"

	"github.com/starford/siena/internal/record"
)

// Order selects how Sort compares two values.
type Order struct {
	desc bool
	str  func(a, b string) int
	num  func(a, b uint64) int
}

var (
	// Ascending orders strings lexically and numbers numerically.
	Ascending = Order{}
	// Descending reverses Ascending.
	Descending = Order{desc: true}
)

// ByString orders string values (and ids) with fn, which returns a negative
// number when a sorts before b. Number values are incomparable under it.
func ByString(fn func(a, b string) int) Order { return Order{str: fn} }

// ByNumber orders number values with fn. String values and ids are
// incomparable under it.
func ByNumber(fn func(a, b uint64) int) Order { return Order{num: fn} }

func (o Order) custom() bool { return o.str != nil || o.num != nil }

func (o Order) accepts(k record.Kind) bool {
	switch k {
	case record.KindString:
		return !o.custom() || o.str != nil
	case record.KindNumber:
		return !o.custom() || o.num != nil
	}
	return false
}

func (o Order) compare(a, b record.Value) int {
	var c int
	if as, ok := a.AsString(); ok {
		bs, _ := b.AsString()
		if o.str != nil {
			return o.str(as, bs)
		}
		c = strings.Compare(as, bs)
	} else {
		an, _ := a.AsNumber()
		bn, _ := b.AsNumber()
		if o.num != nil {
			return o.num(an, bn)
		}
		c = cmp.Compare(an, bn)
	}
	if o.desc {
		return -c
	}
	return c
}

func sortValue(r record.Record, key string) (record.Value, bool) {
	if key == record.KeyID {
		return record.String(r.ID), true
	}
	return r.Get(key)
}

// Sort orders records by key with a stable sort. For "id" the record id is
// compared. Otherwise only values of one scalar kind are compared with each
// other: the kind of the first record holding a comparable value. Records
// missing the key, or holding a value of any other kind, are incomparable
// and sink to the end in their original order, whichever the direction.
func (e *Engine) Sort(key string, order Order) *Engine {
	if e.err != nil {
		return e
	}

	var kind record.Kind
	for _, r := range e.records {
		if v, ok := sortValue(r, key); ok && order.accepts(v.Kind()) {
			kind = v.Kind()
			break
		}
	}

	sorted := make([]record.Record, 0, len(e.records))
	var rest []record.Record
	for _, r := range e.records {
		if v, ok := sortValue(r, key); ok && kind != 0 && v.Kind() == kind {
			sorted = append(sorted, r)
		} else {
			rest = append(rest, r)
		}
	}

	slices.SortStableFunc(sorted, func(a, b record.Record) int {
		av, _ := sortValue(a, key)
		bv, _ := sortValue(b, key)
		return order.compare(av, bv)
	})
	return e.next(append(sorted, rest...))
}
