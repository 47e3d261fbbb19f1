// Package query implements the chainable record query builder.
//
// An Engine holds a working set of records and the provider they came from.
// Every chained method returns a new Engine and leaves its receiver
// untouched; terminal methods return records or hand them back to the
// provider:
//
//	posts, err := query.New(store).
//		Collection("posts").
//		WhenIs("status", "published").
//		Sort("date", query.Descending).
//		Paginate(1, 10).
//		All()
//
// A failing step (an invalid pattern, a bad page number, a retrieval error)
// is remembered; the rest of the chain is skipped and the terminal call
// returns the error.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/record"
	"github.com/starford/siena/internal/storage"
)

// IDToken inside an id passed to Create is replaced by a random UUID.
const IDToken = ":id"

// Engine is one step of a query chain.
type Engine struct {
	records  []record.Record
	provider storage.Provider
	err      error
}

// New returns an empty Engine bound to provider.
func New(provider storage.Provider) *Engine {
	return &Engine{records: []record.Record{}, provider: provider}
}

func (e *Engine) next(records []record.Record) *Engine {
	return &Engine{records: records, provider: e.provider}
}

func (e *Engine) fail(err error) *Engine {
	return &Engine{records: e.records, provider: e.provider, err: err}
}

// Err returns the error recorded by an earlier step, if any.
func (e *Engine) Err() error { return e.err }

// Collection replaces the working set with every record of the named
// collection. Records loaded earlier in the chain are discarded.
func (e *Engine) Collection(name string) *Engine {
	if e.err != nil {
		return e
	}
	records, err := e.provider.Retrieve(name)
	if err != nil {
		return e.fail(fmt.Errorf("query: collection %s: %w", name, err))
	}
	return e.next(records)
}

func (e *Engine) filter(keep func(record.Record) bool) *Engine {
	if e.err != nil {
		return e
	}
	out := make([]record.Record, 0, len(e.records))
	for _, r := range e.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return e.next(out)
}

// stringField returns the record id for "id", otherwise the string stored
// under key. Absent keys and non-string values report false.
func stringField(r record.Record, key string) (string, bool) {
	if key == record.KeyID {
		return r.ID, true
	}
	v, ok := r.Data[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// WhenIs keeps records whose key holds a string equal to value.
func (e *Engine) WhenIs(key, value string) *Engine {
	return e.filter(func(r record.Record) bool {
		s, ok := stringField(r, key)
		return ok && s == value
	})
}

// WhenIsNot keeps records whose key is absent, is not a string, or holds a
// different string. It is the exact complement of WhenIs.
func (e *Engine) WhenIsNot(key, value string) *Engine {
	return e.filter(func(r record.Record) bool {
		s, ok := stringField(r, key)
		return !ok || s != value
	})
}

// WhenAnyIs keeps records where at least one of keys holds value.
func (e *Engine) WhenAnyIs(keys []string, value string) *Engine {
	return e.filter(func(r record.Record) bool {
		for _, key := range keys {
			if s, ok := stringField(r, key); ok && s == value {
				return true
			}
		}
		return false
	})
}

// WhenHas keeps records with key present in their data, whatever its type.
func (e *Engine) WhenHas(key string) *Engine {
	return e.filter(func(r record.Record) bool { return r.Has(key) })
}

// WhenHasNot keeps records without key in their data.
func (e *Engine) WhenHasNot(key string) *Engine {
	return e.filter(func(r record.Record) bool { return !r.Has(key) })
}

// WhenMatches keeps records whose key holds a string matching pattern.
func (e *Engine) WhenMatches(key, pattern string) *Engine {
	if e.err != nil {
		return e
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return e.fail(fmt.Errorf("query: pattern %q: %w: %w", pattern, apperr.ErrInvalidPattern, err))
	}
	return e.filter(func(r record.Record) bool {
		s, ok := stringField(r, key)
		return ok && re.MatchString(s)
	})
}

// Limit keeps at most n records.
func (e *Engine) Limit(n int) *Engine {
	if e.err != nil {
		return e
	}
	if n < 0 {
		return e.fail(fmt.Errorf("query: limit %d: %w", n, apperr.ErrInvalidArgument))
	}
	if n >= len(e.records) {
		return e.next(e.records)
	}
	return e.next(clip(e.records[:n]))
}

// Offset drops the first n records. Offsetting past the end leaves nothing.
func (e *Engine) Offset(n int) *Engine {
	if e.err != nil {
		return e
	}
	if n < 0 {
		return e.fail(fmt.Errorf("query: offset %d: %w", n, apperr.ErrInvalidArgument))
	}
	if n >= len(e.records) {
		return e.next([]record.Record{})
	}
	return e.next(clip(e.records[n:]))
}

// Paginate returns page number page (starting at 1) of pageSize records.
func (e *Engine) Paginate(page, pageSize int) *Engine {
	if e.err != nil {
		return e
	}
	if page < 1 {
		return e.fail(fmt.Errorf("query: page %d: %w", page, apperr.ErrInvalidArgument))
	}
	if pageSize < 0 {
		return e.fail(fmt.Errorf("query: page size %d: %w", pageSize, apperr.ErrInvalidArgument))
	}
	skip := page - 1
	if pageSize > 0 && skip > len(e.records)/pageSize {
		return e.next([]record.Record{})
	}
	return e.Offset(skip * pageSize).Limit(pageSize)
}

// Create appends an unsaved record with file name id + ".yml". Nothing is
// written until the chain ends in Set. Every ":id" in id is replaced by a
// new UUID.
func (e *Engine) Create(collection, id string) *Engine {
	if e.err != nil {
		return e
	}
	if strings.Contains(id, IDToken) {
		id = strings.ReplaceAll(id, IDToken, uuid.NewString())
	}
	out := make([]record.Record, len(e.records), len(e.records)+1)
	copy(out, e.records)
	return e.next(append(out, record.New(collection, id)))
}

// All returns the working set.
func (e *Engine) All() ([]record.Record, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.records, nil
}

// First returns the first record, or apperr.ErrNotFound when there is none.
func (e *Engine) First() (record.Record, error) {
	if e.err != nil {
		return record.Record{}, e.err
	}
	if len(e.records) == 0 {
		return record.Record{}, fmt.Errorf("query: first: %w", apperr.ErrNotFound)
	}
	return e.records[0], nil
}

// Last returns the last record, or apperr.ErrNotFound when there is none.
func (e *Engine) Last() (record.Record, error) {
	if e.err != nil {
		return record.Record{}, e.err
	}
	if len(e.records) == 0 {
		return record.Record{}, fmt.Errorf("query: last: %w", apperr.ErrNotFound)
	}
	return e.records[len(e.records)-1], nil
}

// Count returns the size of the working set.
func (e *Engine) Count() (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	return len(e.records), nil
}

// Get loads a single record by collection and id.
func (e *Engine) Get(collection, id string) (record.Record, error) {
	return e.Collection(collection).WhenIs(record.KeyID, id).First()
}

// Set merges fields into every record in the working set and persists them.
// Re-query to observe the result.
func (e *Engine) Set(fields ...record.Field) error {
	if e.err != nil {
		return e.err
	}
	if _, err := e.provider.Set(e.records, fields); err != nil {
		return fmt.Errorf("query: set: %w", err)
	}
	return nil
}

// Delete removes every record in the working set from the provider.
func (e *Engine) Delete() error {
	if e.err != nil {
		return e.err
	}
	if err := e.provider.Delete(e.records); err != nil {
		return fmt.Errorf("query: delete: %w", err)
	}
	return nil
}

// clip copies s so later appends never write into a parent's backing array.
func clip(s []record.Record) []record.Record {
	out := make([]record.Record, len(s))
	copy(out, s)
	return out
}
