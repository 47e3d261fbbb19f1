package storage

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/record"
)

// Memory is a Provider that keeps records in process memory. Retrieve
// returns records ordered by file name, like FS.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]record.Record // collection -> file name -> record
}

// NewMemory returns a Memory provider seeded with records.
func NewMemory(seed ...record.Record) *Memory {
	m := &Memory{collections: make(map[string]map[string]record.Record)}
	for _, r := range seed {
		m.put(r.Clone())
	}
	return m
}

func (m *Memory) put(r record.Record) {
	c, ok := m.collections[r.Collection]
	if !ok {
		c = make(map[string]record.Record)
		m.collections[r.Collection] = c
	}
	c[r.FileName] = r
}

// Retrieve returns copies of the records in collection.
func (m *Memory) Retrieve(collection string) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collections[collection]
	out := make([]record.Record, 0, len(c))
	for _, r := range c {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b record.Record) int {
		return strings.Compare(a.FileName, b.FileName)
	})
	return out, nil
}

// Set merges fields into each record and stores the result.
func (m *Memory) Set(records []record.Record, fields []record.Field) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := make([]record.Record, 0, len(records))
	for _, r := range records {
		if err := validName("collection", r.Collection); err != nil {
			return updated, err
		}
		rec := r.Clone()
		rec.Apply(fields)
		m.put(rec.Clone())
		updated = append(updated, rec)
	}
	return updated, nil
}

// Delete removes records; an unknown record aborts with apperr.ErrNotFound.
func (m *Memory) Delete(records []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		c := m.collections[r.Collection]
		if _, ok := c[r.FileName]; !ok {
			return fmt.Errorf("storage: delete %s/%s: %w", r.Collection, r.FileName, apperr.ErrNotFound)
		}
		delete(c, r.FileName)
	}
	return nil
}
