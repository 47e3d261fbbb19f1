package index

import (
	"github.com/starford/siena/internal/record"
	"github.com/starford/siena/internal/storage"
)

// RecordIndex is the mirror as seen by consumers that only search it.
// Depend on it rather than *DB to substitute a fake in tests.
type RecordIndex interface {
	storage.Provider
	Search(collection, query string, limit int) ([]record.Record, error)
	Collections() ([]string, error)
}

// Verify *DB satisfies RecordIndex at compile time.
var _ RecordIndex = (*DB)(nil)
