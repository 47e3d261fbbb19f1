// Package storage translates between records and their backing store.
package storage

import "github.com/starford/siena/internal/record"

// Provider is the contract between the query engine and a backend. It does
// no filtering or ordering of its own.
type Provider interface {
	// Retrieve returns every record in the named collection. A collection
	// that does not exist is empty, not an error.
	Retrieve(collection string) ([]record.Record, error)
	// Set merges fields into each record (later fields win), persists it and
	// returns the updated records. The first write failure aborts the batch;
	// records written before it stay written.
	Set(records []record.Record, fields []record.Field) ([]record.Record, error)
	// Delete removes every record. A record with no backing entry aborts the
	// batch.
	Delete(records []record.Record) error
}
