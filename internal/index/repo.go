package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/checksum"
	"github.com/starford/siena/internal/parser"
	"github.com/starford/siena/internal/record"
)

// Ref addresses one record file.
type Ref struct {
	Collection string
	FileName   string
}

func (r Ref) String() string { return r.Collection + "/" + r.FileName }

// Row is one record as stored in the records table.
type Row struct {
	Record    record.Record
	Checksum  string
	UpdatedAt time.Time
}

// Upsert inserts or replaces a record row.
func (db *DB) Upsert(row Row) error {
	data, err := parser.MarshalYAML(row.Record.Data)
	if err != nil {
		return fmt.Errorf("index: upsert %s/%s: %w", row.Record.Collection, row.Record.FileName, err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO records (collection, file_name, id, data, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, file_name) DO UPDATE SET
			id         = excluded.id,
			data       = excluded.data,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, row.Record.Collection, row.Record.FileName, row.Record.ID, string(data), row.Checksum, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert %s/%s: %w", row.Record.Collection, row.Record.FileName, err)
	}
	return nil
}

// Remove deletes the row for ref. It reports whether a row existed.
func (db *DB) Remove(ref Ref) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM records WHERE collection = ? AND file_name = ?`,
		ref.Collection, ref.FileName)
	if err != nil {
		return false, fmt.Errorf("index: remove %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("index: remove %s: %w", ref, err)
	}
	return n > 0, nil
}

// GetChecksum returns the stored checksum for ref, or empty string if not found.
func (db *DB) GetChecksum(ref Ref) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM records WHERE collection = ? AND file_name = ?`,
		ref.Collection, ref.FileName).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum %s: %w", ref, err)
	}
	return cs, nil
}

// AllChecksums returns the checksum of every indexed record.
func (db *DB) AllChecksums() (map[Ref]string, error) {
	rows, err := db.conn.Query(`SELECT collection, file_name, checksum FROM records`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[Ref]string)
	for rows.Next() {
		var ref Ref
		var cs string
		if err := rows.Scan(&ref.Collection, &ref.FileName, &cs); err != nil {
			return nil, err
		}
		out[ref] = cs
	}
	return out, rows.Err()
}

// Collections lists every collection with at least one indexed record.
func (db *DB) Collections() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT collection FROM records ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("index: collections: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Retrieve returns the records of collection ordered by file name.
func (db *DB) Retrieve(collection string) ([]record.Record, error) {
	rows, err := db.conn.Query(`
		SELECT file_name, id, data FROM records
		WHERE collection = ?
		ORDER BY file_name
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("index: retrieve %s: %w", collection, err)
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		rec := record.Record{Collection: collection}
		var data string
		if err := rows.Scan(&rec.FileName, &rec.ID, &data); err != nil {
			return nil, fmt.Errorf("index: retrieve %s: %w", collection, err)
		}
		if rec.Data, err = decodeData(data); err != nil {
			return nil, fmt.Errorf("index: retrieve %s/%s: %w", collection, rec.FileName, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Set merges fields into every record and stores the result. The checksum is
// that of the file the record would be written to, so a later Sync from the
// filesystem sees an identical file as unchanged.
func (db *DB) Set(records []record.Record, fields []record.Field) ([]record.Record, error) {
	updated := make([]record.Record, 0, len(records))
	for _, r := range records {
		rec := r.Clone()
		rec.Apply(fields)

		sum, err := checksum.Record(rec)
		if err != nil {
			return updated, fmt.Errorf("index: %w", err)
		}
		row := Row{Record: rec, Checksum: sum, UpdatedAt: time.Now()}
		if err := db.Upsert(row); err != nil {
			return updated, err
		}
		updated = append(updated, rec)
	}
	return updated, nil
}

// Delete removes every record; an unknown record aborts with
// apperr.ErrNotFound.
func (db *DB) Delete(records []record.Record) error {
	for _, r := range records {
		ok, err := db.Remove(Ref{Collection: r.Collection, FileName: r.FileName})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("index: delete %s/%s: %w", r.Collection, r.FileName, apperr.ErrNotFound)
		}
	}
	return nil
}

func decodeData(data string) (map[string]record.Value, error) {
	return parser.ParseMapping([]byte(data))
}
