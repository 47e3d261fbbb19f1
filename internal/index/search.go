package index

import (
	"fmt"
	"strings"

	"github.com/starford/siena/internal/record"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search returns records whose id or serialised data contains query,
// case-insensitively for ASCII. An empty collection searches all of them.
func (db *DB) Search(collection, query string, limit int) ([]record.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(`
		SELECT collection, file_name, id, data
		FROM records
		WHERE (? = '' OR collection = ?)
		  AND (id LIKE ? ESCAPE '\' OR data LIKE ? ESCAPE '\')
		ORDER BY collection, file_name
		LIMIT ?
	`, collection, collection, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []record.Record{}
	for rows.Next() {
		var rec record.Record
		var data string
		if err := rows.Scan(&rec.Collection, &rec.FileName, &rec.ID, &data); err != nil {
			return nil, err
		}
		if rec.Data, err = decodeData(data); err != nil {
			return nil, fmt.Errorf("index: search %s/%s: %w", rec.Collection, rec.FileName, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
