// Package checksum fingerprints record files so the index can tell which
// ones changed since the last sync.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/starford/siena/internal/parser"
	"github.com/starford/siena/internal/record"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Record returns the digest of the file rec would be written as. It equals
// Sum of the bytes storage.FS writes for the same record.
func Record(rec record.Record) (string, error) {
	content, err := parser.Encode(rec.FileName, rec.Data)
	if err != nil {
		return "", fmt.Errorf("checksum: encode %s/%s: %w", rec.Collection, rec.FileName, err)
	}
	return Sum(content), nil
}
