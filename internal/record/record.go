// Package record defines the document types stored in collections.
package record

import (
	"maps"
	"strings"
)

// Synthetic keys added by the front matter codec.
const (
	KeyContent    = "content"
	KeyContentRaw = "content_raw"
)

// KeyID addresses Record.ID in filters and sorts.
const KeyID = "id"

// Extensions recognised as record files.
var Extensions = []string{".yml", ".yaml", ".md", ".markdown"}

// Record is one file in a collection.
type Record struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection"`
	FileName   string           `json:"file_name"`
	Data       map[string]Value `json:"data"`
}

// New returns an empty, unsaved record whose file name is id + ".yml".
func New(collection, id string) Record {
	return Record{
		ID:         id,
		Collection: collection,
		FileName:   id + ".yml",
		Data:       map[string]Value{},
	}
}

// Get returns the value stored under key.
func (r Record) Get(key string) (Value, bool) {
	v, ok := r.Data[key]
	return v, ok
}

// Has reports whether key is present in Data.
func (r Record) Has(key string) bool {
	_, ok := r.Data[key]
	return ok
}

// Clone returns a copy of r whose Data can be modified independently.
func (r Record) Clone() Record {
	out := r
	out.Data = make(map[string]Value, len(r.Data))
	for k, v := range r.Data {
		out.Data[k] = v.Clone()
	}
	return out
}

// Apply merges fields into r.Data in order; later fields win.
func (r *Record) Apply(fields []Field) {
	if r.Data == nil {
		r.Data = make(map[string]Value, len(fields))
	}
	for _, f := range fields {
		r.Data[f.Key] = f.Value
	}
}

// Equal reports whether two records are identical.
func (r Record) Equal(o Record) bool {
	return r.ID == o.ID &&
		r.Collection == o.Collection &&
		r.FileName == o.FileName &&
		maps.EqualFunc(r.Data, o.Data, Value.Equal)
}

// Field is a (key, value) pair handed to a Set operation.
type Field struct {
	Key   string
	Value Value
}

// Set builds a Field.
func Set(key string, value Value) Field {
	return Field{Key: key, Value: value}
}

// HasExtension reports whether name ends in one of Extensions.
func HasExtension(name string) bool {
	return extension(name) != ""
}

// IDFromFileName strips the record extension from name.
func IDFromFileName(name string) string {
	return strings.TrimSuffix(name, extension(name))
}

func extension(name string) string {
	for _, ext := range Extensions {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return ext
		}
	}
	return ""
}
