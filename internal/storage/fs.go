package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/natefinch/atomic"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/checksum"
	"github.com/starford/siena/internal/parser"
	"github.com/starford/siena/internal/record"
)

const fileMode = 0o644

// FS implements Provider on a local directory tree: each collection is a
// directory directly under root and each record is a file inside it.
type FS struct {
	root   string // absolute path to the store directory
	logger *slog.Logger
}

// FSOption configures an FS.
type FSOption func(*FS)

// WithLogger sets the logger used to report skipped files.
func WithLogger(l *slog.Logger) FSOption {
	return func(f *FS) {
		if l != nil {
			f.logger = l
		}
	}
}

// Entry describes one record file on disk.
type Entry struct {
	Collection string
	FileName   string
	Checksum   string
	UpdatedAt  time.Time
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...FSOption) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f := &FS{root: abs, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Root returns the absolute store directory.
func (f *FS) Root() string { return f.root }

// validName rejects anything that is not a single path segment.
func validName(kind, name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		return fmt.Errorf("storage: %s %q: %w", kind, name, apperr.ErrInvalidName)
	}
	return nil
}

func (f *FS) collectionDir(collection string) (string, error) {
	if err := validName("collection", collection); err != nil {
		return "", err
	}
	return filepath.Join(f.root, collection), nil
}

func (f *FS) recordPath(collection, fileName string) (string, error) {
	dir, err := f.collectionDir(collection)
	if err != nil {
		return "", err
	}
	if err := validName("file name", fileName); err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Retrieve reads every record file in the collection directory. Files with
// other extensions are ignored and unreadable files are skipped. A front
// matter file with a malformed header fails the whole retrieval.
func (f *FS) Retrieve(collection string) ([]record.Record, error) {
	dir, err := f.collectionDir(collection)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		// A collection that is absent, or a plain file, holds no records.
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return []record.Record{}, nil
		}
		return nil, fmt.Errorf("storage: retrieve %s: %w", collection, err)
	}

	out := make([]record.Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !record.HasExtension(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			f.logger.Warn("storage: skipping unreadable record",
				slog.String("collection", collection),
				slog.String("file", e.Name()),
				slog.String("error", err.Error()))
			continue
		}
		rec, err := DecodeRecord(collection, e.Name(), data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Read returns the raw contents of a record file.
func (f *FS) Read(collection, fileName string) ([]byte, error) {
	p, err := f.recordPath(collection, fileName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s/%s: %w", collection, fileName, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s/%s: %w", collection, fileName, err)
	}
	return data, nil
}

// Load reads and decodes a single record file.
func (f *FS) Load(collection, fileName string) (record.Record, error) {
	data, err := f.Read(collection, fileName)
	if err != nil {
		return record.Record{}, err
	}
	return DecodeRecord(collection, fileName, data)
}

// DecodeRecord builds a record from file contents using the codec implied by
// fileName.
func DecodeRecord(collection, fileName string, data []byte) (record.Record, error) {
	fields, err := parser.Decode(fileName, data)
	if err != nil {
		return record.Record{}, fmt.Errorf("storage: %s/%s: %w", collection, fileName, err)
	}
	return record.Record{
		ID:         record.IDFromFileName(fileName),
		Collection: collection,
		FileName:   fileName,
		Data:       fields,
	}, nil
}

// Set merges fields into every record and writes each one back with the
// codec implied by its file name.
func (f *FS) Set(records []record.Record, fields []record.Field) ([]record.Record, error) {
	updated := make([]record.Record, 0, len(records))
	for _, r := range records {
		rec := r.Clone()
		rec.Apply(fields)

		p, err := f.recordPath(rec.Collection, rec.FileName)
		if err != nil {
			return updated, err
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return updated, fmt.Errorf("storage: mkdir: %w", err)
		}
		content, err := parser.Encode(rec.FileName, rec.Data)
		if err != nil {
			return updated, fmt.Errorf("storage: encode %s/%s: %w", rec.Collection, rec.FileName, err)
		}
		_, statErr := os.Stat(p)
		if err := atomic.WriteFile(p, bytes.NewReader(content)); err != nil {
			return updated, fmt.Errorf("storage: write %s/%s: %w", rec.Collection, rec.FileName, err)
		}
		// New files would keep the temp file's 0600 mode.
		if errors.Is(statErr, fs.ErrNotExist) {
			if err := os.Chmod(p, fileMode); err != nil {
				return updated, fmt.Errorf("storage: chmod %s/%s: %w", rec.Collection, rec.FileName, err)
			}
		}
		updated = append(updated, rec)
	}
	return updated, nil
}

// Delete removes the backing file of every record.
func (f *FS) Delete(records []record.Record) error {
	for _, r := range records {
		p, err := f.recordPath(r.Collection, r.FileName)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("storage: delete %s/%s: %w", r.Collection, r.FileName, apperr.ErrNotFound)
			}
			return fmt.Errorf("storage: delete %s/%s: %w", r.Collection, r.FileName, err)
		}
	}
	return nil
}

// Collections lists the directories directly under root.
func (f *FS) Collections() ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: collections: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// List returns a checksum and modification time for every record file in
// the collection.
func (f *FS) List(collection string) ([]Entry, error) {
	dir, err := f.collectionDir(collection)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list %s: %w", collection, err)
	}
	var out []Entry
	for _, e := range entries {
		if e.IsDir() || !record.HasExtension(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Collection: collection,
			FileName:   e.Name(),
			Checksum:   checksum.Sum(data),
			UpdatedAt:  info.ModTime(),
		})
	}
	return out, nil
}
