// Package testutil provides shared test helpers for setting up stores and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/siena/internal/index"
	"github.com/starford/siena/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "siena-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary store directory with a filesystem provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile writes content to rel under root, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// BlogFixture writes a small posts collection used across package tests.
func BlogFixture(t *testing.T, root string) {
	t.Helper()
	WriteFile(t, root, "posts/first.md", "---\ntitle: First\ndate: 2021-01-01\nstatus: published\n---\n\nHello *world*.\n")
	WriteFile(t, root, "posts/second.md", "---\ntitle: Second\ndate: 2022-06-01\nstatus: draft\n---\n\nWork in progress.\n")
	WriteFile(t, root, "posts/third.yml", "title: Third\ndate: 2023-03-15\nstatus: published\nviews: 42\n")
}
