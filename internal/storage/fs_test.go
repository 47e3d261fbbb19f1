package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/record"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func writeFile(t *testing.T, fs *FS, rel, content string) {
	t.Helper()
	p := filepath.Join(fs.Root(), rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRetrieve_MixedFormats(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "demo/a.yml", "title: A\n")
	writeFile(t, s, "demo/b.md", "---\ntitle: B\n---\n\nHello.")
	writeFile(t, s, "demo/c.yaml", "title: C\n")
	writeFile(t, s, "demo/d.markdown", "---\ntitle: D\n---\n")
	writeFile(t, s, "demo/readme.txt", "ignored")
	writeFile(t, s, "demo/sub.md/inner.yml", "title: nested\n")

	recs, err := s.Retrieve("demo")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
		if r.Collection != "demo" {
			t.Errorf("%s: collection = %q", r.ID, r.Collection)
		}
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	b := recs[1]
	if b.FileName != "b.md" {
		t.Errorf("file name = %q", b.FileName)
	}
	if raw, _ := b.Data["content_raw"].AsString(); raw != "Hello." {
		t.Errorf("content_raw = %q", raw)
	}
}

func TestRetrieve_MissingCollection(t *testing.T) {
	s := tempStore(t)
	recs, err := s.Retrieve("nope")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("recs = %v, want empty", recs)
	}
}

func TestRetrieve_CollectionIsAFile(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "notes", "not a directory")
	recs, err := s.Retrieve("notes")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("recs = %v, want empty", recs)
	}
}

func TestRetrieve_SkipsUnreadableFile(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "demo/a.yml", "title: A\n")
	if err := os.Symlink(filepath.Join(s.Root(), "missing.yml"), filepath.Join(s.Root(), "demo", "x.yml")); err != nil {
		t.Skipf("symlink: %v", err)
	}

	recs, err := s.Retrieve("demo")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "a" {
		t.Errorf("recs = %+v, want only a", recs)
	}
}

func TestRetrieve_ProseYAMLIsEmpty(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "demo/prose.yml", "This is plain prose, not a mapping.\n")
	recs, err := s.Retrieve("demo")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(recs) != 1 || len(recs[0].Data) != 0 {
		t.Errorf("recs = %+v, want one record with no fields", recs)
	}
}

func TestRetrieve_MalformedFrontMatterFails(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "demo/bad.md", "---\ntitle: [oops\n---\nbody")
	_, err := s.Retrieve("demo")
	if !errors.Is(err, apperr.ErrDecode) {
		t.Errorf("err = %v, want decode error", err)
	}
}

func TestSet_WritesYAMLAndCreatesDir(t *testing.T) {
	s := tempStore(t)
	rec := record.New("fresh", "x")
	updated, err := s.Set([]record.Record{rec}, []record.Field{
		record.Set("title", record.String("T")),
		record.Set("views", record.Number(3)),
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(updated) != 1 || !updated[0].Has("title") {
		t.Fatalf("updated = %+v", updated)
	}
	if len(rec.Data) != 0 {
		t.Error("Set mutated the caller's record")
	}

	got, err := s.Load("fresh", "x.yml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Equal(updated[0]) {
		t.Errorf("reloaded %+v, want %+v", got, updated[0])
	}
}

func TestSet_NewFileMode(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Set([]record.Record{record.New("fresh", "x")}, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	info, err := os.Stat(filepath.Join(s.Root(), "fresh", "x.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Errorf("mode = %v, want 0644", perm)
	}
}

func TestSet_FailureKeepsEarlierWrites(t *testing.T) {
	s := tempStore(t)
	// A file where the second collection directory should be.
	writeFile(t, s, "blocked", "not a directory")

	updated, err := s.Set([]record.Record{record.New("good", "a"), record.New("blocked", "b")}, []record.Field{
		record.Set("title", record.String("T")),
	})
	if err == nil {
		t.Fatal("expected error writing into a file")
	}
	if len(updated) != 1 || updated[0].ID != "a" {
		t.Errorf("updated = %+v, want only a", updated)
	}

	got, err := s.Load("good", "a.yml")
	if err != nil {
		t.Fatalf("earlier write lost: %v", err)
	}
	if title, _ := got.Data["title"].AsString(); title != "T" {
		t.Errorf("title = %q", title)
	}
}

func TestSet_FrontMatterKeepsBody(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "posts/hello.md", "---\ntitle: Old\n---\n\nBody text.\n")
	recs, err := s.Retrieve("posts")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Set(recs, []record.Field{record.Set("title", record.String("New"))}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(s.Root(), "posts", "hello.md"))
	if err != nil {
		t.Fatal(err)
	}
	want := "---\ntitle: New\n---\n\nBody text.\n"
	if string(raw) != want {
		t.Errorf("file = %q, want %q", raw, want)
	}
}

func TestSet_RejectsTraversal(t *testing.T) {
	s := tempStore(t)
	cases := []record.Record{
		{ID: "x", Collection: "../outside", FileName: "x.yml"},
		{ID: "x", Collection: "demo", FileName: "../x.yml"},
		{ID: "x", Collection: "/etc", FileName: "x.yml"},
		{ID: "x", Collection: "", FileName: "x.yml"},
	}
	for _, r := range cases {
		if _, err := s.Set([]record.Record{r}, nil); !errors.Is(err, apperr.ErrInvalidName) {
			t.Errorf("Set(%s/%s) err = %v", r.Collection, r.FileName, err)
		}
	}
	if _, err := s.Retrieve("../.."); !errors.Is(err, apperr.ErrInvalidName) {
		t.Errorf("Retrieve traversal err = %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "demo/del.yml", "a: b\n")
	recs, _ := s.Retrieve("demo")
	if err := s.Delete(recs); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "demo", "del.yml")); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
	if err := s.Delete(recs); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

func TestCollectionsAndList(t *testing.T) {
	s := tempStore(t)
	writeFile(t, s, "a/one.yml", "x: y\n")
	writeFile(t, s, "b/two.md", "body")
	writeFile(t, s, "b/skip.json", "{}")
	writeFile(t, s, ".hidden/three.yml", "x: y\n")

	cols, err := s.Collections()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, cols); diff != "" {
		t.Errorf("collections mismatch (-want +got):\n%s", diff)
	}
	entries, err := s.List("b")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].FileName != "two.md" || entries[0].Checksum == "" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "siena-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
