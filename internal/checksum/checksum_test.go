package checksum

import (
	"testing"

	"github.com/starford/siena/internal/parser"
	"github.com/starford/siena/internal/record"
)

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs should not collide")
	}
}

func TestRecord_MatchesEncodedFile(t *testing.T) {
	rec := record.New("posts", "hello")
	rec.Apply([]record.Field{
		record.Set("title", record.String("Hello")),
		record.Set("views", record.Number(3)),
	})
	content, err := parser.Encode(rec.FileName, rec.Data)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Record(rec)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got != Sum(content) {
		t.Errorf("Record = %s, want %s", got, Sum(content))
	}
}

func TestRecord_UnsupportedFile(t *testing.T) {
	rec := record.New("posts", "notes")
	rec.FileName = "notes.txt"
	if _, err := Record(rec); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
