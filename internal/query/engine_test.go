package query

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/record"
	"github.com/starford/siena/internal/storage"
)

func rec(id string, fields map[string]record.Value) record.Record {
	r := record.New("demo", id)
	for k, v := range fields {
		r.Data[k] = v
	}
	return r
}

func str(s string) record.Value { return record.String(s) }

// demoRecords mirrors a small blog collection.
func demoRecords() []record.Record {
	return []record.Record{
		rec("test", map[string]record.Value{"title": str("Bye, world"), "date": str("2022-09-10")}),
		rec("test2", map[string]record.Value{"title": str("Hello, world"), "date": str("2022-09-09")}),
		rec("2", map[string]record.Value{"title": str("Bye, World"), "date": str("2022-01-01")}),
		rec("1", map[string]record.Value{"title": str("Hello, World"), "date": str("2020-01-01")}),
		rec("3", map[string]record.Value{"special-item": str("true"), "date": str("1992-09-17")}),
	}
}

func demoEngine(t *testing.T) *Engine {
	t.Helper()
	return New(storage.NewMemory(demoRecords()...)).Collection("demo")
}

func ids(t *testing.T, e *Engine) []string {
	t.Helper()
	recs, err := e.All()
	require.NoError(t, err)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestWhenIs(t *testing.T) {
	assert.Equal(t, []string{"1"}, ids(t, demoEngine(t).WhenIs("title", "Hello, World")))
	assert.Equal(t, []string{"test2"}, ids(t, demoEngine(t).WhenIs("id", "test2")))
	assert.Empty(t, ids(t, demoEngine(t).WhenIs("missing", "x")))
}

func TestWhenIs_NonStringNeverMatches(t *testing.T) {
	e := New(storage.NewMemory(
		rec("n", map[string]record.Value{"v": record.Number(1)}),
		rec("s", map[string]record.Value{"v": str("1")}),
		rec("b", map[string]record.Value{"v": record.Bool(true)}),
	)).Collection("demo")

	assert.Equal(t, []string{"s"}, ids(t, e.WhenIs("v", "1")))
	assert.Equal(t, []string{"b", "n"}, ids(t, e.WhenIsNot("v", "1")))
	assert.Empty(t, ids(t, e.WhenIs("v", "true")))
}

func TestWhenIsNot_KeepsMissingKey(t *testing.T) {
	got := ids(t, demoEngine(t).WhenIsNot("special-item", "true"))
	assert.ElementsMatch(t, []string{"test", "test2", "2", "1"}, got)
}

func TestWhenIsNot_ChainedThenSorted(t *testing.T) {
	first, err := demoEngine(t).
		WhenIsNot("date", "2022-01-01").
		WhenIsNot("date", "1992-09-17").
		WhenIsNot("date", "2022-09-09").
		WhenIsNot("date", "2022-09-10").
		Sort("date", Descending).
		First()
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID)
}

func TestWhenIs_WhenIsNot_Partition(t *testing.T) {
	all := ids(t, demoEngine(t))
	for _, value := range []string{"Hello, World", "Bye, world", "nothing"} {
		in := ids(t, demoEngine(t).WhenIs("title", value))
		out := ids(t, demoEngine(t).WhenIsNot("title", value))
		assert.Len(t, append(in, out...), len(all), value)
		assert.ElementsMatch(t, all, append(in, out...), value)
	}
}

func TestWhenAnyIs(t *testing.T) {
	got := ids(t, demoEngine(t).WhenAnyIs([]string{"title", "special-item"}, "true"))
	assert.Equal(t, []string{"3"}, got)
}

func TestWhenHas(t *testing.T) {
	assert.Equal(t, []string{"3"}, ids(t, demoEngine(t).WhenHas("special-item")))
	assert.Len(t, ids(t, demoEngine(t).WhenHasNot("special-item")), 4)
	assert.Empty(t, ids(t, demoEngine(t).WhenHas("id")))
}

func TestWhenMatches(t *testing.T) {
	assert.Equal(t, []string{"3"}, ids(t, demoEngine(t).WhenMatches("date", `1992`)))
	assert.Equal(t, []string{"test", "test2"}, ids(t, demoEngine(t).WhenMatches("id", `^test`)))
}

func TestWhenMatches_InvalidPattern(t *testing.T) {
	e := demoEngine(t).WhenMatches("title", `([`).Limit(1)
	_, err := e.All()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidPattern))
	assert.ErrorIs(t, e.Set(record.Set("x", str("y"))), apperr.ErrInvalidPattern)
}

func TestSort_DateDescending(t *testing.T) {
	got := ids(t, demoEngine(t).Sort("date", Descending))
	assert.Equal(t, []string{"test", "test2", "2", "1", "3"}, got)

	got = ids(t, demoEngine(t).Sort("date", Ascending))
	assert.Equal(t, []string{"3", "1", "2", "test2", "test"}, got)
}

func TestSort_MissingKeySinks(t *testing.T) {
	e := New(storage.NewMemory(
		rec("a", map[string]record.Value{"date": str("2020-01-01")}),
		rec("b", nil),
		rec("c", map[string]record.Value{"date": str("2019-01-01")}),
	)).Collection("demo")

	assert.Equal(t, []string{"a", "c", "b"}, ids(t, e.Sort("date", Descending)))
	assert.Equal(t, []string{"c", "a", "b"}, ids(t, e.Sort("date", Ascending)))
}

func TestSort_MixedKindsAndNumbers(t *testing.T) {
	e := New(storage.NewMemory(
		rec("a", map[string]record.Value{"n": record.Number(10)}),
		rec("b", map[string]record.Value{"n": str("zzz")}),
		rec("c", map[string]record.Value{"n": record.Number(2)}),
		rec("d", map[string]record.Value{"n": record.List()}),
		rec("e", map[string]record.Value{"n": record.Number(7)}),
	)).Collection("demo")

	// Numbers compare numerically, not lexically; other kinds trail.
	assert.Equal(t, []string{"c", "e", "a", "b", "d"}, ids(t, e.Sort("n", Ascending)))
	assert.Equal(t, []string{"a", "e", "c", "b", "d"}, ids(t, e.Sort("n", Descending)))
}

func TestSort_Stable(t *testing.T) {
	e := New(storage.NewMemory(
		rec("a", map[string]record.Value{"g": str("x")}),
		rec("b", map[string]record.Value{"g": str("y")}),
		rec("c", map[string]record.Value{"g": str("x")}),
	)).Collection("demo")
	assert.Equal(t, []string{"a", "c", "b"}, ids(t, e.Sort("g", Ascending)))
}

func TestSort_Custom(t *testing.T) {
	longest := ByString(func(a, b string) int { return len(b) - len(a) })
	assert.Equal(t, []string{"test2", "test", "1", "2", "3"}, ids(t, demoEngine(t).Sort("id", longest)))

	// Ids are strings, so a number comparator leaves them in place.
	desc := ByNumber(func(a, b uint64) int { return int(b) - int(a) })
	assert.Equal(t, ids(t, demoEngine(t)), ids(t, demoEngine(t).Sort("id", desc)))
}

func TestSort_DoesNotMutateReceiver(t *testing.T) {
	base := demoEngine(t)
	before := ids(t, base)
	_ = base.Sort("id", Descending)
	assert.Equal(t, before, ids(t, base))
}

func TestLimitOffset(t *testing.T) {
	sorted := demoEngine(t).Sort("date", Descending)
	assert.Equal(t, []string{"test"}, ids(t, sorted.Limit(1)))
	assert.Equal(t, []string{"2", "1", "3"}, ids(t, sorted.Offset(2)))
	assert.Empty(t, ids(t, sorted.Offset(6)))
	assert.Empty(t, ids(t, sorted.Offset(5)))
	assert.Len(t, ids(t, sorted.Limit(100)), 5)

	_, err := sorted.Limit(-1).All()
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestPaginate(t *testing.T) {
	sorted := demoEngine(t).Sort("date", Descending)
	assert.Equal(t, []string{"test", "test2"}, ids(t, sorted.Paginate(1, 2)))
	assert.Equal(t, []string{"2", "1"}, ids(t, sorted.Paginate(2, 2)))
	assert.Equal(t, []string{"3"}, ids(t, sorted.Paginate(3, 2)))
	assert.Empty(t, ids(t, sorted.Paginate(4, 2)))

	for _, n := range []int{5, 6, 100} {
		assert.Equal(t, ids(t, sorted.Limit(n)), ids(t, sorted.Paginate(1, n)))
	}
}

func TestPaginate_RejectsPageZero(t *testing.T) {
	_, err := demoEngine(t).Paginate(0, 10).All()
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = demoEngine(t).Paginate(1, -1).All()
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestFirstLastCount(t *testing.T) {
	sorted := demoEngine(t).Sort("id", Ascending)
	first, err := sorted.First()
	require.NoError(t, err)
	last, err := sorted.Last()
	require.NoError(t, err)
	n, err := sorted.Count()
	require.NoError(t, err)

	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "test2", last.ID)
	assert.Equal(t, 5, n)

	_, err = sorted.WhenIs("id", "nope").First()
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = sorted.WhenIs("id", "nope").Last()
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCollection_Reloads(t *testing.T) {
	store := storage.NewMemory(append(demoRecords(), record.Record{
		ID: "other", Collection: "other", FileName: "other.yml", Data: map[string]record.Value{},
	})...)
	e := New(store).Collection("demo").WhenIs("id", "1").Collection("other")
	assert.Equal(t, []string{"other"}, ids(t, e))
}

func TestUpdateViaSet(t *testing.T) {
	store := storage.NewMemory(demoRecords()...)
	require.NoError(t, New(store).Collection("demo").WhenIs("id", "1").Set(
		record.Set("title", str("Updated")),
		record.Set("views", record.Number(9)),
	))

	got, err := New(store).Get("demo", "1")
	require.NoError(t, err)
	title, _ := got.Data["title"].AsString()
	views, _ := got.Data["views"].AsNumber()
	assert.Equal(t, "Updated", title)
	assert.Equal(t, uint64(9), views)
}

func TestCreate_AloneDoesNotPersist(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFS(root)
	require.NoError(t, err)

	created, err := New(store).Create("demo", "x").All()
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "x.yml", created[0].FileName)

	assert.Empty(t, ids(t, New(store).Collection("demo").WhenIs("id", "x")))
	_, statErr := os.Stat(filepath.Join(root, "demo"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreate_ThenSetPersists(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, New(store).Create("demo", "x").Set(record.Set("title", str("T"))))

	got, err := New(store).Collection("demo").WhenIs("id", "x").First()
	require.NoError(t, err)
	title, ok := got.Data["title"].AsString()
	assert.True(t, ok)
	assert.Equal(t, "T", title)
}

func TestCreate_IDToken(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, New(store).Create("demo", "post-:id").Set(record.Set("a", str("b"))))

	recs, err := New(store).Collection("demo").All()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	suffix, ok := strings.CutPrefix(recs[0].ID, "post-")
	require.True(t, ok)
	_, err = uuid.Parse(suffix)
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	store := storage.NewMemory(demoRecords()...)
	require.NoError(t, New(store).Collection("demo").WhenMatches("id", `^test`).Delete())
	assert.Equal(t, []string{"1", "2", "3"}, ids(t, New(store).Collection("demo")))

	err := New(store).Create("demo", "ghost").Delete()
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCollection_ProviderError(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	_, err = New(store).Collection("../escape").WhenIs("a", "b").All()
	assert.ErrorIs(t, err, apperr.ErrInvalidName)
}
