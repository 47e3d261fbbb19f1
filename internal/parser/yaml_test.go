package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/siena/internal/record"
)

func TestParseYAML_Mapping(t *testing.T) {
	got := ParseYAML([]byte("title: Bye, world\ndate: 2022-09-10\nviews: 12\n"))
	want := map[string]record.Value{
		"title": record.String("Bye, world"),
		"date":  record.String("2022-09-10"),
		"views": record.Number(12),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAML_DegradesToEmpty(t *testing.T) {
	inputs := []string{
		"Just some prose, not a mapping.",
		"- a\n- b\n",
		"key: [unclosed",
		"price: 1.5",
		"",
	}
	for _, in := range inputs {
		got := ParseYAML([]byte(in))
		if got == nil || len(got) != 0 {
			t.Errorf("ParseYAML(%q) = %v, want empty mapping", in, got)
		}
	}
}

func TestMarshalYAML_RoundTrip(t *testing.T) {
	in := map[string]record.Value{
		"id":     record.String("007"),
		"n":      record.Number(5),
		"ok":     record.Bool(true),
		"nested": record.Map(map[string]record.Value{"k": record.List(record.String("v"))}),
	}
	out, err := MarshalYAML(in)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, ParseYAML(out)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s\n%s", diff, out)
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want record.Value
	}{
		{"42", record.Number(42)},
		{`"42"`, record.String("42")},
		{"true", record.Bool(true)},
		{"hello world", record.String("hello world")},
		{"[a, 1]", record.List(record.String("a"), record.Number(1))},
		{"", record.String("")},
	}
	for _, tc := range cases {
		got, err := ParseValue(tc.in)
		if err != nil {
			t.Errorf("ParseValue(%q): %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseValue(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseValue("1.5"); err == nil {
		t.Error("expected error for float")
	}
}

func TestFormatOf(t *testing.T) {
	cases := map[string]Format{
		"a.yml":      FormatYAML,
		"a.yaml":     FormatYAML,
		"a.md":       FormatFrontMatter,
		"a.markdown": FormatFrontMatter,
		"a.txt":      FormatNone,
		".md":        FormatNone,
	}
	for name, want := range cases {
		if got := FormatOf(name); got != want {
			t.Errorf("FormatOf(%q) = %v, want %v", name, got, want)
		}
	}
}
