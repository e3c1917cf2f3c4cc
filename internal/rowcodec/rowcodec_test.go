package rowcodec

import (
	"errors"
	"slices"
	"testing"

	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

var headers = []string{"id", "name", "status"}

func TestDecode_PadsMissingTrailingCells(t *testing.T) {
	r := Decode(headers, []string{"cat_1"}, 5)
	if r.Position != 5 {
		t.Errorf("position: got %d, want 5", r.Position)
	}
	if r.Get("id") != "cat_1" || r.Get("name") != "" || r.Get("status") != "" {
		t.Errorf("got %v", r.Fields)
	}
	if _, ok := r.Fields["status"]; !ok {
		t.Error("missing trailing header should decode as empty, not absent")
	}
}

func TestDecode_IgnoresExtraCells(t *testing.T) {
	r := Decode(headers, []string{"a", "b", "c", "d"}, 2)
	if len(r.Fields) != 3 {
		t.Errorf("got %d fields, want 3", len(r.Fields))
	}
}

func TestDecodeAll_Positions(t *testing.T) {
	recs := DecodeAll(headers, [][]string{{"a"}, {"b"}, {"c"}})
	for i, r := range recs {
		if r.Position != i+2 {
			t.Errorf("record %d: position %d, want %d", i, r.Position, i+2)
		}
	}
}

func TestEncode_HeaderOrder(t *testing.T) {
	row := Encode(headers, map[string]string{"status": "active", "id": "x", "extra": "dropped"})
	want := []string{"x", "", "active"}
	if !slices.Equal(row, want) {
		t.Errorf("got %v, want %v", row, want)
	}
}

func TestRoundTrip_RowPaddedOrTruncated(t *testing.T) {
	tests := [][]string{
		{"a", "b", "c"},
		{"a"},
		{},
		{"a", "b", "c", "d", "e"},
	}
	for _, row := range tests {
		got := Encode(headers, Decode(headers, row, 2).Fields)
		want := make([]string, len(headers))
		copy(want, row)
		if !slices.Equal(got, want) {
			t.Errorf("row %v: got %v, want %v", row, got, want)
		}
	}
}

func TestRoundTrip_RecordKeepsHeaderFields(t *testing.T) {
	fields := map[string]string{"id": "1", "name": "n", "status": "s", "other": "o"}
	got := Decode(headers, Encode(headers, fields), 2)
	if len(got.Fields) != 3 || got.Get("name") != "n" || got.Get("other") != "" {
		t.Errorf("got %v", got.Fields)
	}
}

func TestCodec_UnknownSheet(t *testing.T) {
	c := New(schema.DefaultRegistry())
	if _, err := c.Encode("ghost", nil); !errors.Is(err, schema.ErrUnknownSchema) {
		t.Errorf("Encode: got %v", err)
	}
	if _, err := c.Decode("ghost", nil, 2); !errors.Is(err, schema.ErrUnknownSchema) {
		t.Errorf("Decode: got %v", err)
	}
	if _, err := c.DecodeAll("ghost", nil); !errors.Is(err, schema.ErrUnknownSchema) {
		t.Errorf("DecodeAll: got %v", err)
	}
}

func TestCodec_KnownSheet(t *testing.T) {
	c := New(schema.DefaultRegistry())
	row, err := c.Encode(schema.Categories, map[string]string{"id": "cat_1", "name": "Shoes"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s, _ := schema.DefaultRegistry().Lookup(schema.Categories)
	if len(row) != len(s.Headers()) {
		t.Fatalf("row length %d, want %d", len(row), len(s.Headers()))
	}
	r, err := c.Decode(schema.Categories, row, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Get("name") != "Shoes" || r.Position != 3 {
		t.Errorf("got %+v", r)
	}
}
