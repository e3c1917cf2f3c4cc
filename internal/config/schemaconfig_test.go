package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

func writeTempSchemaConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp schema config: %v", err)
	}
	return path
}

func TestLoadSchemaConfig_ValidAndApply(t *testing.T) {
	path := writeTempSchemaConfig(t, `{
    "extensions": [
      {"sheet": "blog_posts", "fields": [
        {"name": "reading_time", "type": "integer"},
        {"name": "featured", "type": "boolean"}
      ]},
      {"sheet": "products", "fields": [{"name": "weight", "type": "decimal"}]}
    ]
  }`)

	sc, err := LoadSchemaConfig(path)
	if err != nil {
		t.Fatalf("LoadSchemaConfig: %v", err)
	}
	if len(sc.Extensions) != 2 {
		t.Fatalf("got %d extensions, want 2", len(sc.Extensions))
	}

	reg := schema.DefaultRegistry()
	if err := sc.Apply(reg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	blog, _ := reg.Lookup(schema.BlogPosts)
	headers := blog.Headers()
	if headers[len(headers)-1] != "featured" || headers[len(headers)-2] != "reading_time" {
		t.Errorf("extension columns not appended: %v", headers)
	}
	if f, ok := blog.Field("reading_time"); !ok || f.Type != schema.Integer {
		t.Errorf("reading_time field: %+v, %v", f, ok)
	}
}

func TestLoadSchemaConfig_YAML(t *testing.T) {
	path := writeTempSchemaConfig(t, `
extensions:
  - sheet: faqs
    fields:
      - name: votes
        type: integer
`)
	sc, err := LoadSchemaConfig(path)
	if err != nil {
		t.Fatalf("LoadSchemaConfig: %v", err)
	}
	reg := schema.DefaultRegistry()
	if err := sc.Apply(reg); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	faqs, _ := reg.Lookup(schema.FAQs)
	if !faqs.Has("votes") {
		t.Error("votes column not added")
	}
}

func TestLoadSchemaConfig_Invalid(t *testing.T) {
	tests := []struct {
		name, content, wantErr string
	}{
		{"bad syntax", `{not: [valid`, "parse schema config"},
		{"empty sheet", `{"extensions":[{"sheet":"","fields":[{"name":"x","type":"string"}]}]}`, "empty sheet"},
		{"no fields", `{"extensions":[{"sheet":"faqs","fields":[]}]}`, "no fields"},
		{"empty name", `{"extensions":[{"sheet":"faqs","fields":[{"name":"","type":"string"}]}]}`, "empty name"},
		{"bad type", `{"extensions":[{"sheet":"faqs","fields":[{"name":"x","type":"uuid"}]}]}`, "unsupported field type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSchemaConfig(writeTempSchemaConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSchemaConfig_MissingFile(t *testing.T) {
	if _, err := LoadSchemaConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSchemaConfig_ApplyCollectsErrors(t *testing.T) {
	sc := &SchemaConfig{Extensions: []SheetExtension{
		{Sheet: "orders", Fields: []FieldConfig{{Name: "total", Type: "decimal"}}},
		{Sheet: "faqs", Fields: []FieldConfig{{Name: "question", Type: "string"}}},
		{Sheet: "faqs", Fields: []FieldConfig{{Name: "votes", Type: "integer"}}},
	}}
	reg := schema.DefaultRegistry()
	err := sc.Apply(reg)
	if err == nil {
		t.Fatal("expected errors")
	}
	if !errors.Is(err, schema.ErrUnknownSchema) {
		t.Errorf("unknown sheet not reported: %v", err)
	}
	if !strings.Contains(err.Error(), `"question" already defined`) {
		t.Errorf("duplicate column not reported: %v", err)
	}
	faqs, _ := reg.Lookup(schema.FAQs)
	if !faqs.Has("votes") {
		t.Error("valid extension not applied")
	}
}
