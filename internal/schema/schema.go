package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Sheet names a tab in the backing spreadsheet.
type Sheet string

const (
	WebsiteContent  Sheet = "website_content"
	BlogPosts       Sheet = "blog_posts"
	Products        Sheet = "products"
	Categories      Sheet = "categories"
	Settings        Sheet = "settings"
	MenuItems       Sheet = "menu_items"
	AdminUsers      Sheet = "admin_users"
	Testimonials    Sheet = "testimonials"
	FAQs            Sheet = "faqs"
	Images          Sheet = "images"
	ContactMessages Sheet = "contact_messages"
	Funds           Sheet = "funds"
	Webhooks        Sheet = "webhooks"
)

// Metadata fields carried by every sheet.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var (
	// ErrUnknownSchema is returned when a sheet has no registered schema.
	ErrUnknownSchema = errors.New("unknown schema")
	// ErrInvalidField is returned when a value does not match its field type.
	ErrInvalidField = errors.New("invalid field value")
)

// FieldType is the logical type of a column. Values are always stored as strings.
type FieldType string

const (
	String    FieldType = "string"
	Integer   FieldType = "integer"
	Decimal   FieldType = "decimal"
	Boolean   FieldType = "boolean"
	Timestamp FieldType = "timestamp"
	JSON      FieldType = "json"
)

// ParseFieldType maps a config name onto a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch ft := FieldType(s); ft {
	case String, Integer, Decimal, Boolean, Timestamp, JSON:
		return ft, nil
	}
	return "", fmt.Errorf("unsupported field type %q", s)
}

// Field describes a single column.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered column layout of one sheet.
// Headers() and every encoded row MUST share the same order.
type Schema struct {
	Sheet  Sheet
	Fields []Field
}

// Headers returns the column names in sheet order.
func (s Schema) Headers() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Has reports whether name is a column of the sheet.
func (s Schema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Field looks up a column by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks every non-empty value whose key is a column of the sheet.
// Keys that are not columns are ignored; encoding drops them anyway.
func (s Schema) Validate(values map[string]string) error {
	for _, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok || v == "" {
			continue
		}
		if err := checkValue(f.Type, v); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidField, s.Sheet, f.Name, err)
		}
	}
	return nil
}

func checkValue(t FieldType, v string) error {
	switch t {
	case Integer:
		_, err := strconv.ParseInt(v, 10, 64)
		return err
	case Decimal:
		_, err := strconv.ParseFloat(v, 64)
		return err
	case Boolean:
		_, err := strconv.ParseBool(v)
		return err
	case Timestamp:
		if _, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return nil
		}
		_, err := time.Parse(time.DateOnly, v)
		return err
	case JSON:
		if !json.Valid([]byte(v)) {
			return errors.New("not valid JSON")
		}
	}
	return nil
}

func build(sheet Sheet, fields ...Field) Schema {
	fields = append([]Field{{Name: FieldID, Type: String}}, fields...)
	fields = append(fields,
		Field{Name: FieldCreatedAt, Type: Timestamp},
		Field{Name: FieldUpdatedAt, Type: Timestamp},
	)
	return Schema{Sheet: sheet, Fields: fields}
}

func str(name string) Field  { return Field{Name: name, Type: String} }
func num(name string) Field  { return Field{Name: name, Type: Integer} }
func dec(name string) Field  { return Field{Name: name, Type: Decimal} }
func ts(name string) Field   { return Field{Name: name, Type: Timestamp} }
func blob(name string) Field { return Field{Name: name, Type: JSON} }

func defaults() []Schema {
	return []Schema{
		build(WebsiteContent, str("page"), str("section"), str("content"), str("image_url"), num("order")),
		build(BlogPosts, str("title"), str("slug"), str("content"), str("excerpt"), str("category"),
			str("author"), ts("date"), str("image_url"), str("status"), num("views")),
		build(Products, str("name"), str("slug"), dec("price"), str("description"), str("image_url"),
			blob("gallery_urls"), str("category"), num("stock"), str("sku"), str("status")),
		build(Categories, str("name"), str("slug"), str("type"), str("description"), num("order"), str("status")),
		build(Settings, str("setting_key"), str("setting_value"), str("setting_type")),
		build(MenuItems, str("label"), str("url"), str("parent_id"), num("order"), str("target"), str("status")),
		build(AdminUsers, str("username"), str("email"), str("password_hash"), str("role"), str("status"), ts("last_login")),
		build(Testimonials, str("name"), str("designation"), str("review"), num("rating"), str("image_url"),
			str("status"), num("order")),
		build(FAQs, str("question"), str("answer"), str("category"), num("order"), str("status")),
		build(Images, str("filename"), str("url"), str("storage_key"), num("size"), num("width"), num("height"),
			str("format"), ts("upload_date")),
		build(ContactMessages, str("name"), str("email"), str("phone"), str("subject"), str("message"), str("status")),
		build(Funds, str("name"), str("email"), str("phone"), dec("amount"), str("message"), str("status")),
		build(Webhooks, str("name"), str("endpoint"), blob("subscribed_sheets"), str("status")),
	}
}

// Registry is the closed set of known sheets.
type Registry struct {
	schemas map[Sheet]Schema
	order   []Sheet
}

// DefaultRegistry returns a registry holding every built-in sheet.
func DefaultRegistry() *Registry {
	r := &Registry{schemas: make(map[Sheet]Schema)}
	for _, s := range defaults() {
		r.schemas[s.Sheet] = s
		r.order = append(r.order, s.Sheet)
	}
	return r
}

// Lookup returns the schema for sheet or ErrUnknownSchema.
func (r *Registry) Lookup(sheet Sheet) (Schema, error) {
	s, ok := r.schemas[sheet]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, sheet)
	}
	return s, nil
}

// Sheets lists the registered sheets in declaration order.
func (r *Registry) Sheets() []Sheet {
	return slices.Clone(r.order)
}

// Extend appends columns after the existing ones of a known sheet, so rows
// already written keep their alignment.
func (r *Registry) Extend(sheet Sheet, fields ...Field) error {
	s, ok := r.schemas[sheet]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSchema, sheet)
	}
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("extend %s: empty field name", sheet)
		}
		if s.Has(f.Name) {
			return fmt.Errorf("extend %s: field %q already defined", sheet, f.Name)
		}
		if _, err := ParseFieldType(string(f.Type)); err != nil {
			return fmt.Errorf("extend %s: %w", sheet, err)
		}
		s.Fields = append(slices.Clone(s.Fields), f)
	}
	r.schemas[sheet] = s
	return nil
}
