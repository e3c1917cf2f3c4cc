package record

import (
	"encoding/json"
	"maps"
	"strconv"
	"time"
)

// TimeFormat is the ISO-8601 UTC layout, with milliseconds, used for stored timestamps.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in TimeFormat after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Record is one decoded sheet row.
type Record struct {
	Fields map[string]string
	// Position is the 1-based sheet row the record was read from. It is only
	// valid for the snapshot that produced it; zero means unknown.
	Position int
}

// New wraps fields in a Record with no position.
func New(fields map[string]string) Record {
	if fields == nil {
		fields = make(map[string]string)
	}
	return Record{Fields: fields}
}

// Get returns a field value, or "" when absent.
func (r Record) Get(name string) string {
	return r.Fields[name]
}

// ID returns the record id.
func (r Record) ID() string {
	return r.Fields["id"]
}

// Int parses a field as an integer. Empty or malformed values yield def.
func (r Record) Int(name string, def int) int {
	n, err := strconv.Atoi(r.Fields[name])
	if err != nil {
		return def
	}
	return n
}

// Float parses a field as a float. Empty or malformed values yield def.
func (r Record) Float(name string, def float64) float64 {
	f, err := strconv.ParseFloat(r.Fields[name], 64)
	if err != nil {
		return def
	}
	return f
}

// Bool parses a field as a boolean. Empty or malformed values yield false.
func (r Record) Bool(name string) bool {
	b, _ := strconv.ParseBool(r.Fields[name])
	return b
}

// Time parses a timestamp field.
func (r Record) Time(name string) (time.Time, bool) {
	v := r.Fields[name]
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, v); err != nil {
			return time.Time{}, false
		}
	}
	return t, true
}

// JSON decodes a JSON field into v. Empty fields leave v untouched.
func (r Record) JSON(name string, v any) error {
	raw := r.Fields[name]
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	return Record{Fields: maps.Clone(r.Fields), Position: r.Position}
}

// Without returns a copy with the named fields removed.
func (r Record) Without(names ...string) Record {
	c := r.Clone()
	for _, n := range names {
		delete(c.Fields, n)
	}
	return c
}

// MarshalJSON renders the record as a flat object of its fields.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Fields)
}

// UnmarshalJSON reads a flat object of string fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	fields := make(map[string]string)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Fields = fields
	return nil
}

// SortDirection orders query results.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// ParseSortDirection accepts "asc" or "desc" case-sensitively; anything else is Desc.
func ParseSortDirection(s string) SortDirection {
	if s == string(Asc) {
		return Asc
	}
	return Desc
}

// Query selects a page of records.
type Query struct {
	Page      int
	Limit     int
	SortField string
	// SortDirection is ascending unless it is Desc.
	SortDirection SortDirection
	// Filters are case-insensitive substring matches; empty values are ignored.
	Filters map[string]string
	// Exact filters must match the stored value exactly.
	Exact map[string]string
	// Text, when set, must appear case-insensitively in one of TextFields.
	Text       string
	TextFields []string
}

// Page is one slice of a query result.
type Page struct {
	Items      []Record `json:"items"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
	HasNext    bool     `json:"hasNext"`
	HasPrev    bool     `json:"hasPrev"`
}
