package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// Page is the response body for list operations.
type Page struct {
	Items      []map[string]string `json:"items" doc:"Records on this page"`
	Total      int                 `json:"total" doc:"Records matching the query"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"totalPages"`
	HasNext    bool                `json:"hasNext"`
	HasPrev    bool                `json:"hasPrev"`
}

type PageOutput struct {
	Body Page
}

type RecordOutput struct {
	Body map[string]string
}

type DeletedOutput struct {
	Body struct {
		Deleted bool `json:"deleted"`
	}
}

func deleted() *DeletedOutput {
	out := &DeletedOutput{}
	out.Body.Deleted = true
	return out
}

func recordOut(rec record.Record) *RecordOutput {
	if rec.Fields == nil {
		return &RecordOutput{Body: map[string]string{}}
	}
	return &RecordOutput{Body: rec.Fields}
}

func pageOut(p *record.Page, strip ...string) *PageOutput {
	items := make([]map[string]string, len(p.Items))
	for i, rec := range p.Items {
		items[i] = rec.Without(strip...).Fields
	}
	return &PageOutput{Body: Page{
		Items:      items,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
		HasNext:    p.HasNext,
		HasPrev:    p.HasPrev,
	}}
}

// ListParams are the query parameters shared by list operations.
type ListParams struct {
	Page   int    `query:"page" minimum:"1" default:"1" doc:"1-based page number"`
	Limit  int    `query:"limit" minimum:"1" maximum:"1000" default:"10" doc:"Records per page"`
	Sort   string `query:"sort" doc:"Field to sort by"`
	Order  string `query:"order" doc:"Sort direction, asc or desc"`
	Q      string `query:"q" doc:"Free text search"`
	Filter string `query:"filter" doc:"Substring filter as field:value"`
}

func (p ListParams) query(s schema.Schema, defaultSort string, defaultOrder record.SortDirection) (record.Query, error) {
	q := record.Query{
		Page:          p.Page,
		Limit:         p.Limit,
		SortField:     p.Sort,
		SortDirection: defaultOrder,
		Text:          p.Q,
	}
	if p.Order != "" {
		q.SortDirection = record.ParseSortDirection(p.Order)
	}
	if q.SortField == "" {
		q.SortField = defaultSort
	} else if !s.Has(q.SortField) {
		return record.Query{}, fmt.Errorf("%w: cannot sort by %q", errBadRequest, q.SortField)
	}
	if p.Filter != "" {
		field, value, ok := strings.Cut(p.Filter, ":")
		if !ok || !s.Has(field) {
			return record.Query{}, fmt.Errorf("%w: filter must be field:value on a known field", errBadRequest)
		}
		q.Filters = map[string]string{field: value}
	}
	return q, nil
}

// toFields flattens a JSON object into sheet cell strings. Numbers and
// booleans use their JSON spelling and nested values are stored as JSON.
func toFields(body map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(body))
	for k, v := range body {
		switch x := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = x
		case bool:
			out[k] = strconv.FormatBool(x)
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case json.Number:
			out[k] = x.String()
		default:
			b, err := json.Marshal(x)
			if err != nil {
				return nil, fmt.Errorf("%w: field %q: %v", schema.ErrInvalidField, k, err)
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

// writable drops metadata keys and rejects fields the schema does not know.
func writable(s schema.Schema, fields map[string]string) error {
	delete(fields, schema.FieldID)
	delete(fields, schema.FieldCreatedAt)
	delete(fields, schema.FieldUpdatedAt)
	for k := range fields {
		if !s.Has(k) {
			return fmt.Errorf("%w: unknown field %q", schema.ErrInvalidField, k)
		}
	}
	return nil
}
