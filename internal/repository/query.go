package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// Query filters, sorts and paginates a sheet.
//
// Filters are case-insensitive substring matches and empty filter values are
// ignored. Exact filters and free text narrow the result further.
// Sorting compares raw strings byte-wise, so "10" sorts before "9"; ties
// keep sheet order. A page past the end is empty, not an error.
func (r *Repository) Query(ctx context.Context, sheet schema.Sheet, q record.Query) (*record.Page, error) {
	if q.Page < 1 || q.Limit < 1 {
		return nil, fmt.Errorf("%w: page %d, limit %d", ErrInvalidQuery, q.Page, q.Limit)
	}
	s, err := r.lookup(sheet)
	if err != nil {
		return nil, err
	}
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return nil, err
	}

	matched := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		if matchesSubstrings(rec, q.Filters) && matchesExactly(rec, q.Exact) && matchesText(rec, q.Text, q.TextFields) {
			matched = append(matched, rec)
		}
	}

	if q.SortField != "" {
		field := q.SortField
		desc := q.SortDirection == record.Desc
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i].Fields[field], matched[j].Fields[field]
			if desc {
				return a > b
			}
			return a < b
		})
	}

	total := len(matched)
	totalPages := total / q.Limit
	if total%q.Limit != 0 {
		totalPages++
	}
	start := total
	if q.Page-1 < totalPages {
		start = (q.Page - 1) * q.Limit
	}
	end := start + min(q.Limit, total-start)

	return &record.Page{
		Items:      cloneAll(matched[start:end]),
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: totalPages,
		HasNext:    q.Page < totalPages,
		HasPrev:    q.Page > 1,
	}, nil
}

func matchesSubstrings(rec record.Record, filters map[string]string) bool {
	for field, want := range filters {
		if want == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(rec.Fields[field]), strings.ToLower(want)) {
			return false
		}
	}
	return true
}

func matchesText(rec record.Record, text string, fields []string) bool {
	if text == "" {
		return true
	}
	needle := strings.ToLower(text)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(rec.Fields[f]), needle) {
			return true
		}
	}
	return false
}

// Count returns how many records match every non-empty filter exactly.
func (r *Repository) Count(ctx context.Context, sheet schema.Sheet, filters map[string]string) (int, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return 0, err
	}
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range recs {
		if matchesExactly(rec, filters) {
			n++
		}
	}
	return n, nil
}

func matchesExactly(rec record.Record, filters map[string]string) bool {
	for field, want := range filters {
		if want != "" && rec.Fields[field] != want {
			return false
		}
	}
	return true
}

// Distinct returns the non-empty values of field in first-seen order.
func (r *Repository) Distinct(ctx context.Context, sheet schema.Sheet, field string) ([]string, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return nil, err
	}
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, rec := range recs {
		v := rec.Fields[field]
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Search returns records where any of fields contains text, case-insensitively.
// An empty text matches every record.
func (r *Repository) Search(ctx context.Context, sheet schema.Sheet, text string, fields []string) ([]record.Record, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return nil, err
	}
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for _, rec := range recs {
		if matchesText(rec, text, fields) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}
