package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned when the remote store cannot serve a call:
// network failures, quota errors, timeouts, or an open circuit breaker.
var ErrUnavailable = errors.New("store unavailable")

// TabularStore is the remote spreadsheet. Rows are 1-indexed; row 1 holds headers.
type TabularStore interface {
	// ReadRange returns the values in r. Trailing empty cells and rows may be omitted.
	ReadRange(ctx context.Context, r Range) ([][]string, error)

	// UpdateRange overwrites the cells in r with values, written verbatim.
	UpdateRange(ctx context.Context, r Range, values [][]string) error

	// AppendRow inserts values as a new row after the last non-empty row.
	AppendRow(ctx context.Context, sheet string, values []string) error

	// DeleteRows removes rows [start, end) using zero-based indices and shifts
	// the rows below up.
	DeleteRows(ctx context.Context, sheet string, start, end int) error

	// Ping checks that the spreadsheet is reachable.
	Ping(ctx context.Context) error
}

// Range addresses a rectangle of a sheet starting at column A.
type Range struct {
	Sheet    string
	StartRow int
	// EndRow is inclusive; zero means open-ended.
	EndRow  int
	Columns int
}

// DataRange covers every data row of a sheet with the given column count.
func DataRange(sheet string, columns int) Range {
	return Range{Sheet: sheet, StartRow: 2, Columns: columns}
}

// RowRange covers exactly one row.
func RowRange(sheet string, row, columns int) Range {
	return Range{Sheet: sheet, StartRow: row, EndRow: row, Columns: columns}
}

// A1 renders the range in A1 notation, e.g. "blog_posts!A2:M" or "faqs!A5:I5".
func (r Range) A1() string {
	last := ColumnName(max(r.Columns, 1))
	if r.EndRow > 0 {
		return fmt.Sprintf("%s!A%d:%s%d", r.Sheet, r.StartRow, last, r.EndRow)
	}
	return fmt.Sprintf("%s!A%d:%s", r.Sheet, r.StartRow, last)
}

// ColumnName converts a 1-based column number to letters: 1→A, 26→Z, 27→AA.
func ColumnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
