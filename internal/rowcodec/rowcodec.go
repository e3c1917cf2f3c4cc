package rowcodec

import (
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// FirstDataRow is the sheet row holding the first record; row 1 is the header.
const FirstDataRow = 2

// Decode maps row values onto headers by position. Missing trailing cells
// decode as "" and cells beyond the header list are ignored.
func Decode(headers []string, row []string, position int) record.Record {
	fields := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			fields[h] = row[i]
		} else {
			fields[h] = ""
		}
	}
	return record.Record{Fields: fields, Position: position}
}

// DecodeAll decodes rows read from FirstDataRow onwards.
func DecodeAll(headers []string, rows [][]string) []record.Record {
	out := make([]record.Record, len(rows))
	for i, row := range rows {
		out[i] = Decode(headers, row, i+FirstDataRow)
	}
	return out
}

// Encode lays fields out in header order. Absent fields encode as "" and
// fields outside headers are dropped.
func Encode(headers []string, fields map[string]string) []string {
	row := make([]string, len(headers))
	for i, h := range headers {
		row[i] = fields[h]
	}
	return row
}

// Codec encodes and decodes rows of registered sheets.
type Codec struct {
	registry *schema.Registry
}

// New creates a Codec bound to registry.
func New(registry *schema.Registry) *Codec {
	return &Codec{registry: registry}
}

// Decode decodes one row of sheet.
func (c *Codec) Decode(sheet schema.Sheet, row []string, position int) (record.Record, error) {
	s, err := c.registry.Lookup(sheet)
	if err != nil {
		return record.Record{}, err
	}
	return Decode(s.Headers(), row, position), nil
}

// DecodeAll decodes the data rows of sheet.
func (c *Codec) DecodeAll(sheet schema.Sheet, rows [][]string) ([]record.Record, error) {
	s, err := c.registry.Lookup(sheet)
	if err != nil {
		return nil, err
	}
	return DecodeAll(s.Headers(), rows), nil
}

// Encode encodes fields for sheet.
func (c *Codec) Encode(sheet schema.Sheet, fields map[string]string) ([]string, error) {
	s, err := c.registry.Lookup(sheet)
	if err != nil {
		return nil, err
	}
	return Encode(s.Headers(), fields), nil
}
