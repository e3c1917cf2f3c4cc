package storage

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// InitializeSheets writes the header row of every registered sheet whose
// row 1 is empty. Sheets that already have headers are left untouched, even
// if they differ. It returns the sheets it initialised.
func InitializeSheets(ctx context.Context, store TabularStore, registry *schema.Registry) ([]schema.Sheet, error) {
	var (
		initialised []schema.Sheet
		errs        *multierror.Error
	)
	for _, sheet := range registry.Sheets() {
		s, err := registry.Lookup(sheet)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		headers := s.Headers()

		rows, err := store.ReadRange(ctx, RowRange(string(sheet), 1, len(headers)))
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("read headers of %s: %w", sheet, err))
			continue
		}
		if len(rows) > 0 && len(rows[0]) > 0 {
			continue
		}

		if err := store.UpdateRange(ctx, RowRange(string(sheet), 1, len(headers)), [][]string{headers}); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write headers of %s: %w", sheet, err))
			continue
		}
		initialised = append(initialised, sheet)
	}
	return initialised, errs.ErrorOrNil()
}

// HeaderDrift returns the registered headers that are absent from, or out of
// position in, the sheet's actual header row.
func HeaderDrift(ctx context.Context, store TabularStore, s schema.Schema) ([]string, error) {
	headers := s.Headers()
	rows, err := store.ReadRange(ctx, RowRange(string(s.Sheet), 1, len(headers)))
	if err != nil {
		return nil, err
	}
	var actual []string
	if len(rows) > 0 {
		actual = rows[0]
	}
	var missing []string
	for i, h := range headers {
		if i >= len(actual) || actual[i] != h {
			missing = append(missing, h)
		}
	}
	return missing, nil
}
