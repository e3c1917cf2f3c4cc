package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsStore implements TabularStore against the Google Sheets v4 API.
type SheetsStore struct {
	service       *sheets.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheetsStore creates a store for spreadsheetID authenticated with a
// service-account credentials file.
func NewSheetsStore(ctx context.Context, spreadsheetID, credentialsFile string) (*SheetsStore, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return NewSheetsStoreWithService(service, spreadsheetID), nil
}

// NewSheetsStoreWithService wraps an existing service, such as one pointed
// at a local test server.
func NewSheetsStoreWithService(service *sheets.Service, spreadsheetID string) *SheetsStore {
	return &SheetsStore{
		service:       service,
		spreadsheetID: spreadsheetID,
		sheetIDs:      make(map[string]int64),
	}
}

func (s *SheetsStore) ReadRange(ctx context.Context, r Range) ([][]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, r.A1()).Context(ctx).Do()
	if err != nil {
		return nil, classify("read range", err)
	}
	return toStrings(resp.Values), nil
}

func (s *SheetsStore) UpdateRange(ctx context.Context, r Range, values [][]string) error {
	vr := &sheets.ValueRange{Values: toInterfaces(values)}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, r.A1(), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return classify("update range", err)
	}
	return nil
}

func (s *SheetsStore) AppendRow(ctx context.Context, sheet string, values []string) error {
	vr := &sheets.ValueRange{Values: toInterfaces([][]string{values})}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, Range{Sheet: sheet, StartRow: 1, Columns: len(values)}.A1(), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify("append row", err)
	}
	return nil
}

func (s *SheetsStore) DeleteRows(ctx context.Context, sheet string, start, end int) error {
	sheetID, err := s.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(start),
					EndIndex:   int64(end),
				},
			},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return classify("delete rows", err)
	}
	return nil
}

func (s *SheetsStore) Ping(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return classify("ping", err)
	}
	return nil
}

// sheetID resolves a tab title to its numeric id, memoised per store.
func (s *SheetsStore) sheetID(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[title]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := s.service.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, classify("get spreadsheet", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok = s.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in spreadsheet", title)
	}
	return id, nil
}

// classify wraps transport, auth, quota, server and timeout failures in
// ErrUnavailable. Client errors such as a bad range are returned as-is.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized,
			gerr.Code == http.StatusForbidden,
			gerr.Code == http.StatusTooManyRequests,
			gerr.Code >= 500:
			return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		r := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				r[j] = fmt.Sprint(v)
			}
		}
		out[i] = r
	}
	return out
}

func toInterfaces(values [][]string) [][]interface{} {
	out := make([][]interface{}, len(values))
	for i, row := range values {
		r := make([]interface{}, len(row))
		for j, v := range row {
			r[j] = v
		}
		out[i] = r
	}
	return out
}
