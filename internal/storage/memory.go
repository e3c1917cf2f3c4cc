package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is an in-process TabularStore with spreadsheet row semantics.
// It backs tests and STORE_BACKEND=memory.
type MemoryStore struct {
	mu     sync.Mutex
	sheets map[string][][]string
	calls  map[string]int
	fail   error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets: make(map[string][][]string),
		calls:  make(map[string]int),
	}
}

// SetFailure makes every subsequent call return err until cleared with nil.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls returns how many times op ("read", "update", "append", "delete", "ping") ran.
func (m *MemoryStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Rows returns a copy of every row of sheet, header included.
func (m *MemoryStore) Rows(sheet string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.sheets[sheet]))
	for i, r := range m.sheets[sheet] {
		out[i] = slices.Clone(r)
	}
	return out
}

func (m *MemoryStore) begin(op string) error {
	m.calls[op]++
	return m.fail
}

func (m *MemoryStore) ReadRange(_ context.Context, r Range) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("read"); err != nil {
		return nil, err
	}

	rows := m.sheets[r.Sheet]
	end := len(rows)
	if r.EndRow > 0 {
		end = min(end, r.EndRow)
	}
	var out [][]string
	for i := r.StartRow - 1; i < end; i++ {
		if i < 0 {
			continue
		}
		row := rows[i]
		if r.Columns > 0 && len(row) > r.Columns {
			row = row[:r.Columns]
		}
		out = append(out, trimRight(row))
	}
	// Trailing empty rows are omitted, as the Sheets API does.
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *MemoryStore) UpdateRange(_ context.Context, r Range, values [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update"); err != nil {
		return err
	}
	if r.StartRow < 1 {
		return fmt.Errorf("update range: invalid start row %d", r.StartRow)
	}

	rows := m.sheets[r.Sheet]
	for i, v := range values {
		idx := r.StartRow - 1 + i
		for len(rows) <= idx {
			rows = append(rows, nil)
		}
		rows[idx] = slices.Clone(v)
	}
	m.sheets[r.Sheet] = rows
	return nil
}

func (m *MemoryStore) AppendRow(_ context.Context, sheet string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("append"); err != nil {
		return err
	}

	rows := m.sheets[sheet]
	last := len(rows)
	for last > 0 && len(trimRight(rows[last-1])) == 0 {
		last--
	}
	m.sheets[sheet] = append(rows[:last], slices.Clone(values))
	return nil
}

func (m *MemoryStore) DeleteRows(_ context.Context, sheet string, start, end int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("delete"); err != nil {
		return err
	}

	rows := m.sheets[sheet]
	if start < 0 || end <= start || end > len(rows) {
		return fmt.Errorf("delete rows: range [%d, %d) out of bounds for %d rows", start, end, len(rows))
	}
	m.sheets[sheet] = slices.Delete(rows, start, end)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begin("ping")
}

func trimRight(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return slices.Clone(row[:n])
}
