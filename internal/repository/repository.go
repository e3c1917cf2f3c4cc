package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ryanbastic/go-sheetcms/internal/cache"
	"github.com/ryanbastic/go-sheetcms/internal/metrics"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/rowcodec"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/ryanbastic/go-sheetcms/internal/storage"
)

var (
	// ErrInvalidQuery is returned for a page or limit below 1.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrConflict is returned when a record's row position keeps moving
	// between resolution and write.
	ErrConflict = errors.New("record moved during write")
	// ErrMissingID is returned when Create is given a record without an id.
	ErrMissingID = errors.New("record id is required")
)

// Action names a kind of mutation.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Change describes a committed mutation.
type Change struct {
	Sheet      schema.Sheet
	Action     Action
	Record     record.Record
	OccurredAt time.Time
}

// Observer is told about every committed mutation. It must not block.
type Observer interface {
	RecordChanged(ctx context.Context, c Change)
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the source of created_at/updated_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(r *Repository) { r.observers = append(r.observers, o) }
}

// Repository is the data access layer over a TabularStore. Reads are served
// from per-sheet cached snapshots; mutations are serialised per sheet and
// verify the target row before writing to it.
type Repository struct {
	store     storage.TabularStore
	registry  *schema.Registry
	cache     cache.SheetCache
	logger    *slog.Logger
	now       func() time.Time
	observers []Observer

	loads singleflight.Group

	mu     sync.Mutex
	writes map[schema.Sheet]*sync.Mutex
	gen    map[schema.Sheet]uint64
}

// New creates a Repository.
func New(store storage.TabularStore, registry *schema.Registry, c cache.SheetCache, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		registry: registry,
		cache:    c,
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		writes:   make(map[schema.Sheet]*sync.Mutex),
		gen:      make(map[schema.Sheet]uint64),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// AddObserver registers an observer after construction.
func (r *Repository) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// Registry returns the schema registry the repository validates against.
func (r *Repository) Registry() *schema.Registry {
	return r.registry
}

// --- snapshots ---

func (r *Repository) generation(sheet schema.Sheet) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[sheet]
}

// invalidate drops the cached snapshot and bumps the generation so that a
// load already in flight does not repopulate the cache with stale rows.
func (r *Repository) invalidate(sheet schema.Sheet) {
	r.mu.Lock()
	r.gen[sheet]++
	r.mu.Unlock()
	r.cache.Invalidate(sheet)
}

func (r *Repository) writeLock(sheet schema.Sheet) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.writes[sheet]
	if !ok {
		l = &sync.Mutex{}
		r.writes[sheet] = l
	}
	return l
}

func (r *Repository) snapshot(ctx context.Context, s schema.Schema) ([]record.Record, error) {
	if recs, ok := r.cache.Get(s.Sheet); ok {
		return recs, nil
	}
	return r.load(ctx, s)
}

// load reads the sheet from the store, bypassing the cache. Concurrent
// loads of the same sheet and generation share one remote read.
func (r *Repository) load(ctx context.Context, s schema.Schema) ([]record.Record, error) {
	gen := r.generation(s.Sheet)
	key := string(s.Sheet) + "#" + strconv.FormatUint(gen, 10)

	v, err, _ := r.loads.Do(key, func() (any, error) {
		headers := s.Headers()
		rows, err := r.store.ReadRange(ctx, storage.DataRange(string(s.Sheet), len(headers)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.Sheet, err)
		}
		recs := make([]record.Record, 0, len(rows))
		for _, rec := range rowcodec.DecodeAll(headers, rows) {
			if !blank(rec) {
				recs = append(recs, rec)
			}
		}
		if r.generation(s.Sheet) == gen {
			r.cache.Set(s.Sheet, recs)
		}
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]record.Record), nil
}

func blank(rec record.Record) bool {
	for _, v := range rec.Fields {
		if v != "" {
			return false
		}
	}
	return true
}

func (r *Repository) lookup(sheet schema.Sheet) (schema.Schema, error) {
	return r.registry.Lookup(sheet)
}

func cloneAll(recs []record.Record) []record.Record {
	out := make([]record.Record, len(recs))
	for i, rec := range recs {
		out[i] = rec.Clone()
	}
	return out
}

// --- reads ---

// ListAll returns every record of sheet in sheet order.
func (r *Repository) ListAll(ctx context.Context, sheet schema.Sheet) ([]record.Record, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return nil, err
	}
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return nil, err
	}
	return cloneAll(recs), nil
}

// Refresh drops the cached snapshot of sheet and reads it again.
func (r *Repository) Refresh(ctx context.Context, sheet schema.Sheet) error {
	s, err := r.lookup(sheet)
	if err != nil {
		return err
	}
	r.invalidate(sheet)
	_, err = r.load(ctx, s)
	return err
}

// GetByID returns the record with the given id. Absence is not an error.
func (r *Repository) GetByID(ctx context.Context, sheet schema.Sheet, id string) (record.Record, bool, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return record.Record{}, false, err
	}
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return record.Record{}, false, err
	}
	if rec, ok := findID(recs, id); ok {
		return rec.Clone(), true, nil
	}
	return record.Record{}, false, nil
}

// GetByField returns every record whose field equals value exactly.
func (r *Repository) GetByField(ctx context.Context, sheet schema.Sheet, field, value string) ([]record.Record, error) {
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
		if rec.Fields[field] == value {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// ExistsByField reports whether any record other than excludeID has field
// equal to value. An empty excludeID excludes nothing.
func (r *Repository) ExistsByField(ctx context.Context, sheet schema.Sheet, field, value, excludeID string) (bool, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return false, err
	}
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return false, err
	}
	for _, rec := range recs {
		if excludeID != "" && rec.ID() == excludeID {
			continue
		}
		if rec.Fields[field] == value {
			return true, nil
		}
	}
	return false, nil
}

func findID(recs []record.Record, id string) (record.Record, bool) {
	if id == "" {
		return record.Record{}, false
	}
	for _, rec := range recs {
		if rec.ID() == id {
			return rec, true
		}
	}
	return record.Record{}, false
}

// --- writes ---

// Create stamps created_at and updated_at, appends the record and returns it.
// Uniqueness is the caller's concern.
func (r *Repository) Create(ctx context.Context, sheet schema.Sheet, fields map[string]string) (record.Record, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return record.Record{}, err
	}
	if fields[schema.FieldID] == "" {
		return record.Record{}, ErrMissingID
	}

	rec := record.New(maps.Clone(fields))
	ts := record.FormatTime(r.now())
	rec.Fields[schema.FieldCreatedAt] = ts
	rec.Fields[schema.FieldUpdatedAt] = ts
	if err := s.Validate(rec.Fields); err != nil {
		return record.Record{}, err
	}

	lock := r.writeLock(sheet)
	lock.Lock()
	defer lock.Unlock()

	err = r.store.AppendRow(ctx, string(sheet), rowcodec.Encode(s.Headers(), rec.Fields))
	r.invalidate(sheet)
	if err != nil {
		return record.Record{}, fmt.Errorf("append to %s: %w", sheet, err)
	}

	rec = rowcodec.Decode(s.Headers(), rowcodec.Encode(s.Headers(), rec.Fields), 0)
	r.logger.Debug("record created", "sheet", sheet, "id", rec.ID())
	r.notify(ctx, sheet, ActionCreated, rec)
	return rec.Clone(), nil
}

// Update merges partial over the stored record, keeping id and created_at,
// and stamps a new updated_at. Caller values for those three fields are
// discarded before validation. Fields outside the schema are ignored.
func (r *Repository) Update(ctx context.Context, sheet schema.Sheet, id string, partial map[string]string) (record.Record, bool, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return record.Record{}, false, err
	}
	partial = maps.Clone(partial)
	delete(partial, schema.FieldID)
	delete(partial, schema.FieldCreatedAt)
	delete(partial, schema.FieldUpdatedAt)
	if err := s.Validate(partial); err != nil {
		return record.Record{}, false, err
	}

	lock := r.writeLock(sheet)
	lock.Lock()
	defer lock.Unlock()

	current, found, err := r.locate(ctx, s, id)
	if err != nil || !found {
		return record.Record{}, found, err
	}

	merged := maps.Clone(current.Fields)
	for k, v := range partial {
		if s.Has(k) {
			merged[k] = v
		}
	}
	merged[schema.FieldID] = current.ID()
	merged[schema.FieldCreatedAt] = current.Get(schema.FieldCreatedAt)
	merged[schema.FieldUpdatedAt] = record.FormatTime(r.now())

	headers := s.Headers()
	err = r.store.UpdateRange(ctx, storage.RowRange(string(sheet), current.Position, len(headers)),
		[][]string{rowcodec.Encode(headers, merged)})
	r.invalidate(sheet)
	if err != nil {
		return record.Record{}, false, fmt.Errorf("update %s row %d: %w", sheet, current.Position, err)
	}

	updated := record.Record{Fields: merged, Position: current.Position}
	r.logger.Debug("record updated", "sheet", sheet, "id", id, "row", current.Position)
	r.notify(ctx, sheet, ActionUpdated, updated)
	return updated.Clone(), true, nil
}

// Remove deletes the record's row; rows below it shift up.
func (r *Repository) Remove(ctx context.Context, sheet schema.Sheet, id string) (bool, error) {
	s, err := r.lookup(sheet)
	if err != nil {
		return false, err
	}

	lock := r.writeLock(sheet)
	lock.Lock()
	defer lock.Unlock()

	current, found, err := r.locate(ctx, s, id)
	if err != nil || !found {
		return found, err
	}

	// DeleteRows is zero-based: sheet row n is index n-1.
	err = r.store.DeleteRows(ctx, string(sheet), current.Position-1, current.Position)
	r.invalidate(sheet)
	if err != nil {
		return false, fmt.Errorf("delete %s row %d: %w", sheet, current.Position, err)
	}

	r.logger.Debug("record deleted", "sheet", sheet, "id", id, "row", current.Position)
	r.notify(ctx, sheet, ActionDeleted, current)
	return true, nil
}

// BulkUpdate is one entry of a BulkUpdate call.
type BulkUpdate struct {
	ID     string
	Fields map[string]string
}

// BulkUpdate applies updates in order and returns the records it updated.
// Ids that no longer exist are skipped. On error the records updated so far
// are returned with it.
func (r *Repository) BulkUpdate(ctx context.Context, sheet schema.Sheet, updates []BulkUpdate) ([]record.Record, error) {
	var out []record.Record
	for _, u := range updates {
		rec, found, err := r.Update(ctx, sheet, u.ID, u.Fields)
		if err != nil {
			return out, fmt.Errorf("bulk update %s: %w", u.ID, err)
		}
		if found {
			out = append(out, rec)
		}
	}
	return out, nil
}

// locate resolves id to its current row and proves it by re-reading that
// row from the store. The write lock for the sheet must be held.
func (r *Repository) locate(ctx context.Context, s schema.Schema, id string) (record.Record, bool, error) {
	recs, err := r.snapshot(ctx, s)
	if err != nil {
		return record.Record{}, false, err
	}
	rec, ok := findID(recs, id)
	if !ok {
		// the snapshot may predate a write by another process
		if recs, err = r.fresh(ctx, s); err != nil {
			return record.Record{}, false, err
		}
		if rec, ok = findID(recs, id); !ok {
			return record.Record{}, false, nil
		}
	}

	verified, ok, err := r.verify(ctx, s, rec.Position, id)
	if err != nil || ok {
		return verified, ok, err
	}

	r.logger.Warn("stale row position", "sheet", s.Sheet, "id", id, "row", rec.Position)
	if recs, err = r.fresh(ctx, s); err != nil {
		return record.Record{}, false, err
	}
	if rec, ok = findID(recs, id); !ok {
		metrics.StalePosition(string(s.Sheet), "resolved")
		return record.Record{}, false, nil
	}
	verified, ok, err = r.verify(ctx, s, rec.Position, id)
	if err != nil {
		return record.Record{}, false, err
	}
	if !ok {
		metrics.StalePosition(string(s.Sheet), "conflict")
		return record.Record{}, false, fmt.Errorf("%w: %s %s", ErrConflict, s.Sheet, id)
	}
	metrics.StalePosition(string(s.Sheet), "resolved")
	return verified, true, nil
}

func (r *Repository) fresh(ctx context.Context, s schema.Schema) ([]record.Record, error) {
	r.invalidate(s.Sheet)
	return r.load(ctx, s)
}

// verify reads the single row at position and checks that it holds id.
func (r *Repository) verify(ctx context.Context, s schema.Schema, position int, id string) (record.Record, bool, error) {
	headers := s.Headers()
	rows, err := r.store.ReadRange(ctx, storage.RowRange(string(s.Sheet), position, len(headers)))
	if err != nil {
		return record.Record{}, false, fmt.Errorf("verify %s row %d: %w", s.Sheet, position, err)
	}
	if len(rows) == 0 {
		return record.Record{}, false, nil
	}
	rec := rowcodec.Decode(headers, rows[0], position)
	return rec, rec.ID() == id, nil
}

func (r *Repository) notify(ctx context.Context, sheet schema.Sheet, action Action, rec record.Record) {
	if len(r.observers) == 0 {
		return
	}
	c := Change{Sheet: sheet, Action: action, Record: rec.Clone(), OccurredAt: r.now()}
	for _, o := range r.observers {
		o.RecordChanged(ctx, c)
	}
}
