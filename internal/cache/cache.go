package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// DefaultTTL is how long a sheet snapshot is served before a re-read.
const DefaultTTL = 5 * time.Minute

// SheetCache holds one decoded snapshot per sheet. Snapshots are replaced
// whole, never patched, and must be treated as read-only by callers.
type SheetCache interface {
	Get(sheet schema.Sheet) ([]record.Record, bool)
	Set(sheet schema.Sheet, records []record.Record)
	Invalidate(sheet schema.Sheet)
	InvalidateAll()
}

// Stats are cumulative cache counters.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Insertions uint64
	Evictions  uint64
	Entries    int
}

// TTLCache is a SheetCache backed by ttlcache. Entry age is measured from
// the time the snapshot was stored; hits do not extend it.
type TTLCache struct {
	c *ttlcache.Cache[schema.Sheet, []record.Record]
}

var _ SheetCache = (*TTLCache)(nil)

// NewTTLCache creates a cache whose snapshots expire after ttl.
func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TTLCache{
		c: ttlcache.New[schema.Sheet, []record.Record](
			ttlcache.WithTTL[schema.Sheet, []record.Record](ttl),
			ttlcache.WithDisableTouchOnHit[schema.Sheet, []record.Record](),
		),
	}
}

// Start runs the expired-entry janitor until Stop is called. Expiry is
// enforced on Get regardless; the janitor only frees memory.
func (t *TTLCache) Start() { go t.c.Start() }

// Stop halts the janitor.
func (t *TTLCache) Stop() { t.c.Stop() }

func (t *TTLCache) Get(sheet schema.Sheet) ([]record.Record, bool) {
	item := t.c.Get(sheet)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (t *TTLCache) Set(sheet schema.Sheet, records []record.Record) {
	t.c.Set(sheet, records, ttlcache.DefaultTTL)
}

func (t *TTLCache) Invalidate(sheet schema.Sheet) {
	t.c.Delete(sheet)
}

func (t *TTLCache) InvalidateAll() {
	t.c.DeleteAll()
}

// Stats returns the current counters.
func (t *TTLCache) Stats() Stats {
	m := t.c.Metrics()
	return Stats{
		Hits:       m.Hits,
		Misses:     m.Misses,
		Insertions: m.Insertions,
		Evictions:  m.Evictions,
		Entries:    t.c.Len(),
	}
}
