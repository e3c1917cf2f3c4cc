package cache

import (
	"testing"
	"time"

	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(ids ...string) []record.Record {
	out := make([]record.Record, len(ids))
	for i, id := range ids {
		out[i] = record.Record{Fields: map[string]string{"id": id}, Position: i + 2}
	}
	return out
}

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache(time.Minute)

	_, ok := c.Get(schema.FAQs)
	assert.False(t, ok)

	c.Set(schema.FAQs, snapshot("faq_1", "faq_2"))
	got, ok := c.Get(schema.FAQs)
	require.True(t, ok)
	assert.Len(t, got, 2)
	assert.Equal(t, "faq_2", got[1].ID())

	_, ok = c.Get(schema.BlogPosts)
	assert.False(t, ok, "sheets are cached independently")
}

func TestTTLCache_SetReplacesWholeSnapshot(t *testing.T) {
	c := NewTTLCache(time.Minute)
	c.Set(schema.FAQs, snapshot("a", "b", "c"))
	c.Set(schema.FAQs, snapshot("x"))

	got, ok := c.Get(schema.FAQs)
	require.True(t, ok)
	assert.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ID())
}

func TestTTLCache_Invalidate(t *testing.T) {
	c := NewTTLCache(time.Minute)
	c.Set(schema.FAQs, snapshot("a"))
	c.Set(schema.Products, snapshot("b"))

	c.Invalidate(schema.FAQs)
	_, ok := c.Get(schema.FAQs)
	assert.False(t, ok)
	_, ok = c.Get(schema.Products)
	assert.True(t, ok)

	c.InvalidateAll()
	_, ok = c.Get(schema.Products)
	assert.False(t, ok)
}

func TestTTLCache_Expires(t *testing.T) {
	c := NewTTLCache(20 * time.Millisecond)
	c.Set(schema.FAQs, snapshot("a"))

	// hits do not extend the lifetime
	for range 3 {
		_, ok := c.Get(schema.FAQs)
		require.True(t, ok)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(schema.FAQs)
	assert.False(t, ok)
}

func TestTTLCache_Stats(t *testing.T) {
	c := NewTTLCache(time.Minute)
	c.Get(schema.FAQs)
	c.Set(schema.FAQs, snapshot("a"))
	c.Get(schema.FAQs)

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(1), s.Insertions)
	assert.Equal(t, 1, s.Entries)
}

func TestNewTTLCache_DefaultTTL(t *testing.T) {
	c := NewTTLCache(0)
	c.Set(schema.FAQs, snapshot("a"))
	_, ok := c.Get(schema.FAQs)
	assert.True(t, ok)
}
