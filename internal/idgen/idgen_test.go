package idgen

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

func TestNew_Format(t *testing.T) {
	id := New("pst")
	require.True(t, strings.HasPrefix(id, "pst_"), id)
	assert.Len(t, id, len("pst_")+26)
	assert.Equal(t, strings.ToLower(id), id)

	bare := New("")
	assert.Len(t, bare, 26)
	assert.NotContains(t, bare, "_")
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "pst", Prefix(schema.BlogPosts))
	assert.Equal(t, "usr", Prefix(schema.AdminUsers))
	assert.Equal(t, "fund", Prefix(schema.Funds))
	assert.Equal(t, DefaultPrefix, Prefix(schema.Sheet("unknown")))
	assert.True(t, strings.HasPrefix(ForSheet(schema.Products), "prd_"))
}

func TestGenerator_MonotonicWithinMillisecond(t *testing.T) {
	g := NewGenerator()
	fixed := time.UnixMilli(1700000000000)
	g.now = func() time.Time { return fixed }

	prev := g.New("x")
	for range 100 {
		next := g.New("x")
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestGenerator_ConcurrentUnique(t *testing.T) {
	g := NewGenerator()
	const workers, each = 8, 200

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*each)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				id := g.New("itm")
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each)
}

func TestTime(t *testing.T) {
	g := NewGenerator()
	at := time.UnixMilli(1700000000123)
	g.now = func() time.Time { return at }

	got, ok := Time(g.New("con"))
	require.True(t, ok)
	assert.True(t, got.Equal(at), "got %v", got)

	_, ok = Time("con_not-a-ulid")
	assert.False(t, ok)
}
