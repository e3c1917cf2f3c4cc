// Package idgen makes record ids of the form <prefix>_<ulid>.
package idgen

import (
	crand "crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// DefaultPrefix is used for sheets without a registered prefix.
const DefaultPrefix = "itm"

var prefixes = map[schema.Sheet]string{
	schema.WebsiteContent:  "cnt",
	schema.BlogPosts:       "pst",
	schema.Products:        "prd",
	schema.Categories:      "cat",
	schema.Settings:        "set",
	schema.MenuItems:       "mnu",
	schema.AdminUsers:      "usr",
	schema.Testimonials:    "tst",
	schema.FAQs:            "faq",
	schema.Images:          "img",
	schema.ContactMessages: "con",
	schema.Funds:           "fund",
	schema.Webhooks:        "whk",
}

// Prefix returns the id prefix for sheet.
func Prefix(sheet schema.Sheet) string {
	if p, ok := prefixes[sheet]; ok {
		return p
	}
	return DefaultPrefix
}

// Generator produces ids that sort by creation time. Ids made within the
// same millisecond are monotonic. It is safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(crand.Reader, 0),
		now:     time.Now,
	}
}

// New returns prefix_<lowercase ulid>, or the bare ulid when prefix is empty.
func (g *Generator) New(prefix string) string {
	g.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
	g.mu.Unlock()

	s := strings.ToLower(id.String())
	if prefix == "" {
		return s
	}
	return prefix + "_" + s
}

// ForSheet returns a new id using the sheet's prefix.
func (g *Generator) ForSheet(sheet schema.Sheet) string {
	return g.New(Prefix(sheet))
}

var std = NewGenerator()

// New returns an id from the package generator.
func New(prefix string) string {
	return std.New(prefix)
}

// ForSheet returns an id for sheet from the package generator.
func ForSheet(sheet schema.Sheet) string {
	return std.ForSheet(sheet)
}

// Time extracts the creation time embedded in an id made by this package.
func Time(id string) (time.Time, bool) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	u, err := ulid.ParseStrict(strings.ToUpper(id))
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(u.Time()), true
}
