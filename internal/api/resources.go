package api

import (
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// resource describes one sheet exposed as a REST collection.
type resource struct {
	path  string
	sheet schema.Sheet
	tag   string

	// publicStatus, when set, lets anonymous callers read records whose
	// status equals it. Otherwise reads need a token.
	publicStatus string
	// publicCreate lets anonymous callers create records. Their status is
	// always the default.
	publicCreate bool
	// markRead moves an unread record to read when an admin fetches it.
	markRead bool
	// statusRoutes adds PUT /{id}/status and PUT /bulk-status.
	statusRoutes bool
	reorderable  bool

	slugFrom    string
	dateField   string
	required    []string
	emailFields []string
	statuses    []string
	defaults    map[string]string
	textFields  []string
	sortField   string
	sortOrder   record.SortDirection
}

func (r resource) allowsStatus(s string) bool {
	if len(r.statuses) == 0 {
		return true
	}
	for _, v := range r.statuses {
		if v == s {
			return true
		}
	}
	return false
}

var activeInactive = []string{"active", "inactive"}

func resources() []resource {
	return []resource{
		{
			path: "content", sheet: schema.WebsiteContent, tag: "content",
			required:   []string{"page", "section"},
			defaults:   map[string]string{"order": "0"},
			textFields: []string{"page", "section", "content"},
			sortField:  "order", sortOrder: record.Asc,
			reorderable: true,
		},
		{
			path: "blog", sheet: schema.BlogPosts, tag: "blog",
			publicStatus: "published",
			slugFrom:     "title",
			dateField:    "date",
			required:     []string{"title", "content"},
			statuses:     []string{"draft", "published", "archived"},
			defaults:     map[string]string{"status": "draft", "views": "0"},
			textFields:   []string{"title", "excerpt", "content", "category", "author"},
			sortField:    "date", sortOrder: record.Desc,
		},
		{
			path: "products", sheet: schema.Products, tag: "products",
			publicStatus: "active",
			slugFrom:     "name",
			required:     []string{"name", "price"},
			statuses:     []string{"active", "inactive", "out_of_stock"},
			defaults:     map[string]string{"status": "active", "stock": "0"},
			textFields:   []string{"name", "description", "category", "sku"},
			sortField:    schema.FieldCreatedAt, sortOrder: record.Desc,
		},
		{
			path: "categories", sheet: schema.Categories, tag: "categories",
			publicStatus: "active",
			slugFrom:     "name",
			required:     []string{"name", "type"},
			statuses:     activeInactive,
			defaults:     map[string]string{"status": "active", "order": "0"},
			textFields:   []string{"name", "description"},
			sortField:    "order", sortOrder: record.Asc,
			reorderable: true,
		},
		{
			path: "menu", sheet: schema.MenuItems, tag: "menu",
			publicStatus: "active",
			required:     []string{"label", "url"},
			statuses:     activeInactive,
			defaults:     map[string]string{"status": "active", "order": "0", "target": "_self"},
			textFields:   []string{"label", "url"},
			sortField:    "order", sortOrder: record.Asc,
			reorderable: true,
		},
		{
			path: "testimonials", sheet: schema.Testimonials, tag: "testimonials",
			publicStatus: "active",
			required:     []string{"name", "review"},
			statuses:     activeInactive,
			defaults:     map[string]string{"status": "active", "rating": "5", "order": "0"},
			textFields:   []string{"name", "designation", "review"},
			sortField:    "order", sortOrder: record.Asc,
			reorderable: true,
		},
		{
			path: "faqs", sheet: schema.FAQs, tag: "faqs",
			publicStatus: "active",
			required:     []string{"question", "answer"},
			statuses:     activeInactive,
			defaults:     map[string]string{"status": "active", "order": "0"},
			textFields:   []string{"question", "answer", "category"},
			sortField:    "order", sortOrder: record.Asc,
			reorderable: true,
		},
		{
			path: "contact", sheet: schema.ContactMessages, tag: "contact",
			publicCreate: true,
			markRead:     true,
			statusRoutes: true,
			required:     []string{"name", "email", "message"},
			emailFields:  []string{"email"},
			statuses:     []string{"unread", "read", "replied", "archived"},
			defaults:     map[string]string{"status": "unread", "subject": "No Subject"},
			textFields:   []string{"name", "email", "subject", "message"},
			sortField:    schema.FieldCreatedAt, sortOrder: record.Desc,
		},
		{
			path: "funds", sheet: schema.Funds, tag: "funds",
			publicCreate: true,
			statusRoutes: true,
			required:     []string{"name", "email", "amount"},
			emailFields:  []string{"email"},
			statuses:     []string{"pending", "approved", "rejected"},
			defaults:     map[string]string{"status": "pending"},
			textFields:   []string{"name", "email", "message"},
			sortField:    schema.FieldCreatedAt, sortOrder: record.Desc,
		},
	}
}
