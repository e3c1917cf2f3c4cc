package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

type BlogCategoryInput struct {
	Category string `path:"category" doc:"Category name"`
	ListParams
}

type ViewOutput struct {
	Body struct {
		ID    string `json:"id"`
		Views int    `json:"views"`
	}
}

func registerBlogRoutes(api huma.API, h *ResourceHandler, blog resource) {
	huma.Register(api, huma.Operation{
		OperationID: "list-blog-by-category",
		Method:      http.MethodGet,
		Path:        "/api/blog/category/{category}",
		Summary:     "List published posts in a category",
		Tags:        []string{blog.tag},
		Middlewares: h.guard.optional(),
	}, func(ctx context.Context, in *BlogCategoryInput) (*PageOutput, error) {
		return h.list(ctx, blog, &ListRecordsInput{ListParams: in.ListParams, Category: in.Category})
	})

	huma.Register(api, huma.Operation{
		OperationID: "count-blog-view",
		Method:      http.MethodPost,
		Path:        "/api/blog/{id}/view",
		Summary:     "Count a view of a published post",
		Tags:        []string{blog.tag},
	}, h.countView)
}

// countView increments a published post's view counter. Concurrent views
// may collapse into one increment.
func (h *ResourceHandler) countView(ctx context.Context, in *RecordIDInput) (*ViewOutput, error) {
	rec, ok, err := h.repo.GetByID(ctx, schema.BlogPosts, in.ID)
	if err != nil {
		return nil, failure(h.logger, "count blog view", err)
	}
	if !ok || rec.Get("status") != "published" {
		return nil, huma.Error404NotFound("blog record not found")
	}
	views := rec.Int("views", 0) + 1
	if _, ok, err = h.repo.Update(ctx, schema.BlogPosts, in.ID, map[string]string{"views": strconv.Itoa(views)}); err != nil {
		return nil, failure(h.logger, "count blog view", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("blog record not found")
	}
	out := &ViewOutput{}
	out.Body.ID = in.ID
	out.Body.Views = views
	return out, nil
}
