package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/idgen"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
	"github.com/ryanbastic/go-sheetcms/internal/slug"
)

// --- Huma Input/Output types ---

type ListRecordsInput struct {
	ListParams
	Status   string `query:"status" doc:"Exact status"`
	Category string `query:"category" doc:"Exact category"`
	Type     string `query:"type" doc:"Exact type"`
}

type RecordIDInput struct {
	ID string `path:"id" doc:"Record id"`
}

type RecordSlugInput struct {
	Slug string `path:"slug" doc:"Record slug"`
}

type DistinctInput struct {
	Field string `path:"field" doc:"Field name"`
}

type DistinctOutput struct {
	Body struct {
		Field  string   `json:"field"`
		Values []string `json:"values"`
	}
}

type CreateRecordInput struct {
	Body map[string]any
}

type UpdateRecordInput struct {
	ID   string `path:"id" doc:"Record id"`
	Body map[string]any
}

type ReorderItem struct {
	ID    string `json:"id" minLength:"1"`
	Order int    `json:"order" minimum:"0"`
}

type ReorderInput struct {
	Body struct {
		Items []ReorderItem `json:"items" minItems:"1"`
	}
}

type UpdatedOutput struct {
	Body struct {
		Updated int `json:"updated"`
		Total   int `json:"total"`
	}
}

type SetStatusInput struct {
	ID   string `path:"id" doc:"Record id"`
	Body struct {
		Status string `json:"status" minLength:"1"`
	}
}

type BulkStatusInput struct {
	Body struct {
		IDs    []string `json:"ids" minItems:"1"`
		Status string   `json:"status" minLength:"1"`
	}
}

// --- Handler ---

// ResourceHandler serves CRUD for the content sheets.
type ResourceHandler struct {
	repo   *repository.Repository
	guard  *guard
	logger *slog.Logger
	now    func() time.Time
}

func NewResourceHandler(repo *repository.Repository, g *guard, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{repo: repo, guard: g, logger: logger, now: time.Now}
}

func registerResourceRoutes(api huma.API, h *ResourceHandler, res resource) {
	base := "/api/" + res.path
	read := h.guard.require(auth.RoleViewer)
	if res.publicStatus != "" {
		read = h.guard.optional()
	}
	create := h.guard.require(auth.RoleEditor)
	if res.publicCreate {
		create = h.guard.optional()
	}
	write := h.guard.require(auth.RoleEditor)
	tags := []string{res.tag}

	huma.Register(api, huma.Operation{
		OperationID: "list-" + res.path,
		Method:      http.MethodGet,
		Path:        base,
		Summary:     "List " + res.path,
		Tags:        tags,
		Middlewares: read,
	}, func(ctx context.Context, in *ListRecordsInput) (*PageOutput, error) {
		return h.list(ctx, res, in)
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-" + res.path,
		Method:      http.MethodGet,
		Path:        base + "/{id}",
		Summary:     "Get one of " + res.path + " by id",
		Tags:        tags,
		Middlewares: read,
	}, func(ctx context.Context, in *RecordIDInput) (*RecordOutput, error) {
		return h.get(ctx, res, in.ID)
	})

	if res.slugFrom != "" {
		huma.Register(api, huma.Operation{
			OperationID: "get-" + res.path + "-by-slug",
			Method:      http.MethodGet,
			Path:        base + "/slug/{slug}",
			Summary:     "Get one of " + res.path + " by slug",
			Tags:        tags,
			Middlewares: read,
		}, func(ctx context.Context, in *RecordSlugInput) (*RecordOutput, error) {
			return h.bySlug(ctx, res, in.Slug)
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "distinct-" + res.path,
		Method:      http.MethodGet,
		Path:        base + "/distinct/{field}",
		Summary:     "Distinct values of a field",
		Tags:        tags,
		Middlewares: h.guard.require(auth.RoleViewer),
		Security:    bearer,
	}, func(ctx context.Context, in *DistinctInput) (*DistinctOutput, error) {
		return h.distinct(ctx, res, in.Field)
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-" + res.path,
		Method:        http.MethodPost,
		Path:          base,
		Summary:       "Create one of " + res.path,
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
		Middlewares:   create,
	}, func(ctx context.Context, in *CreateRecordInput) (*RecordOutput, error) {
		return h.create(ctx, res, in.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-" + res.path,
		Method:      http.MethodPut,
		Path:        base + "/{id}",
		Summary:     "Update one of " + res.path,
		Tags:        tags,
		Middlewares: write,
		Security:    bearer,
	}, func(ctx context.Context, in *UpdateRecordInput) (*RecordOutput, error) {
		return h.update(ctx, res, in.ID, in.Body)
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-" + res.path,
		Method:      http.MethodDelete,
		Path:        base + "/{id}",
		Summary:     "Delete one of " + res.path,
		Tags:        tags,
		Middlewares: write,
		Security:    bearer,
	}, func(ctx context.Context, in *RecordIDInput) (*DeletedOutput, error) {
		return h.delete(ctx, res, in.ID)
	})

	if res.reorderable {
		huma.Register(api, huma.Operation{
			OperationID: "reorder-" + res.path,
			Method:      http.MethodPut,
			Path:        base + "/reorder",
			Summary:     "Set the display order of " + res.path,
			Tags:        tags,
			Middlewares: write,
			Security:    bearer,
		}, func(ctx context.Context, in *ReorderInput) (*UpdatedOutput, error) {
			return h.reorder(ctx, res, in.Body.Items)
		})
	}

	if res.statusRoutes {
		huma.Register(api, huma.Operation{
			OperationID: "set-" + res.path + "-status",
			Method:      http.MethodPut,
			Path:        base + "/{id}/status",
			Summary:     "Change the status of one of " + res.path,
			Tags:        tags,
			Middlewares: write,
			Security:    bearer,
		}, func(ctx context.Context, in *SetStatusInput) (*RecordOutput, error) {
			return h.update(ctx, res, in.ID, map[string]any{"status": in.Body.Status})
		})

		huma.Register(api, huma.Operation{
			OperationID: "bulk-" + res.path + "-status",
			Method:      http.MethodPut,
			Path:        base + "/bulk-status",
			Summary:     "Change the status of several " + res.path,
			Tags:        tags,
			Middlewares: write,
			Security:    bearer,
		}, func(ctx context.Context, in *BulkStatusInput) (*UpdatedOutput, error) {
			return h.bulkStatus(ctx, res, in.Body.IDs, in.Body.Status)
		})
	}
}

// privileged reports whether the caller sees records regardless of status.
func privileged(ctx context.Context) bool {
	_, ok := caller(ctx)
	return ok
}

func visible(ctx context.Context, res resource, rec record.Record) bool {
	return res.publicStatus == "" || privileged(ctx) || rec.Get("status") == res.publicStatus
}

func (h *ResourceHandler) schema(res resource) (schema.Schema, error) {
	return h.repo.Registry().Lookup(res.sheet)
}

func (h *ResourceHandler) list(ctx context.Context, res resource, in *ListRecordsInput) (*PageOutput, error) {
	op := "list " + res.path
	s, err := h.schema(res)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	q, err := in.query(s, res.sortField, res.sortOrder)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	q.TextFields = res.textFields
	q.Exact = map[string]string{}
	for field, v := range map[string]string{"status": in.Status, "category": in.Category, "type": in.Type} {
		if v == "" {
			continue
		}
		if !s.Has(field) {
			return nil, failure(h.logger, op, fmt.Errorf("%w: %s has no %s", errBadRequest, res.path, field))
		}
		q.Exact[field] = v
	}
	if res.publicStatus != "" && !privileged(ctx) {
		q.Exact["status"] = res.publicStatus
	}

	page, err := h.repo.Query(ctx, res.sheet, q)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	return pageOut(page), nil
}

func (h *ResourceHandler) get(ctx context.Context, res resource, id string) (*RecordOutput, error) {
	op := "get " + res.path
	rec, ok, err := h.repo.GetByID(ctx, res.sheet, id)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	if !ok || !visible(ctx, res, rec) {
		return nil, huma.Error404NotFound(res.path + " record not found")
	}
	if res.markRead && privileged(ctx) && rec.Get("status") == "unread" {
		updated, found, err := h.repo.Update(ctx, res.sheet, id, map[string]string{"status": "read"})
		switch {
		case err != nil:
			h.logger.Warn("failed to mark record read", "sheet", res.sheet, "id", id, "error", err)
		case found:
			rec = updated
		}
	}
	return recordOut(rec), nil
}

func (h *ResourceHandler) bySlug(ctx context.Context, res resource, value string) (*RecordOutput, error) {
	matches, err := h.repo.GetByField(ctx, res.sheet, "slug", value)
	if err != nil {
		return nil, failure(h.logger, "get "+res.path+" by slug", err)
	}
	for _, rec := range matches {
		if visible(ctx, res, rec) {
			return recordOut(rec), nil
		}
	}
	return nil, huma.Error404NotFound(res.path + " record not found")
}

func (h *ResourceHandler) distinct(ctx context.Context, res resource, field string) (*DistinctOutput, error) {
	op := "distinct " + res.path
	s, err := h.schema(res)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	if !s.Has(field) {
		return nil, huma.Error400BadRequest(fmt.Sprintf("unknown field %q", field))
	}
	values, err := h.repo.Distinct(ctx, res.sheet, field)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	out := &DistinctOutput{}
	out.Body.Field = field
	out.Body.Values = values
	return out, nil
}

// prepare converts and validates a write body. full is true for creates.
func (h *ResourceHandler) prepare(res resource, body map[string]any, full bool) (map[string]string, error) {
	s, err := h.schema(res)
	if err != nil {
		return nil, err
	}
	fields, err := toFields(body)
	if err != nil {
		return nil, err
	}
	if err := writable(s, fields); err != nil {
		return nil, err
	}
	if full {
		for k, v := range res.defaults {
			if fields[k] == "" {
				fields[k] = v
			}
		}
	}
	for _, name := range res.required {
		v, present := fields[name]
		if (full || present) && v == "" {
			return nil, fmt.Errorf("%w: %s is required", schema.ErrInvalidField, name)
		}
	}
	for _, name := range res.emailFields {
		if v, present := fields[name]; present {
			if _, err := mail.ParseAddress(v); err != nil {
				return nil, fmt.Errorf("%w: %s is not a valid email address", schema.ErrInvalidField, name)
			}
		}
	}
	if st, present := fields["status"]; present && !res.allowsStatus(st) {
		return nil, fmt.Errorf("%w: status %q is not allowed", schema.ErrInvalidField, st)
	}
	return fields, nil
}

func (h *ResourceHandler) uniqueSlug(ctx context.Context, res resource, text, excludeID string) (string, error) {
	s, err := slug.Unique(ctx, text, func(ctx context.Context, candidate string) (bool, error) {
		return h.repo.ExistsByField(ctx, res.sheet, "slug", candidate, excludeID)
	})
	if errors.Is(err, slug.ErrEmpty) {
		return "", fmt.Errorf("%w: %s does not produce a slug", schema.ErrInvalidField, res.slugFrom)
	}
	return s, err
}

func (h *ResourceHandler) create(ctx context.Context, res resource, body map[string]any) (*RecordOutput, error) {
	op := "create " + res.path
	id, authed := caller(ctx)
	if res.publicCreate && !authed {
		delete(body, "status")
	}
	fields, err := h.prepare(res, body, true)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	if res.dateField != "" && fields[res.dateField] == "" {
		fields[res.dateField] = record.FormatTime(h.now())
	}
	if res.sheet == schema.BlogPosts && fields["author"] == "" && authed {
		fields["author"] = id.Username
	}
	if res.slugFrom != "" {
		text := fields["slug"]
		if text == "" {
			text = fields[res.slugFrom]
		}
		if fields["slug"], err = h.uniqueSlug(ctx, res, text, ""); err != nil {
			return nil, failure(h.logger, op, err)
		}
	}
	fields[schema.FieldID] = idgen.ForSheet(res.sheet)

	rec, err := h.repo.Create(ctx, res.sheet, fields)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	return recordOut(rec), nil
}

func (h *ResourceHandler) update(ctx context.Context, res resource, id string, body map[string]any) (*RecordOutput, error) {
	op := "update " + res.path
	fields, err := h.prepare(res, body, false)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	if len(fields) == 0 {
		return nil, huma.Error400BadRequest("no fields to update")
	}

	if res.slugFrom != "" {
		existing, ok, err := h.repo.GetByID(ctx, res.sheet, id)
		if err != nil {
			return nil, failure(h.logger, op, err)
		}
		if !ok {
			return nil, huma.Error404NotFound(res.path + " record not found")
		}
		text := fields["slug"]
		if src, changed := fields[res.slugFrom]; text == "" && changed && src != existing.Get(res.slugFrom) {
			text = src
		}
		if text != "" {
			if fields["slug"], err = h.uniqueSlug(ctx, res, text, id); err != nil {
				return nil, failure(h.logger, op, err)
			}
		} else {
			delete(fields, "slug")
		}
	}

	rec, ok, err := h.repo.Update(ctx, res.sheet, id, fields)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	if !ok {
		return nil, huma.Error404NotFound(res.path + " record not found")
	}
	return recordOut(rec), nil
}

func (h *ResourceHandler) delete(ctx context.Context, res resource, id string) (*DeletedOutput, error) {
	ok, err := h.repo.Remove(ctx, res.sheet, id)
	if err != nil {
		return nil, failure(h.logger, "delete "+res.path, err)
	}
	if !ok {
		return nil, huma.Error404NotFound(res.path + " record not found")
	}
	return deleted(), nil
}

func (h *ResourceHandler) reorder(ctx context.Context, res resource, items []ReorderItem) (*UpdatedOutput, error) {
	updates := make([]repository.BulkUpdate, len(items))
	for i, it := range items {
		updates[i] = repository.BulkUpdate{ID: it.ID, Fields: map[string]string{"order": strconv.Itoa(it.Order)}}
	}
	return h.bulk(ctx, res, "reorder "+res.path, updates)
}

func (h *ResourceHandler) bulkStatus(ctx context.Context, res resource, ids []string, status string) (*UpdatedOutput, error) {
	if !res.allowsStatus(status) {
		return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("status %q is not allowed", status))
	}
	updates := make([]repository.BulkUpdate, len(ids))
	for i, id := range ids {
		updates[i] = repository.BulkUpdate{ID: id, Fields: map[string]string{"status": status}}
	}
	return h.bulk(ctx, res, "bulk status "+res.path, updates)
}

func (h *ResourceHandler) bulk(ctx context.Context, res resource, op string, updates []repository.BulkUpdate) (*UpdatedOutput, error) {
	done, err := h.repo.BulkUpdate(ctx, res.sheet, updates)
	if err != nil {
		return nil, failure(h.logger, op, err)
	}
	out := &UpdatedOutput{}
	out.Body.Updated = len(done)
	out.Body.Total = len(updates)
	return out, nil
}
