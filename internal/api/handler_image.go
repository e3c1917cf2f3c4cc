package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ryanbastic/go-sheetcms/internal/auth"
	"github.com/ryanbastic/go-sheetcms/internal/idgen"
	"github.com/ryanbastic/go-sheetcms/internal/imagehost"
	"github.com/ryanbastic/go-sheetcms/internal/metrics"
	"github.com/ryanbastic/go-sheetcms/internal/record"
	"github.com/ryanbastic/go-sheetcms/internal/repository"
	"github.com/ryanbastic/go-sheetcms/internal/schema"
)

// ImageHandler uploads image bytes to object storage and keeps their
// metadata in the images sheet.
type ImageHandler struct {
	repo   *repository.Repository
	host   *imagehost.Host
	logger *slog.Logger
	now    func() time.Time
}

func NewImageHandler(repo *repository.Repository, host *imagehost.Host, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{repo: repo, host: host, logger: logger, now: time.Now}
}

func registerImageRoutes(api huma.API, h *ImageHandler, g *guard) {
	tags := []string{"images"}

	huma.Register(api, huma.Operation{
		OperationID: "list-images",
		Method:      http.MethodGet,
		Path:        "/api/images",
		Summary:     "List uploaded images",
		Tags:        tags,
		Middlewares: g.require(auth.RoleViewer),
		Security:    bearer,
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "get-image",
		Method:      http.MethodGet,
		Path:        "/api/images/{id}",
		Summary:     "Get image metadata",
		Tags:        tags,
		Middlewares: g.require(auth.RoleViewer),
		Security:    bearer,
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "delete-image",
		Method:      http.MethodDelete,
		Path:        "/api/images/{id}",
		Summary:     "Delete an image and its stored object",
		Tags:        tags,
		Middlewares: g.require(auth.RoleEditor),
		Security:    bearer,
	}, h.Delete)
}

// Upload handles a multipart form with the file in the "image" field.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := int64(h.host.MaxSize())
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, imagehost.ErrTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image file")
		return
	}

	img, err := h.host.Upload(r.Context(), header.Filename, data)
	if err != nil {
		fail(w, h.logger, "upload image", err)
		return
	}

	rec, err := h.repo.Create(r.Context(), schema.Images, map[string]string{
		schema.FieldID: idgen.ForSheet(schema.Images),
		"filename":     img.Filename,
		"url":          img.URL,
		"storage_key":  img.Key,
		"size":         strconv.Itoa(img.Size),
		"width":        strconv.Itoa(img.Width),
		"height":       strconv.Itoa(img.Height),
		"format":       img.Format,
		"upload_date":  record.FormatTime(h.now()),
	})
	if err != nil {
		if derr := h.host.Delete(context.WithoutCancel(r.Context()), img.Key); derr != nil {
			h.logger.Error("failed to remove orphaned image", "key", img.Key, "error", derr)
		}
		fail(w, h.logger, "upload image", err)
		return
	}
	metrics.ImageUploaded(img.Format, img.Size)
	h.logger.Info("image uploaded", "id", rec.ID(), "key", img.Key, "size", img.Size)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *ImageHandler) List(ctx context.Context, in *ListParams) (*PageOutput, error) {
	s, err := h.repo.Registry().Lookup(schema.Images)
	if err != nil {
		return nil, failure(h.logger, "list images", err)
	}
	q, err := in.query(s, "upload_date", record.Desc)
	if err != nil {
		return nil, failure(h.logger, "list images", err)
	}
	q.TextFields = []string{"filename", "format"}
	page, err := h.repo.Query(ctx, schema.Images, q)
	if err != nil {
		return nil, failure(h.logger, "list images", err)
	}
	return pageOut(page), nil
}

func (h *ImageHandler) Get(ctx context.Context, in *RecordIDInput) (*RecordOutput, error) {
	rec, ok, err := h.repo.GetByID(ctx, schema.Images, in.ID)
	if err != nil {
		return nil, failure(h.logger, "get image", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("image not found")
	}
	return recordOut(rec), nil
}

// Delete removes the stored object first so a failure leaves the row in
// place for a retry.
func (h *ImageHandler) Delete(ctx context.Context, in *RecordIDInput) (*DeletedOutput, error) {
	rec, ok, err := h.repo.GetByID(ctx, schema.Images, in.ID)
	if err != nil {
		return nil, failure(h.logger, "delete image", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("image not found")
	}
	if key := rec.Get("storage_key"); key != "" {
		if err := h.host.Delete(ctx, key); err != nil {
			return nil, failure(h.logger, "delete image object", err)
		}
	}
	if _, err := h.repo.Remove(ctx, schema.Images, in.ID); err != nil {
		return nil, failure(h.logger, "delete image", err)
	}
	return deleted(), nil
}
