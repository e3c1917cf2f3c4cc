// Package imagehost stores uploaded images in an object bucket and reports
// the metadata recorded in the images sheet.
package imagehost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/ryanbastic/go-sheetcms/internal/idgen"
)

// DefaultMaxSize caps a single upload at 5 MiB.
const DefaultMaxSize = 5 << 20

var (
	ErrTooLarge          = errors.New("image exceeds maximum size")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrObjectNotFound    = errors.New("object not found")
)

// ObjectStore is where image bytes live.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Image describes a stored upload.
type Image struct {
	Key      string
	URL      string
	Filename string
	Size     int
	Width    int
	Height   int
	Format   string
}

// Host validates uploads and writes them to an ObjectStore.
type Host struct {
	objects ObjectStore
	maxSize int
	prefix  string
}

func New(objects ObjectStore, maxSize int) *Host {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Host{objects: objects, maxSize: maxSize, prefix: "images"}
}

// MaxSize is the largest accepted upload in bytes.
func (h *Host) MaxSize() int { return h.maxSize }

var contentTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

// Probe decodes just the image header.
func Probe(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if _, ok := contentTypes[format]; !ok {
		return 0, 0, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Upload stores data under a fresh key and returns its metadata.
func (h *Host) Upload(ctx context.Context, filename string, data []byte) (Image, error) {
	if len(data) > h.maxSize {
		return Image{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), h.maxSize)
	}
	w, ht, format, err := Probe(data)
	if err != nil {
		return Image{}, err
	}

	ext := format
	if format == "jpeg" {
		ext = "jpg"
	}
	key := path.Join(h.prefix, idgen.New("")+"."+ext)
	if err := h.objects.Put(ctx, key, contentTypes[format], data); err != nil {
		return Image{}, fmt.Errorf("storing %s: %w", key, err)
	}

	return Image{
		Key:      key,
		URL:      h.objects.URL(key),
		Filename: cleanFilename(filename),
		Size:     len(data),
		Width:    w,
		Height:   ht,
		Format:   format,
	}, nil
}

// Delete removes the object at key. A missing object is not an error.
func (h *Host) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	err := h.objects.Delete(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	return err
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
