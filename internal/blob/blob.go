package blob

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
)

// Store is the external blob collaborator: store an inline image, get a
// durable URL back. Implementations must honor ctx cancellation so the
// send pipeline's upload timeout holds.
type Store interface {
	Upload(ctx context.Context, dataURI string) (url string, err error)
}

var extByMime = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// LocalStore writes decoded images under a directory served as static
// files. ~/uploads/<uuid>.<ext> -> <baseURL>/<uuid>.<ext>.
type LocalStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir, baseURL string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Upload validates and stores a "data:image/...;base64," payload.
func (s *LocalStore) Upload(ctx context.Context, dataURI string) (string, error) {
	mime, payload, err := splitDataURI(dataURI)
	if err != nil {
		return "", err
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", apperr.New(apperr.KindInvalidArgument, "invalid image data")
	}
	if int64(len(data)) > s.maxBytes {
		return "", apperr.Newf(apperr.KindInvalidArgument,
			"file size too large, maximum is %dMB", s.maxBytes>>20)
	}
	if len(data) == 0 {
		return "", apperr.New(apperr.KindInvalidArgument, "invalid image data")
	}

	if err := ctx.Err(); err != nil {
		return "", apperr.Wrap(apperr.KindUploadFailed, "image upload timed out", err)
	}

	ext, ok := extByMime[mime]
	if !ok {
		ext = ".img"
	}
	name := uuid.NewString() + ext

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", apperr.Wrap(apperr.KindUploadFailed, "image upload failed", err)
	}

	return s.baseURL + "/" + name, nil
}

// splitDataURI pulls the mime type and base64 payload out of a data URI.
// Bare base64 (no prefix) is accepted and assumed to be JPEG.
func splitDataURI(uri string) (mime, payload string, err error) {
	if !strings.HasPrefix(uri, "data:image/") {
		if strings.Contains(uri, "base64,") {
			return "", "", apperr.New(apperr.KindInvalidArgument, "invalid image format")
		}
		return "image/jpeg", uri, nil
	}

	rest := strings.TrimPrefix(uri, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", "", apperr.New(apperr.KindInvalidArgument, "invalid image format")
	}
	return rest[:semi], rest[semi+len(";base64,"):], nil
}

// Dir returns the storage directory, for static file serving.
func (s *LocalStore) Dir() string {
	return s.dir
}
