// Package assets stores uploaded product images and hands back the relative
// reference that gets persisted on the product record.
package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Prefix is the leading path segment of every reference this package issues.
const Prefix = "uploads/"

const DefaultMaxBytes = 5 << 20

var (
	ErrNotImage = errors.New("upload is not an image")
	ErrTooLarge = errors.New("upload is too large")
	ErrEmpty    = errors.New("upload is empty")
)

type Upload struct {
	Filename string
	Body     io.Reader
}

type Store interface {
	Put(ctx context.Context, up Upload) (string, error)
	// Remove deletes the asset behind ref. Unknown refs are not an error.
	Remove(ctx context.Context, ref string) error
}

var imageExt = map[string]string{
	"image/jpeg":   ".jpg",
	"image/png":    ".png",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/avif":   ".avif",
	"image/x-icon": ".ico",
}

type prepared struct {
	name        string
	contentType string
	data        []byte
}

func prepare(up Upload, maxBytes int64) (prepared, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, maxBytes+1))
	if err != nil {
		return prepared{}, err
	}
	if len(data) == 0 {
		return prepared{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return prepared{}, ErrTooLarge
	}

	// The stored extension always follows the sniffed type; the client's
	// file name is never trusted.
	ct := http.DetectContentType(data)
	ext, ok := imageExt[ct]
	if !ok {
		return prepared{}, ErrNotImage
	}

	return prepared{
		name:        uuid.NewString() + ext,
		contentType: ct,
		data:        data,
	}, nil
}

// nameOf returns the stored file name for ref, or "" if ref was not issued
// by this package.
func nameOf(ref string) string {
	if !strings.HasPrefix(ref, Prefix) {
		return ""
	}
	name := strings.TrimPrefix(ref, Prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ""
	}
	return name
}

func reader(p prepared) *bytes.Reader { return bytes.NewReader(p.data) }
