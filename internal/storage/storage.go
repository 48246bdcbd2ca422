// Package storage keeps image files behind a key-addressed interface.
// Keys are slash-separated relative paths such as "images/IMG_0001.jpg".
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Storage saves and serves image files.
type Storage interface {
	// Save writes r under key and returns the key actually used.
	// An occupied key gets a random suffix instead of being overwritten.
	Save(ctx context.Context, key string, r io.Reader) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context, key string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URL(key string) string
}

// ImageKey returns the storage key for an uploaded file name.
func ImageKey(filename string) string {
	return "images/" + path.Base(strings.ReplaceAll(filename, "\\", "/"))
}

// suffixKey inserts a short random suffix before the extension.
func suffixKey(key string) string {
	ext := path.Ext(key)
	stem := strings.TrimSuffix(key, ext)
	return stem + "_" + uuid.NewString()[:8] + ext
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

// freeKey tries key and suffixed variants until one is unused.
func freeKey(ctx context.Context, key string, exists func(context.Context, string) (bool, error)) (string, error) {
	candidate := key
	for range maxKeyAttempts {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = suffixKey(key)
	}
	return "", errKeyExhausted
}
