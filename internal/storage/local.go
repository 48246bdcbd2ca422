package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/kailas-cloud/photodex/internal/domain"
)

// Local stores files on the local filesystem through afs.
type Local struct {
	fs      afs.Service
	root    string
	baseURL string
}

// NewLocal creates a filesystem backend rooted at root. baseURL prefixes public URLs.
func NewLocal(root, baseURL string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &Local{fs: afs.New(), root: abs, baseURL: baseURL}, nil
}

func (l *Local) fileURL(key string) string {
	return file.Scheme + "://" + filepath.Join(l.root, filepath.FromSlash(key))
}

// Path returns the absolute filesystem path of key.
func (l *Local) Path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

func (l *Local) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	target, err := freeKey(ctx, key, l.Exists)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", key, err)
	}
	if err := l.fs.Upload(ctx, l.fileURL(target), file.DefaultFileOsMode, r); err != nil {
		return "", fmt.Errorf("save %s: %w", target, err)
	}
	return target, nil
}

func (l *Local) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := l.fs.Exists(ctx, l.fileURL(key))
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return ok, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	if err := l.fs.Delete(ctx, l.fileURL(key)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (l *Local) Size(ctx context.Context, key string) (int64, error) {
	ok, err := l.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("file %s: %w", key, domain.ErrNotFound)
	}
	obj, err := l.fs.Object(ctx, l.fileURL(key))
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", key, err)
	}
	return obj.Size(), nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ok, err := l.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("file %s: %w", key, domain.ErrNotFound)
	}
	rc, err := l.fs.OpenURL(ctx, l.fileURL(key))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return rc, nil
}

func (l *Local) URL(key string) string { return joinURL(l.baseURL, key) }
