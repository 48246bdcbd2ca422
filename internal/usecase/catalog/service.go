// Package catalog browses, inspects and deletes stored images.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

const sizeConcurrency = 8

// Info is a record with its file details.
type Info struct {
	Record   domimg.Record
	URL      string
	Size     int64
	FileType string
}

// Usage summarizes storage consumption.
type Usage struct {
	TotalFiles int
	TotalBytes int64
	TotalMB    float64
	ByStatus   map[domimg.State]int
}

// Service handles catalog operations.
type Service struct {
	repo            Repository
	storage         Storage
	defaultPageSize int
	maxPageSize     int
}

// New creates a catalog service.
func New(repo Repository, store Storage) *Service {
	return &Service{repo: repo, storage: store, defaultPageSize: 20, maxPageSize: 100}
}

// Get returns the record with its file size, URL and type.
func (s *Service) Get(ctx context.Context, id int64) (Info, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Info{}, fmt.Errorf("get image: %w", err)
	}

	size, err := s.storage.Size(ctx, rec.Locator())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Info{}, fmt.Errorf("stat image file: %w", err)
	}

	return Info{
		Record:   rec,
		URL:      s.storage.URL(rec.Locator()),
		Size:     size,
		FileType: strings.TrimPrefix(strings.ToLower(path.Ext(rec.Locator())), "."),
	}, nil
}

// List returns records newest first, optionally restricted to one state.
func (s *Service) List(ctx context.Context, state *domimg.State, limit int) ([]domimg.Record, error) {
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	recs, err := s.repo.List(ctx, state, limit)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return recs, nil
}

// Delete removes the stored file, if present, and then the record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get image: %w", err)
	}

	exists, err := s.storage.Exists(ctx, rec.Locator())
	if err != nil {
		return fmt.Errorf("check image file: %w", err)
	}
	if exists {
		if err := s.storage.Delete(ctx, rec.Locator()); err != nil {
			return fmt.Errorf("delete image file: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

// Usage totals stored file sizes and counts records per status.
// Files missing from storage count toward TotalFiles but add no bytes.
func (s *Service) Usage(ctx context.Context) (Usage, error) {
	locators, err := s.repo.Locators(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("list locators: %w", err)
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("count images: %w", err)
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sizeConcurrency)
	for _, loc := range locators {
		g.Go(func() error {
			size, err := s.storage.Size(gctx, loc)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("stat %s: %w", loc, err)
			}
			total.Add(size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Usage{}, err
	}

	bytes := total.Load()
	return Usage{
		TotalFiles: len(locators),
		TotalBytes: bytes,
		TotalMB:    math.Round(float64(bytes)/(1024*1024)*100) / 100,
		ByStatus:   counts,
	}, nil
}
