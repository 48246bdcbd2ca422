// Package search retrieves images by text query, structured filters or visual similarity.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/photodex/internal/domain"
	"github.com/kailas-cloud/photodex/internal/domain/search/mode"
	"github.com/kailas-cloud/photodex/internal/domain/search/query"
	"github.com/kailas-cloud/photodex/internal/domain/search/request"
	"github.com/kailas-cloud/photodex/internal/domain/search/result"
	"github.com/kailas-cloud/photodex/internal/logger"
)

// EmbeddingError hides the provider failure behind a user-safe message.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "failed to generate query embedding" }

// Unwrap exposes both the provider sentinel and the cause.
func (e *EmbeddingError) Unwrap() []error {
	return []error{domain.ErrEmbeddingProviderError, e.Err}
}

// Service executes image searches.
type Service struct {
	repo  Repository
	embed QueryEmbedder
}

// New creates a search service.
func New(repo Repository, embed QueryEmbedder) *Service {
	return &Service{repo: repo, embed: embed}
}

// Search returns done images matching the request filters. With query text results
// are ranked by L2 distance to its embedding, otherwise newest first.
func (s *Service) Search(ctx context.Context, req *request.Request) ([]result.Hit, error) {
	q := query.Query{Filter: req.Filter(), Limit: req.Limit()}

	if req.Mode() == mode.Ranked {
		vec, err := s.embed.Get(ctx, req.Query())
		if err != nil {
			logger.FromContext(ctx).Error("Query embedding failed",
				zap.String("query", req.Query()), zap.Error(err))
			return nil, &EmbeddingError{Err: err}
		}
		q.Vector = vec
	}

	hits, err := s.repo.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search images: %w", err)
	}
	return hits, nil
}

// Similar ranks other done images by distance to the reference image. A reference
// that is missing or has no embedding yields no results and no error.
func (s *Service) Similar(ctx context.Context, req request.SimilarRequest) ([]result.Hit, error) {
	ref, err := s.repo.Get(ctx, req.ImageID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reference image: %w", err)
	}
	if len(ref.Embedding()) == 0 {
		return nil, nil
	}

	hits, err := s.repo.Search(ctx, query.Query{
		Vector:    ref.Embedding(),
		ExcludeID: ref.ID(),
		Limit:     req.Limit(),
	})
	if err != nil {
		return nil, fmt.Errorf("search similar images: %w", err)
	}
	return hits, nil
}
