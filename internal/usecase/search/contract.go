package search

import (
	"context"

	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
	"github.com/kailas-cloud/photodex/internal/domain/search/query"
	"github.com/kailas-cloud/photodex/internal/domain/search/result"
)

// Repository runs filtered and ranked image queries.
type Repository interface {
	Search(ctx context.Context, q query.Query) ([]result.Hit, error)
	Get(ctx context.Context, id int64) (domimg.Record, error)
}

// QueryEmbedder resolves query text to a cached embedding.
type QueryEmbedder interface {
	Get(ctx context.Context, text string) ([]float32, error)
}
