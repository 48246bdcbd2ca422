package searchquery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/photodex/internal/db"
	"github.com/kailas-cloud/photodex/internal/domain"
	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

// pool is the consumer interface over pgxpool.Pool (ISP).
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo is the durable tier of the query embedding cache.
// Duplicate rows per text are tolerated; the lowest id is canonical.
type Repo struct {
	pool pool
}

// New creates a search query repository.
func New(p pool) *Repo {
	return &Repo{pool: p}
}

// FindByText returns the canonical row for text, or domain.ErrNotFound.
func (r *Repo) FindByText(ctx context.Context, text string) (domimg.SearchQuery, error) {
	const query = `
		SELECT id, query_text, embedding, embedding_model, created_at
		FROM search_queries
		WHERE query_text = $1
		ORDER BY id
		LIMIT 1`

	var (
		q     domimg.SearchQuery
		vec   *pgvector.Vector
		model *string
	)
	err := r.pool.QueryRow(ctx, query, text).Scan(&q.ID, &q.Text, &vec, &model, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domimg.SearchQuery{}, fmt.Errorf("search query %q: %w", text, domain.ErrNotFound)
		}
		return domimg.SearchQuery{}, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("find search query: %w", err)}
	}
	if vec != nil {
		q.Embedding = vec.Slice()
	}
	if model != nil {
		q.Model = *model
	}
	return q, nil
}

// Save appends a row for q.Text.
func (r *Repo) Save(ctx context.Context, q domimg.SearchQuery) error {
	const query = `INSERT INTO search_queries (query_text, embedding, embedding_model) VALUES ($1, $2, $3)`

	var vec any
	if len(q.Embedding) > 0 {
		vec = pgvector.NewVector(q.Embedding)
	}
	var model *string
	if q.Model != "" {
		model = &q.Model
	}
	if _, err := r.pool.Exec(ctx, query, q.Text, vec, model); err != nil {
		return &db.Error{Op: db.OpExec, Err: fmt.Errorf("save search query: %w", err)}
	}
	return nil
}
