package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/photodex/internal/db"
)

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema creates the images and search_queries tables.
// The vector width must match domain.VectorDim.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS images (
	id                    BIGSERIAL PRIMARY KEY,
	image                 TEXT NOT NULL,
	embedding             vector(1408),
	embedding_model       TEXT,
	gps_coordinates       DOUBLE PRECISION[2],
	location_name         TEXT,
	date_taken_exif       TIMESTAMPTZ,
	date_taken_user       DATE,
	location_user         TEXT,
	exif_fingerprint      TEXT UNIQUE,
	exif_data             JSONB,
	tags                  TEXT[] NOT NULL DEFAULT '{}',
	status                TEXT NOT NULL DEFAULT 'pending',
	error_message         TEXT,
	processing_started_at TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT images_status_check CHECK (status IN ('pending', 'processing', 'done', 'failed'))
);

CREATE INDEX IF NOT EXISTS images_status_created_idx ON images (status, created_at DESC);
CREATE INDEX IF NOT EXISTS images_date_taken_idx ON images (date_taken_exif);
CREATE INDEX IF NOT EXISTS images_embedding_idx
	ON images USING hnsw (embedding vector_l2_ops);

CREATE TABLE IF NOT EXISTS search_queries (
	id              BIGSERIAL PRIMARY KEY,
	query_text      TEXT NOT NULL,
	embedding       vector(1408),
	embedding_model TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS search_queries_text_idx ON search_queries (query_text, id);
`

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, e Execer) error {
	if _, err := e.Exec(ctx, Schema); err != nil {
		return &db.Error{Op: db.OpMigrate, Err: fmt.Errorf("apply schema: %w", err)}
	}
	return nil
}
