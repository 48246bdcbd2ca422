package catalog

import (
	"context"

	domimg "github.com/kailas-cloud/photodex/internal/domain/image"
)

// Repository reads and removes image records.
type Repository interface {
	Get(ctx context.Context, id int64) (domimg.Record, error)
	List(ctx context.Context, state *domimg.State, limit int) ([]domimg.Record, error)
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[domimg.State]int, error)
	Locators(ctx context.Context) ([]string, error)
}

// Storage inspects and removes stored files.
type Storage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context, key string) (int64, error)
	URL(key string) string
}
