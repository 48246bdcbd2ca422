// Package query describes a resolved image search handed to storage.
package query

import "github.com/kailas-cloud/photodex/internal/domain/search/filter"

// Query is a filtered listing. A non-empty Vector switches to L2 ranking.
type Query struct {
	Filter    filter.Filter
	Vector    []float32
	ExcludeID int64
	Limit     int
}

// Ranked reports whether results are ordered by distance.
func (q Query) Ranked() bool { return len(q.Vector) > 0 }
