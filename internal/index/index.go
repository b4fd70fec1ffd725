// Package index provides gateway adapters toward the external search index.
// The index itself (construction, ranking, sharding) lives behind the
// search.Index contract; this package only supplies substitutable bindings.
package index

import (
	"context"

	"github.com/atlas-search/search-core/internal/search"
)

// NoOpIndex answers every query with an empty result set. It is useful for
// running the service without a real index backend.
type NoOpIndex struct{}

// Query for NoOpIndex returns no hits.
func (n *NoOpIndex) Query(_ context.Context, _ string, _ int, _ string) (search.SearchResult, error) {
	return search.SearchResult{Hits: []search.ScoredDocument{}}, nil
}
