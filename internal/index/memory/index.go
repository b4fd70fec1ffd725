// Package memory provides an in-memory index for development/testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/atlas-search/search-core/internal/search"
)

// Index holds documents in memory and answers queries by case-insensitive
// substring match over title and snippet, scored by term frequency. Cursors
// are plain result offsets.
type Index struct {
	mu   sync.RWMutex
	docs []search.ScoredDocument
}

// NewIndex constructs an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// Add inserts documents into the index.
func (i *Index) Add(docs ...search.ScoredDocument) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.docs = append(i.docs, docs...)
}

// Query returns one page of matching documents ordered by score.
func (i *Index) Query(_ context.Context, q string, limit int, cursor string) (search.SearchResult, error) {
	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil || parsed < 0 {
			return search.SearchResult{}, fmt.Errorf("%w: malformed cursor %q", search.ErrInvalidInput, cursor)
		}
		offset = parsed
	}
	if limit <= 0 {
		limit = 10
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	needle := strings.ToLower(q)
	var matches []search.ScoredDocument
	for _, doc := range i.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.Snippet)
		count := strings.Count(haystack, needle)
		if count == 0 {
			continue
		}
		scored := doc
		scored.Score = float64(count)
		matches = append(matches, scored)
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	total := len(matches)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	result := search.SearchResult{
		Hits:      append([]search.ScoredDocument{}, matches[offset:end]...),
		TotalHits: total,
	}
	if end < total {
		result.NextCursor = strconv.Itoa(end)
	}
	return result, nil
}
