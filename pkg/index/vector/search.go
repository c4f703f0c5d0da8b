package vector

import (
	"context"
	"fmt"
)

// SearchResult is one scored hit from a collection query.
type SearchResult struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]string
}

// Search runs a nearest-neighbor query against the library's
// collection. nResults is clamped to the collection size; an empty
// collection yields no results and no error. The optional where map
// filters on exact metadata matches.
func (s *Store) Search(ctx context.Context, libraryID string, queryEmbedding []float32, nResults int, where map[string]string) ([]SearchResult, error) {
	col, err := s.collection(libraryID)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if nResults > count {
		nResults = count
	}
	if nResults < 1 {
		nResults = 1
	}

	hits, err := col.QueryEmbedding(ctx, queryEmbedding, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query against %s failed: %w", CollectionName(libraryID), err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ID:       h.ID,
			Text:     h.Content,
			Score:    scoreFromDistance(1 - float64(h.Similarity)),
			Metadata: h.Metadata,
		})
	}
	return results, nil
}

// scoreFromDistance converts a distance into a bounded score in (0, 1].
// Distances below 1 map linearly; larger distances decay so the score
// never goes negative.
func scoreFromDistance(distance float64) float64 {
	if distance < 1 {
		if distance < 0 {
			return 1
		}
		return 1 - distance
	}
	return 1 / (1 + distance)
}
