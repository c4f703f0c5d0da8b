package vector

import (
	"context"
	"fmt"
	"strings"
)

// DeleteByFilter removes chunks matching the exact-match metadata
// filter and returns how many were removed.
func (s *Store) DeleteByFilter(ctx context.Context, libraryID string, where map[string]string) (int, error) {
	col, err := s.collection(libraryID)
	if err != nil {
		return 0, err
	}

	before := col.Count()
	if before == 0 {
		return 0, nil
	}

	if err := col.Delete(ctx, where, nil); err != nil {
		return 0, fmt.Errorf("delete from %s failed: %w", CollectionName(libraryID), err)
	}
	return before - col.Count(), nil
}

// DeleteByPathPrefix removes every chunk whose path metadata starts
// with prefix and returns the count. Prefix queries are not native to
// the store, so this ranks the whole collection once and filters the
// metadata client-side.
func (s *Store) DeleteByPathPrefix(ctx context.Context, libraryID, prefix string) (int, error) {
	col, err := s.collection(libraryID)
	if err != nil {
		return 0, err
	}

	count := col.Count()
	if count == 0 {
		return 0, nil
	}

	// Query text is irrelevant; asking for every document turns the
	// ranked query into a full scan.
	hits, err := col.Query(ctx, prefix, count, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("scan of %s failed: %w", CollectionName(libraryID), err)
	}

	var ids []string
	for _, h := range hits {
		if strings.HasPrefix(h.Metadata["path"], prefix) {
			ids = append(ids, h.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, fmt.Errorf("delete from %s failed: %w", CollectionName(libraryID), err)
	}
	return len(ids), nil
}

// DeleteCollection drops the library's entire collection and returns
// the number of chunks it held.
func (s *Store) DeleteCollection(ctx context.Context, libraryID string) (int, error) {
	name := CollectionName(libraryID)

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.db.GetCollection(name, s.embed)
	if col == nil {
		return 0, nil
	}
	count := col.Count()

	if err := s.db.DeleteCollection(name); err != nil {
		return 0, fmt.Errorf("failed to drop collection %s: %w", name, err)
	}
	delete(s.collections, name)
	return count, nil
}
