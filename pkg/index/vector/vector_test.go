package vector

import (
	"context"
	"strings"
	"testing"
)

type embedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// stubEmbedder maps a few known words to orthogonal unit vectors and
// everything else to a fixed fallback, so similarity is predictable.
func stubEmbedder() Embedder {
	return embedderFunc(func(_ context.Context, text string) ([]float32, error) {
		switch {
		case strings.Contains(text, "alpha"):
			return []float32{1, 0, 0}, nil
		case strings.Contains(text, "beta"):
			return []float32{0, 1, 0}, nil
		default:
			return []float32{0, 0, 1}, nil
		}
	})
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("", false, stubEmbedder())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

const libID = "a1b2c3d4-e5f6-7890-abcd-ef0123456789"

func TestCollectionName(t *testing.T) {
	if got := CollectionName(libID); got != "lib_a1b2c3d4e5f67890" {
		t.Errorf("got %q", got)
	}
	if got := CollectionName("short"); got != "lib_short" {
		t.Errorf("got %q", got)
	}
}

func TestChunkDocID(t *testing.T) {
	if got := ChunkDocID("lib-1", "doc-9", "ignored.md", 3); got != "lib-1:doc-9:chunk:3" {
		t.Errorf("got %q", got)
	}

	// Without a document id the path hashes into a stable key.
	a := ChunkDocID("lib-1", "", "docs/guide.md", 0)
	b := ChunkDocID("lib-1", "", "docs/guide.md", 0)
	if a != b {
		t.Errorf("expected deterministic id, got %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "lib-1:") || !strings.HasSuffix(a, ":chunk:0") {
		t.Errorf("unexpected shape %q", a)
	}
	if a == ChunkDocID("lib-1", "", "docs/other.md", 0) {
		t.Error("different paths must produce different ids")
	}
}

func seed(t *testing.T, s *Store, chunks ...Chunk) {
	t.Helper()
	if err := s.Upsert(context.Background(), libID, chunks); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	chunks := []Chunk{
		{ID: "c1", Text: "alpha text", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"path": "a.md"}},
		{ID: "c2", Text: "beta text", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"path": "b.md"}},
	}

	seed(t, s, chunks...)
	seed(t, s, chunks...)

	count, err := s.Count(libID)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 chunks after double upsert, got %d", count)
	}
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)

	t.Run("empty collection returns nothing", func(t *testing.T) {
		results, err := s.Search(context.Background(), libID, []float32{1, 0, 0}, 5, nil)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %v", results)
		}
	})

	seed(t, s,
		Chunk{ID: "c1", Text: "alpha text", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"path": "a.md"}},
		Chunk{ID: "c2", Text: "beta text", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"path": "b.md"}},
	)

	t.Run("ranks by similarity", func(t *testing.T) {
		// nResults above the collection size is clamped, not an error.
		results, err := s.Search(context.Background(), libID, []float32{1, 0, 0}, 10, nil)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].ID != "c1" {
			t.Errorf("expected c1 first, got %s", results[0].ID)
		}
		if results[0].Score < 0.99 {
			t.Errorf("expected near-perfect score for exact match, got %f", results[0].Score)
		}
		if results[1].Score >= results[0].Score {
			t.Errorf("expected descending scores, got %f then %f", results[0].Score, results[1].Score)
		}
		if results[0].Metadata["path"] != "a.md" {
			t.Errorf("metadata not carried through: %v", results[0].Metadata)
		}
	})

	t.Run("where filter restricts hits", func(t *testing.T) {
		results, err := s.Search(context.Background(), libID, []float32{1, 0, 0}, 2, map[string]string{"path": "b.md"})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 1 || results[0].ID != "c2" {
			t.Errorf("expected only c2, got %v", results)
		}
	})
}

func TestScoreFromDistance(t *testing.T) {
	if got := scoreFromDistance(0); got != 1 {
		t.Errorf("distance 0 should score 1, got %f", got)
	}
	if got := scoreFromDistance(0.25); got != 0.75 {
		t.Errorf("got %f", got)
	}
	if got := scoreFromDistance(1); got != 0.5 {
		t.Errorf("distance 1 should score 0.5, got %f", got)
	}
	if got := scoreFromDistance(3); got != 0.25 {
		t.Errorf("got %f", got)
	}
}

func TestGet(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, Chunk{ID: "c1", Text: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"path": "a.md"}})

	got, ok, err := s.Get(context.Background(), libID, "c1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Text != "alpha" {
		t.Errorf("got %q", got.Text)
	}

	_, ok, err = s.Get(context.Background(), libID, "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected miss for unknown id")
	}
}

func TestDeleteByFilter(t *testing.T) {
	s := newTestStore(t)
	seed(t, s,
		Chunk{ID: "c1", Text: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"path": "a.md"}},
		Chunk{ID: "c2", Text: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"path": "b.md"}},
	)

	n, err := s.DeleteByFilter(context.Background(), libID, map[string]string{"path": "a.md"})
	if err != nil {
		t.Fatalf("DeleteByFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}
	if count, _ := s.Count(libID); count != 1 {
		t.Errorf("expected 1 remaining, got %d", count)
	}
}

func TestDeleteByPathPrefix(t *testing.T) {
	s := newTestStore(t)
	seed(t, s,
		Chunk{ID: "c1", Text: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]string{"path": "docs/a.md"}},
		Chunk{ID: "c2", Text: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]string{"path": "docs/b.md"}},
		Chunk{ID: "c3", Text: "other", Embedding: []float32{0, 0, 1}, Metadata: map[string]string{"path": "src/x.go"}},
	)

	n, err := s.DeleteByPathPrefix(context.Background(), libID, "docs/")
	if err != nil {
		t.Fatalf("DeleteByPathPrefix failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if count, _ := s.Count(libID); count != 1 {
		t.Errorf("expected 1 remaining, got %d", count)
	}

	n, err = s.DeleteByPathPrefix(context.Background(), libID, "docs/")
	if err != nil {
		t.Fatalf("second DeleteByPathPrefix failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing left to delete, got %d", n)
	}
}

func TestDeleteCollection(t *testing.T) {
	s := newTestStore(t)
	seed(t, s,
		Chunk{ID: "c1", Text: "alpha", Embedding: []float32{1, 0, 0}},
		Chunk{ID: "c2", Text: "beta", Embedding: []float32{0, 1, 0}},
	)

	n, err := s.DeleteCollection(context.Background(), libID)
	if err != nil {
		t.Fatalf("DeleteCollection failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected prior count 2, got %d", n)
	}

	n, err = s.DeleteCollection(context.Background(), libID)
	if err != nil {
		t.Fatalf("second DeleteCollection failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 for missing collection, got %d", n)
	}
}
