package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shelfd/shelfd/pkg/index/vector"
	"github.com/shelfd/shelfd/pkg/models"
)

type fakeLibraries struct {
	libs map[string]*models.Library
}

func newFakeLibraries(libs ...*models.Library) *fakeLibraries {
	f := &fakeLibraries{libs: map[string]*models.Library{}}
	for _, lib := range libs {
		f.libs[lib.ID] = lib
	}
	return f
}

func (f *fakeLibraries) GetLibrary(_ context.Context, id string) (*models.Library, error) {
	lib, ok := f.libs[id]
	if !ok {
		return nil, models.ErrLibraryNotFound
	}
	return lib, nil
}

func (f *fakeLibraries) ListLibraries(_ context.Context) ([]*models.Library, error) {
	var out []*models.Library
	for _, lib := range f.libs {
		out = append(out, lib)
	}
	return out, nil
}

type fakeVectorStore struct {
	mu      sync.Mutex
	results map[string][]vector.SearchResult
	chunks  map[string]vector.Chunk
	upserts map[string][]vector.Chunk
	dropped []string

	lastWhere map[string]string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		results: map[string][]vector.SearchResult{},
		chunks:  map[string]vector.Chunk{},
		upserts: map[string][]vector.Chunk{},
	}
}

func (f *fakeVectorStore) Search(_ context.Context, libraryID string, _ []float32, nResults int, where map[string]string) ([]vector.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastWhere = where
	hits := f.results[libraryID]
	if len(hits) > nResults {
		hits = hits[:nResults]
	}
	return hits, nil
}

func (f *fakeVectorStore) Upsert(_ context.Context, libraryID string, chunks []vector.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[libraryID] = append(f.upserts[libraryID], chunks...)
	return nil
}

func (f *fakeVectorStore) Get(_ context.Context, _, id string) (vector.Chunk, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chunks[id]
	return c, ok, nil
}

func (f *fakeVectorStore) DeleteByFilter(_ context.Context, libraryID string, where map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, c := range f.chunks {
		if strings.HasPrefix(id, libraryID+":") && c.Metadata["doc_id"] == where["doc_id"] {
			delete(f.chunks, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeVectorStore) DeleteByPathPrefix(_ context.Context, libraryID, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, c := range f.chunks {
		if strings.HasPrefix(id, libraryID+":") && strings.HasPrefix(c.Metadata["path"], prefix) {
			delete(f.chunks, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeVectorStore) DeleteCollection(_ context.Context, libraryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id := range f.chunks {
		if strings.HasPrefix(id, libraryID+":") {
			delete(f.chunks, id)
			n++
		}
	}
	f.dropped = append(f.dropped, libraryID)
	return n, nil
}

type fixedEmbedder struct {
	failOn string
}

func (f *fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding backend down")
	}
	return []float32{1, 0, 0}, nil
}

func mustArgs(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func newVectorFixture(policy *PolicyEngine) (*VectorTools, *fakeVectorStore, *fakeLibraries) {
	libs := newFakeLibraries(
		&models.Library{ID: "lib-a", Name: "alpha", MCPWriteEnabled: true},
		&models.Library{ID: "lib-b", Name: "beta", MCPWriteEnabled: true},
	)
	vectors := newFakeVectorStore()
	tools := NewVectorTools(libs, vectors, &fixedEmbedder{}, policy, nil, 0)
	return tools, vectors, libs
}

func TestVectorQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("merges and sorts across libraries", func(t *testing.T) {
		tools, vectors, _ := newVectorFixture(NewPolicyEngine(false))
		vectors.results["lib-a"] = []vector.SearchResult{
			{ID: "lib-a:x:chunk:0", Score: 0.9, Metadata: map[string]string{"library_id": "lib-a"}},
			{ID: "lib-a:x:chunk:1", Score: 0.2},
		}
		vectors.results["lib-b"] = []vector.SearchResult{
			{ID: "lib-b:y:chunk:0", Score: 0.5},
		}

		out, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "find widgets", TopK: 2}))
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		res := out.(*QueryResult)
		if len(res.Results) != 2 {
			t.Fatalf("expected truncation to 2, got %d", len(res.Results))
		}
		if res.Results[0].ID != "lib-a:x:chunk:0" || res.Results[1].ID != "lib-b:y:chunk:0" {
			t.Errorf("bad order: %s, %s", res.Results[0].ID, res.Results[1].ID)
		}
		if res.LowConfidence {
			t.Error("0.9 hit must clear the default threshold")
		}
		if res.QueryID == "" {
			t.Error("missing query id")
		}
	})

	t.Run("low confidence when all hits weak", func(t *testing.T) {
		tools, vectors, _ := newVectorFixture(NewPolicyEngine(false))
		vectors.results["lib-a"] = []vector.SearchResult{{ID: "lib-a:x:chunk:0", Score: 0.1}}

		out, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "anything"}))
		if err != nil {
			t.Fatal(err)
		}
		if !out.(*QueryResult).LowConfidence {
			t.Error("expected low confidence")
		}
	})

	t.Run("empty results are low confidence", func(t *testing.T) {
		tools, _, _ := newVectorFixture(NewPolicyEngine(false))
		out, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "nothing matches"}))
		if err != nil {
			t.Fatal(err)
		}
		res := out.(*QueryResult)
		if !res.LowConfidence || len(res.Results) != 0 {
			t.Errorf("expected empty low-confidence result, got %+v", res)
		}
	})

	t.Run("library scope enforces read access", func(t *testing.T) {
		policy := NewPolicyEngine(false)
		policy.Set("lib-a", Policy{ReadEnabled: false})
		tools, _, _ := newVectorFixture(policy)

		if _, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "q", LibraryID: "lib-a"})); !errors.Is(err, ErrReadDenied) {
			t.Errorf("expected read denial, got %v", err)
		}
	})

	t.Run("unreadable libraries skipped in broad search", func(t *testing.T) {
		policy := NewPolicyEngine(false)
		policy.Set("lib-a", Policy{ReadEnabled: false})
		tools, vectors, _ := newVectorFixture(policy)
		vectors.results["lib-a"] = []vector.SearchResult{{ID: "lib-a:x:chunk:0", Score: 0.9}}
		vectors.results["lib-b"] = []vector.SearchResult{{ID: "lib-b:y:chunk:0", Score: 0.4}}

		out, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "q"}))
		if err != nil {
			t.Fatal(err)
		}
		res := out.(*QueryResult)
		if len(res.Results) != 1 || res.Results[0].ID != "lib-b:y:chunk:0" {
			t.Errorf("denied library leaked into results: %+v", res.Results)
		}
	})

	t.Run("filters forwarded", func(t *testing.T) {
		tools, vectors, _ := newVectorFixture(NewPolicyEngine(false))
		_, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "q", LibraryID: "lib-a", Language: "go", Path: "docs/readme.md"}))
		if err != nil {
			t.Fatal(err)
		}
		if vectors.lastWhere["language"] != "go" || vectors.lastWhere["path"] != "docs/readme.md" {
			t.Errorf("where not forwarded: %v", vectors.lastWhere)
		}
	})

	t.Run("top_k bounds", func(t *testing.T) {
		tools, _, _ := newVectorFixture(NewPolicyEngine(false))
		if _, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "q", TopK: 51})); err == nil {
			t.Error("expected top_k rejection")
		}
		if _, err := tools.query(ctx, "agent-1", mustArgs(t, QueryArgs{Text: "q", TopK: -1})); err == nil {
			t.Error("expected negative top_k rejection")
		}
	})
}

func TestVectorUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("partial success", func(t *testing.T) {
		policy := NewPolicyEngine(true)
		policy.Set("lib-b", Policy{ReadEnabled: true, WriteEnabled: false})
		libs := newFakeLibraries(
			&models.Library{ID: "lib-a", MCPWriteEnabled: true},
			&models.Library{ID: "lib-b", MCPWriteEnabled: true},
		)
		vectors := newFakeVectorStore()
		tools := NewVectorTools(libs, vectors, &fixedEmbedder{failOn: "unembeddable"}, policy, nil, 0)

		out, err := tools.upsert(ctx, "agent-1", mustArgs(t, UpsertArgs{
			Chunks: []string{"good chunk", "unembeddable chunk", "write denied", "missing meta"},
			Metadata: []map[string]string{
				{"path": "docs/a.md", "chunk_id": "0", "library_id": "lib-a"},
				{"path": "docs/b.md", "chunk_id": "0", "library_id": "lib-a"},
				{"path": "docs/c.md", "chunk_id": "0", "library_id": "lib-b"},
				{"path": "docs/d.md", "chunk_id": "0"},
			},
		}))
		if err != nil {
			t.Fatalf("partial failure must not throw: %v", err)
		}
		res := out.(*UpsertResult)
		if res.UpsertedCount != 1 || len(res.IDs) != 1 {
			t.Errorf("expected 1 upsert, got %+v", res)
		}
		if len(res.Errors) != 3 {
			t.Fatalf("expected 3 item errors, got %+v", res.Errors)
		}
		if res.Errors[0].Index != 1 || res.Errors[1].Index != 2 || res.Errors[2].Index != 3 {
			t.Errorf("wrong failing indices: %+v", res.Errors)
		}
		if got := len(vectors.upserts["lib-a"]); got != 1 {
			t.Errorf("lib-a upserts = %d", got)
		}
	})

	t.Run("deterministic ids", func(t *testing.T) {
		tools, vectors, _ := newVectorFixture(NewPolicyEngine(true))
		out, err := tools.upsert(ctx, "agent-1", mustArgs(t, UpsertArgs{
			Chunks: []string{"c"},
			Metadata: []map[string]string{
				{"path": "docs/a.md", "chunk_id": "2", "library_id": "lib-a", "doc_id": "doc-7"},
			},
		}))
		if err != nil {
			t.Fatal(err)
		}
		res := out.(*UpsertResult)
		want := "lib-a:doc-7:chunk:2"
		if len(res.IDs) != 1 || res.IDs[0] != want {
			t.Errorf("ids = %v, want [%s]", res.IDs, want)
		}
		if vectors.upserts["lib-a"][0].ID != want {
			t.Errorf("stored id = %s", vectors.upserts["lib-a"][0].ID)
		}
	})

	t.Run("length mismatch rejected", func(t *testing.T) {
		tools, _, _ := newVectorFixture(NewPolicyEngine(true))
		_, err := tools.upsert(ctx, "agent-1", mustArgs(t, UpsertArgs{
			Chunks:   []string{"a", "b"},
			Metadata: []map[string]string{{"path": "p", "chunk_id": "0", "library_id": "lib-a"}},
		}))
		if err == nil {
			t.Error("expected mismatch rejection")
		}
	})
}

func TestVectorGet(t *testing.T) {
	ctx := context.Background()
	policy := NewPolicyEngine(false)
	policy.Set("lib-b", Policy{ReadEnabled: false})
	tools, vectors, _ := newVectorFixture(policy)

	vectors.chunks["lib-a:doc:chunk:0"] = vector.Chunk{
		ID: "lib-a:doc:chunk:0", Text: "hello", Metadata: map[string]string{"path": "a.md"},
	}

	out, err := tools.get(ctx, "agent-1", mustArgs(t, GetArgs{IDs: []string{
		"lib-a:doc:chunk:0",
		"lib-a:doc:chunk:9",
		"lib-b:doc:chunk:0",
		"malformed",
	}}))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	res := out.(*GetResult)
	if len(res.Chunks) != 1 || res.Chunks[0].Text != "hello" {
		t.Errorf("chunks = %+v", res.Chunks)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("expected 3 item errors, got %+v", res.Errors)
	}
}

func TestVectorDelete(t *testing.T) {
	ctx := context.Background()

	seed := func(vectors *fakeVectorStore) {
		vectors.chunks["lib-a:d1:chunk:0"] = vector.Chunk{Metadata: map[string]string{"doc_id": "d1", "path": "docs/a.md"}}
		vectors.chunks["lib-a:d1:chunk:1"] = vector.Chunk{Metadata: map[string]string{"doc_id": "d1", "path": "docs/a.md"}}
		vectors.chunks["lib-a:d2:chunk:0"] = vector.Chunk{Metadata: map[string]string{"doc_id": "d2", "path": "notes/b.md"}}
		vectors.chunks["lib-b:d3:chunk:0"] = vector.Chunk{Metadata: map[string]string{"doc_id": "d1", "path": "docs/c.md"}}
	}

	t.Run("requires a selector", func(t *testing.T) {
		tools, _, _ := newVectorFixture(NewPolicyEngine(true))
		if _, err := tools.delete(ctx, "agent-1", mustArgs(t, DeleteArgs{})); err == nil {
			t.Error("expected selector requirement")
		}
	})

	t.Run("library drop returns prior count", func(t *testing.T) {
		tools, vectors, _ := newVectorFixture(NewPolicyEngine(true))
		seed(vectors)
		out, err := tools.delete(ctx, "agent-1", mustArgs(t, DeleteArgs{LibraryID: "lib-a"}))
		if err != nil {
			t.Fatal(err)
		}
		if n := out.(*DeleteResult).DeletedCount; n != 3 {
			t.Errorf("deleted = %d, want 3", n)
		}
		if len(vectors.dropped) != 1 || vectors.dropped[0] != "lib-a" {
			t.Errorf("dropped = %v", vectors.dropped)
		}
	})

	t.Run("doc_id spans writable libraries", func(t *testing.T) {
		tools, vectors, _ := newVectorFixture(NewPolicyEngine(true))
		seed(vectors)
		out, err := tools.delete(ctx, "agent-1", mustArgs(t, DeleteArgs{DocID: "d1"}))
		if err != nil {
			t.Fatal(err)
		}
		if n := out.(*DeleteResult).DeletedCount; n != 3 {
			t.Errorf("deleted = %d, want 3", n)
		}
	})

	t.Run("path prefix", func(t *testing.T) {
		tools, vectors, _ := newVectorFixture(NewPolicyEngine(true))
		seed(vectors)
		out, err := tools.delete(ctx, "agent-1", mustArgs(t, DeleteArgs{LibraryID: "lib-a", PathPrefix: "docs/"}))
		if err != nil {
			t.Fatal(err)
		}
		if n := out.(*DeleteResult).DeletedCount; n != 2 {
			t.Errorf("deleted = %d, want 2", n)
		}
	})

	t.Run("write access enforced", func(t *testing.T) {
		tools, _, _ := newVectorFixture(NewPolicyEngine(false))
		if _, err := tools.delete(ctx, "agent-1", mustArgs(t, DeleteArgs{LibraryID: "lib-a"})); !errors.Is(err, ErrWriteDenied) {
			t.Errorf("expected write denial, got %v", err)
		}
	})
}
