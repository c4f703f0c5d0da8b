package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shelfd/shelfd/pkg/index/vector"
	"github.com/shelfd/shelfd/pkg/models"
)

// LibraryStore is the slice of the metadata layer the tools need.
type LibraryStore interface {
	GetLibrary(ctx context.Context, id string) (*models.Library, error)
	ListLibraries(ctx context.Context) ([]*models.Library, error)
}

// VectorStore is the slice of the vector adapter the tools need.
type VectorStore interface {
	Search(ctx context.Context, libraryID string, queryEmbedding []float32, nResults int, where map[string]string) ([]vector.SearchResult, error)
	Upsert(ctx context.Context, libraryID string, chunks []vector.Chunk) error
	Get(ctx context.Context, libraryID, id string) (vector.Chunk, bool, error)
	DeleteByFilter(ctx context.Context, libraryID string, where map[string]string) (int, error)
	DeleteByPathPrefix(ctx context.Context, libraryID, prefix string) (int, error)
	DeleteCollection(ctx context.Context, libraryID string) (int, error)
}

// Embedder produces query embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// defaultLowConfidence flags queries whose best hit scores below it.
const defaultLowConfidence = 0.3

// VectorTools implements the four vector.* tools.
type VectorTools struct {
	libraries LibraryStore
	vectors   VectorStore
	embed     Embedder
	policy    *PolicyEngine
	metrics   *Metrics
	threshold float64
}

// NewVectorTools wires the vector tool set. A non-positive threshold
// falls back to the default.
func NewVectorTools(libraries LibraryStore, vectors VectorStore, embed Embedder, policy *PolicyEngine, metrics *Metrics, lowConfidenceThreshold float64) *VectorTools {
	if lowConfidenceThreshold <= 0 {
		lowConfidenceThreshold = defaultLowConfidence
	}
	return &VectorTools{
		libraries: libraries,
		vectors:   vectors,
		embed:     embed,
		policy:    policy,
		metrics:   metrics,
		threshold: lowConfidenceThreshold,
	}
}

// Register adds the vector tools to the registry.
func (t *VectorTools) Register(reg *Registry) error {
	tools := []Tool{
		{
			Name:        "vector.query",
			Description: "Semantic search over indexed library content.",
			InputSchema: schemaFor(&QueryArgs{}),
			Handler:     t.query,
		},
		{
			Name:        "vector.upsert_documents",
			Description: "Insert or overwrite document chunks in a library's index.",
			InputSchema: schemaFor(&UpsertArgs{}),
			Handler:     t.upsert,
		},
		{
			Name:        "vector.get",
			Description: "Fetch indexed chunks by id.",
			InputSchema: schemaFor(&GetArgs{}),
			Handler:     t.get,
		},
		{
			Name:        "vector.delete",
			Description: "Delete indexed chunks by document, path prefix or whole library.",
			InputSchema: schemaFor(&DeleteArgs{}),
			Handler:     t.delete,
		},
	}
	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// readable returns the ids of libraries the agent may read.
func (t *VectorTools) readable(ctx context.Context, agentID string) ([]string, error) {
	libs, err := t.libraries.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, lib := range libs {
		if t.policy.CanRead(agentID, lib.ID) == nil {
			ids = append(ids, lib.ID)
		}
	}
	return ids, nil
}

// writable returns the libraries the agent may write to.
func (t *VectorTools) writable(ctx context.Context, agentID string) ([]*models.Library, error) {
	libs, err := t.libraries.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Library
	for _, lib := range libs {
		if t.policy.CanWrite(agentID, lib) == nil {
			out = append(out, lib)
		}
	}
	return out, nil
}

// QueryArgs are the vector.query inputs.
type QueryArgs struct {
	Text      string `json:"text" jsonschema:"required"`
	TopK      int    `json:"top_k,omitempty"`
	LibraryID string `json:"library_id,omitempty"`
	DocID     string `json:"doc_id,omitempty"`
	Path      string `json:"path,omitempty"`
	DocType   string `json:"doc_type,omitempty"`
	Language  string `json:"language,omitempty"`
	ChunkType string `json:"chunk_type,omitempty"`
	Tags      string `json:"tags,omitempty"`
}

// QueryHit is one scored result.
type QueryHit struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// QueryResult is the vector.query output.
type QueryResult struct {
	Results       []QueryHit `json:"results"`
	LowConfidence bool       `json:"low_confidence"`
	QueryID       string     `json:"query_id"`
}

func (a *QueryArgs) where() map[string]string {
	where := map[string]string{}
	if a.DocID != "" {
		where["doc_id"] = a.DocID
	}
	if a.Path != "" {
		where["path"] = a.Path
	}
	if a.DocType != "" {
		where["doc_type"] = a.DocType
	}
	if a.Language != "" {
		where["language"] = a.Language
	}
	if a.ChunkType != "" {
		where["chunk_type"] = a.ChunkType
	}
	if a.Tags != "" {
		where["tags"] = a.Tags
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

func (t *VectorTools) query(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	start := time.Now()

	var args QueryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Text) == "" {
		return nil, errors.New("text is required")
	}
	topK := args.TopK
	if topK == 0 {
		topK = 8
	}
	if topK < 1 || topK > 50 {
		return nil, fmt.Errorf("top_k %d out of range [1,50]", topK)
	}

	var libraryIDs []string
	if args.LibraryID != "" {
		if err := t.policy.CanRead(agentID, args.LibraryID); err != nil {
			return nil, err
		}
		libraryIDs = []string{args.LibraryID}
	} else {
		ids, err := t.readable(ctx, agentID)
		if err != nil {
			return nil, err
		}
		libraryIDs = ids
	}

	embedding, err := t.embed.Embed(ctx, args.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	where := args.where()

	var mu sync.Mutex
	var merged []vector.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range libraryIDs {
		g.Go(func() error {
			hits, err := t.vectors.Search(gctx, id, embedding, topK, where)
			if err != nil {
				return fmt.Errorf("search in library %s failed: %w", id, err)
			}
			mu.Lock()
			merged = append(merged, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}

	results := make([]QueryHit, 0, len(merged))
	lowConfidence := true
	for _, r := range merged {
		if r.Score >= t.threshold {
			lowConfidence = false
		}
		results = append(results, QueryHit{ID: r.ID, Text: r.Text, Score: r.Score, Metadata: r.Metadata})
	}

	t.metrics.observeQuery(time.Since(start), len(results), lowConfidence)
	return &QueryResult{
		Results:       results,
		LowConfidence: lowConfidence,
		QueryID:       uuid.NewString(),
	}, nil
}

// UpsertArgs are the vector.upsert_documents inputs. chunks[i] pairs
// with metadata[i]; metadata requires path, chunk_id and library_id.
type UpsertArgs struct {
	Chunks   []string            `json:"chunks" jsonschema:"required"`
	Metadata []map[string]string `json:"metadata" jsonschema:"required"`
}

// ItemError reports one failed item of a partial-success operation.
type ItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// UpsertResult is the vector.upsert_documents output. Partial failure
// is reported, never thrown.
type UpsertResult struct {
	UpsertedCount int         `json:"upserted_count"`
	IDs           []string    `json:"ids"`
	Errors        []ItemError `json:"errors,omitempty"`
}

type upsertItem struct {
	index int
	chunk vector.Chunk
}

func (t *VectorTools) upsert(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args UpsertArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if len(args.Chunks) == 0 {
		return nil, errors.New("chunks is required")
	}
	if len(args.Chunks) != len(args.Metadata) {
		return nil, fmt.Errorf("chunks and metadata length mismatch: %d vs %d", len(args.Chunks), len(args.Metadata))
	}

	result := &UpsertResult{IDs: []string{}}
	fail := func(i int, err error) {
		result.Errors = append(result.Errors, ItemError{Index: i, Error: err.Error()})
	}

	// Validate and embed item by item, grouping survivors by library.
	byLibrary := make(map[string][]upsertItem)
	for i, text := range args.Chunks {
		meta := args.Metadata[i]
		path, chunkID, libraryID := meta["path"], meta["chunk_id"], meta["library_id"]
		if path == "" || chunkID == "" || libraryID == "" {
			fail(i, errors.New("metadata requires path, chunk_id and library_id"))
			continue
		}
		index, err := strconv.Atoi(chunkID)
		if err != nil {
			fail(i, fmt.Errorf("chunk_id must be a chunk index: %w", err))
			continue
		}

		embedding, err := t.embed.Embed(ctx, text)
		if err != nil {
			fail(i, fmt.Errorf("embedding failed: %w", err))
			continue
		}

		byLibrary[libraryID] = append(byLibrary[libraryID], upsertItem{
			index: i,
			chunk: vector.Chunk{
				ID:        vector.ChunkDocID(libraryID, meta["doc_id"], path, index),
				Text:      text,
				Embedding: embedding,
				Metadata:  meta,
			},
		})
	}

	// Deterministic library order keeps the output stable.
	libraryIDs := make([]string, 0, len(byLibrary))
	for id := range byLibrary {
		libraryIDs = append(libraryIDs, id)
	}
	sort.Strings(libraryIDs)

	for _, libraryID := range libraryIDs {
		items := byLibrary[libraryID]
		failAll := func(err error) {
			for _, item := range items {
				fail(item.index, err)
			}
		}

		lib, err := t.libraries.GetLibrary(ctx, libraryID)
		if err != nil {
			failAll(err)
			continue
		}
		if err := t.policy.CanWrite(agentID, lib); err != nil {
			failAll(err)
			continue
		}

		chunks := make([]vector.Chunk, 0, len(items))
		for _, item := range items {
			chunks = append(chunks, item.chunk)
		}
		if err := t.vectors.Upsert(ctx, libraryID, chunks); err != nil {
			failAll(err)
			continue
		}

		result.UpsertedCount += len(items)
		for _, item := range items {
			result.IDs = append(result.IDs, item.chunk.ID)
		}
	}

	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Index < result.Errors[j].Index })
	return result, nil
}

// GetArgs are the vector.get inputs.
type GetArgs struct {
	IDs []string `json:"ids" jsonschema:"required"`
}

// ChunkOut is one fetched chunk.
type ChunkOut struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// GetResult is the vector.get output. Missing ids are reported, not
// fatal.
type GetResult struct {
	Chunks []ChunkOut  `json:"chunks"`
	Errors []ItemError `json:"errors,omitempty"`
}

func (t *VectorTools) get(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args GetArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if len(args.IDs) == 0 {
		return nil, errors.New("ids is required")
	}

	result := &GetResult{Chunks: []ChunkOut{}}
	for i, id := range args.IDs {
		// Chunk ids are {library_id}:{doc}:chunk:{n}.
		libraryID, _, ok := strings.Cut(id, ":")
		if !ok {
			result.Errors = append(result.Errors, ItemError{Index: i, Error: "malformed chunk id"})
			continue
		}
		if err := t.policy.CanRead(agentID, libraryID); err != nil {
			result.Errors = append(result.Errors, ItemError{Index: i, Error: err.Error()})
			continue
		}

		chunk, found, err := t.vectors.Get(ctx, libraryID, id)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{Index: i, Error: err.Error()})
			continue
		}
		if !found {
			result.Errors = append(result.Errors, ItemError{Index: i, Error: "not found"})
			continue
		}
		result.Chunks = append(result.Chunks, ChunkOut{ID: chunk.ID, Text: chunk.Text, Metadata: chunk.Metadata})
	}
	return result, nil
}

// DeleteArgs are the vector.delete inputs. At least one selector is
// required.
type DeleteArgs struct {
	DocID      string `json:"doc_id,omitempty"`
	PathPrefix string `json:"path_prefix,omitempty"`
	LibraryID  string `json:"library_id,omitempty"`
}

// DeleteResult is the vector.delete output.
type DeleteResult struct {
	DeletedCount int `json:"deleted_count"`
}

func (t *VectorTools) delete(ctx context.Context, agentID string, raw json.RawMessage) (any, error) {
	var args DeleteArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.DocID == "" && args.PathPrefix == "" && args.LibraryID == "" {
		return nil, errors.New("one of doc_id, path_prefix or library_id is required")
	}

	// library_id alone drops the whole collection.
	if args.LibraryID != "" && args.DocID == "" && args.PathPrefix == "" {
		lib, err := t.libraries.GetLibrary(ctx, args.LibraryID)
		if err != nil {
			return nil, err
		}
		if err := t.policy.CanWrite(agentID, lib); err != nil {
			return nil, err
		}
		count, err := t.vectors.DeleteCollection(ctx, args.LibraryID)
		if err != nil {
			return nil, err
		}
		return &DeleteResult{DeletedCount: count}, nil
	}

	var libs []*models.Library
	if args.LibraryID != "" {
		lib, err := t.libraries.GetLibrary(ctx, args.LibraryID)
		if err != nil {
			return nil, err
		}
		if err := t.policy.CanWrite(agentID, lib); err != nil {
			return nil, err
		}
		libs = []*models.Library{lib}
	} else {
		var err error
		libs, err = t.writable(ctx, agentID)
		if err != nil {
			return nil, err
		}
	}

	deleted := 0
	for _, lib := range libs {
		if args.DocID != "" {
			n, err := t.vectors.DeleteByFilter(ctx, lib.ID, map[string]string{"doc_id": args.DocID})
			if err != nil {
				return nil, err
			}
			deleted += n
		}
		if args.PathPrefix != "" {
			n, err := t.vectors.DeleteByPathPrefix(ctx, lib.ID, args.PathPrefix)
			if err != nil {
				return nil, err
			}
			deleted += n
		}
	}
	return &DeleteResult{DeletedCount: deleted}, nil
}
