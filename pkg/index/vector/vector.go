// Package vector adapts the embedded chromem vector database to the
// collection-per-library layout used by semantic search.
//
// Each library owns exactly one collection, named deterministically
// from the library id. Chunk ids are deterministic too, so repeated
// indexing of the same file overwrites instead of duplicating.
package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Embedder produces a vector for a text. Implemented by embed.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store wraps a chromem database and caches one collection handle per
// library.
type Store struct {
	db    *chromem.DB
	embed chromem.EmbeddingFunc

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// New opens the vector store. An empty path keeps collections in
// memory only; a path makes them persistent across restarts.
func New(path string, compress bool, embedder Embedder) (*Store, error) {
	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store at %s: %w", path, err)
		}
	}

	return &Store{
		db:          db,
		embed:       chromem.EmbeddingFunc(embedder.Embed),
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// CollectionName derives the per-library collection name: "lib_"
// followed by the first 16 hex characters of the library id.
func CollectionName(libraryID string) string {
	id := strings.ToLower(strings.ReplaceAll(libraryID, "-", ""))
	if len(id) > 16 {
		id = id[:16]
	}
	return "lib_" + id
}

// ChunkDocID builds the deterministic chunk identity. When the caller
// has no stable document id the path hashes into one, so the same
// (library, document, chunk index) always resolves to the same id.
func ChunkDocID(libraryID, docID, path string, chunkIndex int) string {
	key := docID
	if key == "" {
		sum := sha256.Sum256([]byte(path))
		key = hex.EncodeToString(sum[:])[:16]
	}
	return libraryID + ":" + key + ":chunk:" + strconv.Itoa(chunkIndex)
}

// collection returns the library's collection, creating it on first
// use. Handles are cached; chromem's own lookup is idempotent so a
// race at worst creates the handle twice with the same backing data.
func (s *Store) collection(libraryID string) (*chromem.Collection, error) {
	name := CollectionName(libraryID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, nil
	}

	c, err := s.db.GetOrCreateCollection(name, map[string]string{"library_id": libraryID}, s.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

// Chunk is one embedded chunk ready for upsert.
type Chunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// Upsert writes chunks into the library's collection. Existing ids are
// overwritten, so re-indexing a file is idempotent.
func (s *Store) Upsert(ctx context.Context, libraryID string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	col, err := s.collection(libraryID)
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: c.Embedding,
			Metadata:  c.Metadata,
		})
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to upsert %d chunks into %s: %w", len(chunks), CollectionName(libraryID), err)
	}
	return nil
}

// Get fetches a chunk by id. The second return is false when the id is
// not present.
func (s *Store) Get(ctx context.Context, libraryID, id string) (Chunk, bool, error) {
	col, err := s.collection(libraryID)
	if err != nil {
		return Chunk{}, false, err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		// chromem reports a missing id as an error, not a zero value.
		return Chunk{}, false, nil
	}

	return Chunk{
		ID:        doc.ID,
		Text:      doc.Content,
		Embedding: doc.Embedding,
		Metadata:  doc.Metadata,
	}, true, nil
}

// Count returns the number of chunks in the library's collection.
func (s *Store) Count(libraryID string) (int, error) {
	col, err := s.collection(libraryID)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}
