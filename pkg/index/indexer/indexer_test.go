package indexer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shelfd/shelfd/pkg/index/chunker"
	"github.com/shelfd/shelfd/pkg/index/vector"
)

type fakeObjects struct {
	data map[string][]byte
}

func (f *fakeObjects) DownloadFile(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	b, ok := f.data[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: not found", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(t, "unembeddable") {
			out[i] = []float32{}
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeVectors struct {
	mu      sync.Mutex
	upserts map[string][]vector.Chunk
	cleared []string
	dropped []string
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{upserts: map[string][]vector.Chunk{}}
}

func (f *fakeVectors) Upsert(_ context.Context, libraryID string, chunks []vector.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts[libraryID] = append(f.upserts[libraryID], chunks...)
	return nil
}

func (f *fakeVectors) DeleteByFilter(_ context.Context, libraryID string, where map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, libraryID+":="+where["path"])
	n := 0
	kept := f.upserts[libraryID][:0]
	for _, c := range f.upserts[libraryID] {
		if c.Metadata["path"] == where["path"] {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.upserts[libraryID] = kept
	return n, nil
}

func (f *fakeVectors) DeleteByPathPrefix(_ context.Context, libraryID, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, libraryID+":"+prefix)
	n := 0
	kept := f.upserts[libraryID][:0]
	for _, c := range f.upserts[libraryID] {
		if strings.HasPrefix(c.Metadata["path"], prefix) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.upserts[libraryID] = kept
	return n, nil
}

func (f *fakeVectors) DeleteCollection(_ context.Context, libraryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.upserts[libraryID])
	delete(f.upserts, libraryID)
	f.dropped = append(f.dropped, libraryID)
	return n, nil
}

const readmeText = `# Widget Guide

The widget subsystem handles frobnication of incoming requests and is
configured through the usual yaml file in the config directory.

## Tuning

Increase the worker count when the queue depth gauge stays high for
more than a few minutes at a time.
`

func newTestIndexer(objects *fakeObjects, vectors *fakeVectors) *Indexer {
	return New(Config{Workers: 1, QueueSize: 8}, objects, fakeEmbedder{}, vectors, nil, chunker.Config{}, nil)
}

func TestIndexJobThroughWorkers(t *testing.T) {
	objects := &fakeObjects{data: map[string][]byte{
		"bkt/lib-1/docs/readme.md_v1": []byte(readmeText),
	}}
	vectors := newFakeVectors()
	ix := newTestIndexer(objects, vectors)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ix.Start(ctx)

	job := Job{
		Kind:       JobIndex,
		LibraryID:  "lib-1",
		FileID:     "file-9",
		Path:       "docs/readme.md",
		Filename:   "readme.md",
		Bucket:     "bkt",
		StorageKey: "lib-1/docs/readme.md_v1",
	}
	if err := ix.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	ix.Close()

	got := vectors.upserts["lib-1"]
	if len(got) == 0 {
		t.Fatal("expected chunks upserted")
	}
	first := got[0]
	if first.ID != "lib-1:file-9:chunk:0" {
		t.Errorf("unexpected chunk id %q", first.ID)
	}
	if first.Metadata["path"] != "docs/readme.md" || first.Metadata["chunk_id"] != "0" {
		t.Errorf("unexpected metadata %v", first.Metadata)
	}
	if first.Metadata["doc_id"] != "file-9" || first.Metadata["library_id"] != "lib-1" {
		t.Errorf("identity metadata missing: %v", first.Metadata)
	}
	if first.Metadata["title"] != "Widget Guide" {
		t.Errorf("expected doc title facet, got %v", first.Metadata)
	}
	if len(first.Embedding) != 3 {
		t.Errorf("expected embedding attached, got %v", first.Embedding)
	}
}

func TestReindexClearsPath(t *testing.T) {
	objects := &fakeObjects{data: map[string][]byte{
		"bkt/lib-1/docs/readme.md_v2": []byte(readmeText),
	}}
	vectors := newFakeVectors()
	ix := newTestIndexer(objects, vectors)

	job := Job{
		Kind:       JobIndex,
		LibraryID:  "lib-1",
		FileID:     "file-9",
		Path:       "docs/readme.md",
		Filename:   "readme.md",
		Bucket:     "bkt",
		StorageKey: "lib-1/docs/readme.md_v2",
	}

	if err := ix.index(context.Background(), job); err != nil {
		t.Fatalf("first index failed: %v", err)
	}
	firstCount := len(vectors.upserts["lib-1"])

	if err := ix.index(context.Background(), job); err != nil {
		t.Fatalf("second index failed: %v", err)
	}
	if got := len(vectors.upserts["lib-1"]); got != firstCount {
		t.Errorf("reindex must replace, not append: %d then %d", firstCount, got)
	}
	if len(vectors.cleared) != 2 {
		t.Errorf("expected path cleared on each index, got %v", vectors.cleared)
	}
}

func TestRemoveJobs(t *testing.T) {
	vectors := newFakeVectors()
	vectors.upserts["lib-1"] = []vector.Chunk{
		{ID: "a", Metadata: map[string]string{"path": "docs/a.md"}},
		{ID: "b", Metadata: map[string]string{"path": "src/b.go"}},
	}
	ix := newTestIndexer(&fakeObjects{}, vectors)

	if err := ix.remove(context.Background(), Job{LibraryID: "lib-1", Path: "docs/"}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(vectors.upserts["lib-1"]) != 1 {
		t.Errorf("expected docs/ chunks removed, got %v", vectors.upserts["lib-1"])
	}

	if err := ix.removeLibrary(context.Background(), Job{LibraryID: "lib-1"}); err != nil {
		t.Fatalf("removeLibrary failed: %v", err)
	}
	if len(vectors.dropped) != 1 || vectors.dropped[0] != "lib-1" {
		t.Errorf("expected collection dropped, got %v", vectors.dropped)
	}
}

func TestRemoveFileSparesPrefixSiblings(t *testing.T) {
	vectors := newFakeVectors()
	vectors.upserts["lib-1"] = []vector.Chunk{
		{ID: "a", Metadata: map[string]string{"path": "reports/q1.pdf"}},
		{ID: "b", Metadata: map[string]string{"path": "reports/q1.pdf.bak"}},
	}
	ix := newTestIndexer(&fakeObjects{}, vectors)

	// A file removal clears that path exactly; a sibling whose name
	// merely extends it must keep its chunks.
	if err := ix.remove(context.Background(), Job{LibraryID: "lib-1", Path: "reports/q1.pdf"}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	left := vectors.upserts["lib-1"]
	if len(left) != 1 || left[0].Metadata["path"] != "reports/q1.pdf.bak" {
		t.Errorf("expected only the .bak sibling left, got %v", left)
	}
}

func TestBinaryFileSkipped(t *testing.T) {
	objects := &fakeObjects{data: map[string][]byte{
		"bkt/lib-1/img.png_v1": {0x89, 0x50, 0x4E, 0x47, 0x00, 0x01},
	}}
	vectors := newFakeVectors()
	ix := newTestIndexer(objects, vectors)

	job := Job{
		Kind:       JobIndex,
		LibraryID:  "lib-1",
		Path:       "img.png",
		Filename:   "img.png",
		Bucket:     "bkt",
		StorageKey: "lib-1/img.png_v1",
	}
	if err := ix.index(context.Background(), job); err != nil {
		t.Fatalf("binary skip must not error: %v", err)
	}
	if len(vectors.upserts["lib-1"]) != 0 {
		t.Errorf("expected nothing indexed, got %v", vectors.upserts["lib-1"])
	}
}

func TestFetchFailureSurfaces(t *testing.T) {
	ix := newTestIndexer(&fakeObjects{}, newFakeVectors())

	err := ix.index(context.Background(), Job{
		Kind:       JobIndex,
		LibraryID:  "lib-1",
		Path:       "missing.md",
		Filename:   "missing.md",
		Bucket:     "bkt",
		StorageKey: "nope",
	})
	if err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestEnqueueBacksOffWhenFull(t *testing.T) {
	// No workers started, queue of 1: the second enqueue must respect
	// the context deadline instead of blocking forever.
	ix := New(Config{Workers: 1, QueueSize: 1}, &fakeObjects{}, fakeEmbedder{}, newFakeVectors(), nil, chunker.Config{}, nil)

	if err := ix.Enqueue(context.Background(), Job{}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ix.Enqueue(ctx, Job{}); err == nil {
		t.Fatal("expected enqueue to fail on full queue")
	}
}
