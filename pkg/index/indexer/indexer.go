// Package indexer runs the asynchronous semantic indexing pipeline.
//
// Jobs arrive from the upload and trash paths, queue in a bounded
// channel, and are drained by a small worker pool. Each index job
// pulls the stored bytes, extracts text, chunks it, embeds the chunks
// and upserts them into the library's vector collection. Delivery is
// at least once: chunk ids are deterministic, so a replayed job
// overwrites rather than duplicates.
//
// Indexing is best effort. A failed job is logged and dropped; it
// never fails the upload that produced it.
package indexer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/index/chunker"
	"github.com/shelfd/shelfd/pkg/index/extract"
	"github.com/shelfd/shelfd/pkg/index/meta"
	"github.com/shelfd/shelfd/pkg/index/vector"
)

// JobKind selects the pipeline action.
type JobKind int

const (
	// JobIndex (re)indexes one stored file version.
	JobIndex JobKind = iota
	// JobRemove drops chunks for one path. A path ending in "/" is a
	// directory and clears everything under it; any other path clears
	// exactly that file.
	JobRemove
	// JobRemoveLibrary drops the library's whole collection.
	JobRemoveLibrary
)

// Job is one unit of indexing work.
type Job struct {
	Kind JobKind

	LibraryID string
	FileID    string
	Path      string
	Filename  string

	Bucket      string
	StorageKey  string
	ContentType string
}

// ObjectFetcher pulls stored bytes. Implemented by the object store.
type ObjectFetcher interface {
	DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Embedder turns chunk texts into vectors. Implemented by embed.Client.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the collection-per-library sink.
type VectorStore interface {
	Upsert(ctx context.Context, libraryID string, chunks []vector.Chunk) error
	DeleteByFilter(ctx context.Context, libraryID string, where map[string]string) (int, error)
	DeleteByPathPrefix(ctx context.Context, libraryID, prefix string) (int, error)
	DeleteCollection(ctx context.Context, libraryID string) (int, error)
}

// TextConverter extracts text from binary document formats. A nil
// converter disables conversion; those files are skipped.
type TextConverter interface {
	Convert(ctx context.Context, filename string, data []byte) (string, error)
}

// Config sizes the pipeline.
type Config struct {
	Workers    int           // default 2
	QueueSize  int           // default 256
	JobTimeout time.Duration // default 2m
}

// Indexer owns the queue and worker pool.
type Indexer struct {
	cfg     Config
	objects ObjectFetcher
	embed   Embedder
	vectors VectorStore
	convert TextConverter
	chunk   *chunker.Chunker
	metrics *Metrics

	queue     chan Job
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New assembles the pipeline. Start must be called before Enqueue.
func New(cfg Config, objects ObjectFetcher, embed Embedder, vectors VectorStore, convert TextConverter, chunkCfg chunker.Config, metrics *Metrics) *Indexer {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Indexer{
		cfg:     cfg,
		objects: objects,
		embed:   embed,
		vectors: vectors,
		convert: convert,
		chunk:   chunker.New(chunkCfg),
		metrics: metrics,
		queue:   make(chan Job, cfg.QueueSize),
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled or
// Close drains the queue.
func (ix *Indexer) Start(ctx context.Context) {
	for i := 0; i < ix.cfg.Workers; i++ {
		ix.wg.Add(1)
		go ix.worker(ctx)
	}
}

// Enqueue submits a job. It blocks while the queue is full and gives
// up when ctx expires, so a slow pipeline back-pressures the caller
// instead of growing without bound.
func (ix *Indexer) Enqueue(ctx context.Context, job Job) error {
	select {
	case ix.queue <- job:
		ix.metrics.queueDepth.Set(float64(len(ix.queue)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("indexing queue full: %w", ctx.Err())
	}
}

// Close stops accepting jobs, drains what is queued and waits for the
// workers to finish.
func (ix *Indexer) Close() {
	ix.closeOnce.Do(func() {
		close(ix.queue)
	})
	ix.wg.Wait()
}

func (ix *Indexer) worker(ctx context.Context) {
	defer ix.wg.Done()

	for {
		select {
		case job, ok := <-ix.queue:
			if !ok {
				return
			}
			ix.run(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (ix *Indexer) run(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, ix.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	var err error
	switch job.Kind {
	case JobIndex:
		err = ix.index(jobCtx, job)
	case JobRemove:
		err = ix.remove(jobCtx, job)
	case JobRemoveLibrary:
		err = ix.removeLibrary(jobCtx, job)
	default:
		err = fmt.Errorf("unknown job kind %d", job.Kind)
	}

	ix.metrics.queueDepth.Set(float64(len(ix.queue)))
	if err != nil {
		ix.metrics.failures.Inc()
		logger.Warn("indexing job failed",
			"library_id", job.LibraryID,
			"path", job.Path,
			"kind", int(job.Kind),
			"duration_ms", logger.Duration(start),
			"error", err)
		return
	}
	logger.Debug("indexing job done",
		"library_id", job.LibraryID,
		"path", job.Path,
		"kind", int(job.Kind),
		"duration_ms", logger.Duration(start))
}

// index runs fetch, extract, chunk, embed, upsert for one file.
func (ix *Indexer) index(ctx context.Context, job Job) error {
	text, err := ix.fetchText(ctx, job)
	if err != nil {
		return err
	}
	if text == "" {
		// Nothing to index; make sure stale chunks from a previous
		// version disappear.
		_, _ = ix.vectors.DeleteByFilter(ctx, job.LibraryID, pathFilter(job.Path))
		return nil
	}

	chunks := ix.chunk.Chunk(text, job.Filename, job.ContentType)
	if len(chunks) == 0 {
		_, _ = ix.vectors.DeleteByFilter(ctx, job.LibraryID, pathFilter(job.Path))
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := ix.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	fileMeta := ix.fileMetadata(text, job, chunks)

	records := make([]vector.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) == 0 {
			continue
		}
		records = append(records, vector.Chunk{
			ID:        vector.ChunkDocID(job.LibraryID, job.FileID, job.Path, c.Index),
			Text:      c.Text,
			Embedding: vectors[i],
			Metadata:  chunkMetadata(job, c, fileMeta),
		})
	}
	if len(records) == 0 {
		return fmt.Errorf("all %d chunks failed to embed", len(chunks))
	}

	// An edited file may produce fewer chunks than before; clearing the
	// path first prevents a stale tail from surviving the overwrite.
	// The clear matches the path exactly so sibling files that merely
	// extend this name, like a .bak copy, keep their chunks.
	if _, err := ix.vectors.DeleteByFilter(ctx, job.LibraryID, pathFilter(job.Path)); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}
	if err := ix.vectors.Upsert(ctx, job.LibraryID, records); err != nil {
		return err
	}

	ix.metrics.filesIndexed.Inc()
	ix.metrics.chunksIndexed.Add(float64(len(records)))
	return nil
}

// remove drops chunks for a deleted entry. Directory removals arrive
// with a trailing slash and clear the whole subtree; file removals
// match the path exactly so siblings sharing the name as a prefix
// survive.
func (ix *Indexer) remove(ctx context.Context, job Job) error {
	var n int
	var err error
	if strings.HasSuffix(job.Path, "/") {
		n, err = ix.vectors.DeleteByPathPrefix(ctx, job.LibraryID, job.Path)
	} else {
		n, err = ix.vectors.DeleteByFilter(ctx, job.LibraryID, pathFilter(job.Path))
	}
	if err != nil {
		return err
	}
	ix.metrics.chunksRemoved.Add(float64(n))
	return nil
}

// pathFilter is the exact-match metadata filter for one file path.
func pathFilter(path string) map[string]string {
	return map[string]string{"path": path}
}

func (ix *Indexer) removeLibrary(ctx context.Context, job Job) error {
	n, err := ix.vectors.DeleteCollection(ctx, job.LibraryID)
	if err != nil {
		return err
	}
	ix.metrics.chunksRemoved.Add(float64(n))
	return nil
}

// fetchText downloads the stored bytes and turns them into indexable
// text. Binary formats go through the conversion service when one is
// configured; otherwise they are skipped with empty output.
func (ix *Indexer) fetchText(ctx context.Context, job Job) (string, error) {
	body, err := ix.objects.DownloadFile(ctx, job.Bucket, job.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", job.StorageKey, err)
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", job.StorageKey, err)
	}

	ext := filepath.Ext(job.Filename)
	switch {
	case extract.NeedsConversion(ext):
		if ix.convert == nil {
			logger.Debug("skipping unconvertible file", "path", job.Path)
			return "", nil
		}
		text, err := ix.convert.Convert(ctx, job.Filename, data)
		if err != nil {
			return "", fmt.Errorf("conversion failed: %w", err)
		}
		return text, nil
	default:
		text, err := extract.Normalize(data)
		if err != nil {
			// Binary content without a convertible extension is
			// simply not indexable.
			logger.Debug("skipping binary file", "path", job.Path)
			return "", nil
		}
		return text, nil
	}
}

// fileMetadata extracts per-file facets shared by all chunks.
func (ix *Indexer) fileMetadata(text string, job Job, chunks []chunker.Chunk) map[string]string {
	out := map[string]string{}

	lang := chunks[0].Language
	switch lang {
	case "markdown", "plaintext", "":
		dm := meta.ExtractDoc(text)
		if dm.Title != "" {
			out["title"] = dm.Title
		}
	default:
		cm := meta.ExtractCode(text, job.Filename, lang)
		if len(cm.Frameworks) > 0 {
			out["frameworks"] = strings.Join(cm.Frameworks, ",")
		}
		if cm.HasTests {
			out["has_tests"] = "true"
		}
	}
	return out
}

// chunkMetadata assembles the per-chunk metadata map stored alongside
// the embedding.
func chunkMetadata(job Job, c chunker.Chunk, fileMeta map[string]string) map[string]string {
	md := map[string]string{
		"library_id": job.LibraryID,
		"path":       job.Path,
		"file_name":  job.Filename,
		"chunk_id":   strconv.Itoa(c.Index),
		"line_start": strconv.Itoa(c.LineStart),
		"line_end":   strconv.Itoa(c.LineEnd),
	}
	if job.FileID != "" {
		md["doc_id"] = job.FileID
	}
	if c.Language != "" {
		md["language"] = c.Language
	}
	if c.Type != "" {
		md["chunk_type"] = c.Type
	}
	if c.Name != "" {
		md["name"] = c.Name
	}
	if c.Heading != "" {
		md["heading"] = c.Heading
	}
	for k, v := range fileMeta {
		md[k] = v
	}
	return md
}
