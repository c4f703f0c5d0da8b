// Package library is the authoritative state machine over libraries,
// directories, files and the trash.
//
// It owns invariant enforcement: sibling uniqueness, denormalized path
// rewrites, version monotonicity and the upload state machine. The
// metadata store serializes per-entity state in transactions; cache
// invalidation, realtime events, audit records and index jobs all
// happen after commit and are best-effort.
package library

import (
	"context"
	"time"

	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/cache"
	"github.com/shelfd/shelfd/pkg/index/indexer"
	"github.com/shelfd/shelfd/pkg/realtime"
	"github.com/shelfd/shelfd/pkg/store/metadata"
	"github.com/shelfd/shelfd/pkg/store/object"
)

// ObjectStore is the slice of the object store adapter the service
// uses. The full adapter implements it; tests substitute a fake.
type ObjectStore interface {
	CreateBucket(ctx context.Context, name string) (bool, error)
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (*object.UploadResult, error)
	StartMultipartUpload(ctx context.Context, bucket, key, contentType string, metadata map[string]string) (string, error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data []byte) (*object.Part, error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []object.Part) (*object.UploadResult, error)
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error
	CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error
	DeleteObject(ctx context.Context, bucket, key string) error
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expiresIn time.Duration, filename string) (string, error)
}

// Actor identifies the caller of a management operation. Admin grants
// owner-equivalent access to library update and delete.
type Actor struct {
	ID    string
	Admin bool
}

// IndexQueue accepts best-effort indexing jobs. Nil disables indexing.
type IndexQueue interface {
	Enqueue(ctx context.Context, job indexer.Job) error
}

// Config carries the service's tunables.
type Config struct {
	// BucketPrefix is prepended to derived bucket names.
	BucketPrefix string

	// MaxFileSizeBytes is the global per-file ceiling. Libraries may
	// lower it per-library.
	MaxFileSizeBytes int64

	// ChunkSizeBytes is the multipart part size; uploads larger than
	// one part take the multipart path.
	ChunkSizeBytes int64

	// TrashRetention is how long soft-deleted items stay restorable.
	TrashRetention time.Duration

	// UploadExpiry is how long an idle upload registration survives
	// before the sweeper aborts it.
	UploadExpiry time.Duration

	// PresignedURLExpiry is the validity window of download URLs.
	PresignedURLExpiry time.Duration
}

func (c Config) withDefaults() Config {
	if c.BucketPrefix == "" {
		c.BucketPrefix = "shelfd"
	}
	if c.MaxFileSizeBytes <= 0 {
		c.MaxFileSizeBytes = 5 << 30
	}
	if c.ChunkSizeBytes <= 0 {
		c.ChunkSizeBytes = 8 << 20
	}
	if c.TrashRetention <= 0 {
		c.TrashRetention = 30 * 24 * time.Hour
	}
	if c.UploadExpiry <= 0 {
		c.UploadExpiry = 24 * time.Hour
	}
	if c.PresignedURLExpiry <= 0 {
		c.PresignedURLExpiry = 15 * time.Minute
	}
	return c
}

// Service bundles the dependencies shared by every operation.
type Service struct {
	store   metadata.Store
	objects ObjectStore
	cache   *cache.Cache
	bus     *realtime.Bus
	audit   *audit.Recorder
	index   IndexQueue
	cfg     Config

	uploads *uploadRegistry
}

// NewService wires the service. bus, audit and index may be nil; cache
// may not.
func NewService(store metadata.Store, objects ObjectStore, c *cache.Cache, bus *realtime.Bus, rec *audit.Recorder, index IndexQueue, cfg Config) *Service {
	return &Service{
		store:   store,
		objects: objects,
		cache:   c,
		bus:     bus,
		audit:   rec,
		index:   index,
		cfg:     cfg.withDefaults(),
		uploads: newUploadRegistry(),
	}
}

// publish emits a library-scoped realtime event when a bus is wired.
func (s *Service) publish(libraryID, eventType string, data any) {
	if s.bus != nil {
		s.bus.Publish(realtime.LibraryChannel(libraryID), eventType, data)
	}
}

// record appends an audit entry when a recorder is wired.
func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}

// Cache key helpers. Invalidation uses glob patterns over these.
func libraryKey(id string) string { return "library:" + id }

func filesKey(libraryID, dir string) string {
	if dir == "" {
		dir = "root"
	}
	return "files:" + libraryID + ":" + dir
}

// invalidateListing drops one directory listing from the cache.
func (s *Service) invalidateListing(libraryID string, directoryID *string) {
	dir := ""
	if directoryID != nil {
		dir = *directoryID
	}
	s.cache.Delete(filesKey(libraryID, dir))
}

// invalidateLibrary drops the library row and every listing under it.
func (s *Service) invalidateLibrary(libraryID string) {
	s.cache.Delete(libraryKey(libraryID))
	s.cache.Invalidate("files:" + libraryID + ":*")
}
