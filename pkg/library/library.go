package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/index/indexer"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/store/object"
)

// CreateLibraryInput carries the creation request.
type CreateLibraryInput struct {
	Name             string
	Description      string
	OwnerID          string
	MCPWriteEnabled  bool
	MaxFileSizeBytes *int64
}

// CreateLibrary inserts the library row and allocates its bucket. The
// bucket name derives from the generated id and never changes.
func (s *Service) CreateLibrary(ctx context.Context, in CreateLibraryInput) (*models.Library, error) {
	id := uuid.NewString()
	lib := &models.Library{
		ID:               id,
		Name:             in.Name,
		Description:      in.Description,
		BucketName:       object.BucketName(s.cfg.BucketPrefix, id),
		OwnerID:          in.OwnerID,
		CreatedBy:        in.OwnerID,
		MCPWriteEnabled:  in.MCPWriteEnabled,
		MaxFileSizeBytes: in.MaxFileSizeBytes,
	}

	if _, err := s.store.CreateLibrary(ctx, lib); err != nil {
		return nil, err
	}

	if _, err := s.objects.CreateBucket(ctx, lib.BucketName); err != nil {
		// The row exists but the bucket does not; uploads self-heal
		// missing buckets, so log and continue.
		logger.WarnCtx(ctx, "bucket allocation failed, deferring to upload self-heal",
			"library_id", lib.ID, "bucket", lib.BucketName, "error", err)
	}

	s.record(ctx, audit.Entry{
		Action:     audit.ActionLibraryCreated,
		TargetType: "library",
		TargetID:   lib.ID,
		LibraryID:  lib.ID,
		Details:    map[string]any{"name": lib.Name, "bucket": lib.BucketName},
	})
	return lib, nil
}

// GetLibrary returns a live library, reading through the cache.
func (s *Service) GetLibrary(ctx context.Context, id string) (*models.Library, error) {
	if v, ok := s.cache.Get(libraryKey(id)); ok {
		if lib, ok := v.(*models.Library); ok {
			return lib, nil
		}
	}

	lib, err := s.store.GetLibrary(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(libraryKey(id), lib, 0)
	return lib, nil
}

// ListLibraries returns all live libraries.
func (s *Service) ListLibraries(ctx context.Context) ([]*models.Library, error) {
	return s.store.ListLibraries(ctx)
}

// ListLibrariesByOwner returns the live libraries owned by a user.
func (s *Service) ListLibrariesByOwner(ctx context.Context, ownerID string) ([]*models.Library, error) {
	return s.store.ListLibrariesByOwner(ctx, ownerID)
}

// UpdateLibraryInput carries mutable library fields. Nil fields keep
// their current value.
type UpdateLibraryInput struct {
	Name             *string
	Description      *string
	MCPWriteEnabled  *bool
	MaxFileSizeBytes *int64
}

// UpdateLibrary applies the update. Only the owner or an admin may
// update; the bucket name is immutable.
func (s *Service) UpdateLibrary(ctx context.Context, id string, actor Actor, in UpdateLibraryInput) (*models.Library, error) {
	lib, err := s.store.GetLibrary(ctx, id)
	if err != nil {
		return nil, err
	}
	if lib.OwnerID != actor.ID && !actor.Admin {
		return nil, fmt.Errorf("only the owner or an admin may update library %s: %w", id, models.ErrAccessDenied)
	}

	if in.Name != nil {
		lib.Name = *in.Name
	}
	if in.Description != nil {
		lib.Description = *in.Description
	}
	if in.MCPWriteEnabled != nil {
		lib.MCPWriteEnabled = *in.MCPWriteEnabled
	}
	if in.MaxFileSizeBytes != nil {
		lib.MaxFileSizeBytes = in.MaxFileSizeBytes
	}

	if err := s.store.UpdateLibrary(ctx, lib); err != nil {
		return nil, err
	}

	s.cache.Delete(libraryKey(id))
	s.record(ctx, audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionLibraryUpdated,
		TargetType: "library",
		TargetID:   id,
		LibraryID:  id,
	})
	return lib, nil
}

// DeleteLibrary soft-deletes the library. The bucket stays; only a
// permanent trash purge destroys blobs. The vector collection is
// dropped asynchronously.
func (s *Service) DeleteLibrary(ctx context.Context, id string, actor Actor) error {
	lib, err := s.store.GetLibrary(ctx, id)
	if err != nil {
		return err
	}
	if lib.OwnerID != actor.ID && !actor.Admin {
		return fmt.Errorf("only the owner or an admin may delete library %s: %w", id, models.ErrAccessDenied)
	}

	if err := s.store.SoftDeleteLibrary(ctx, id, actor.ID, time.Now().UTC()); err != nil {
		return err
	}

	s.invalidateLibrary(id)
	s.publish(id, "library_deleted", map[string]string{"library_id": id})
	s.record(ctx, audit.Entry{
		ActorID:    actor.ID,
		Action:     audit.ActionLibraryDeleted,
		TargetType: "library",
		TargetID:   id,
		LibraryID:  id,
	})
	s.enqueueIndex(ctx, indexer.Job{Kind: indexer.JobRemoveLibrary, LibraryID: id})
	return nil
}

// enqueueIndex submits an indexing job when a queue is wired. Failures
// are logged; indexing never fails the operation that triggered it.
func (s *Service) enqueueIndex(ctx context.Context, job indexer.Job) {
	if s.index == nil {
		return
	}
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.index.Enqueue(enqueueCtx, job); err != nil {
		logger.WarnCtx(ctx, "failed to enqueue index job",
			"library_id", job.LibraryID, "path", job.Path, "error", err)
	}
}
