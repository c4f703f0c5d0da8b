package library

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/index/indexer"
	"github.com/shelfd/shelfd/pkg/models"
)

// CreateDirectoryInput carries the creation request. A nil ParentID
// creates at the library root.
type CreateDirectoryInput struct {
	LibraryID string
	ParentID  *string
	Name      string
	ActorID   string
}

// CreateDirectory validates the parent, computes the denormalized
// path and inserts the row. Sibling uniqueness is enforced in the
// store transaction.
func (s *Service) CreateDirectory(ctx context.Context, in CreateDirectoryInput) (*models.Directory, error) {
	if _, err := s.store.GetLibrary(ctx, in.LibraryID); err != nil {
		return nil, err
	}

	path := "/"
	if in.ParentID != nil {
		parent, err := s.store.GetDirectory(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		path = parent.FullPath()
	}

	dir := &models.Directory{
		ID:        uuid.NewString(),
		LibraryID: in.LibraryID,
		ParentID:  in.ParentID,
		Name:      in.Name,
		Path:      path,
		CreatedBy: in.ActorID,
	}
	if _, err := s.store.CreateDirectory(ctx, dir); err != nil {
		return nil, err
	}

	s.invalidateListing(in.LibraryID, in.ParentID)
	s.publish(in.LibraryID, "directory_created", dir)
	s.record(ctx, audit.Entry{
		Action:     audit.ActionDirectoryCreated,
		TargetType: "directory",
		TargetID:   dir.ID,
		LibraryID:  in.LibraryID,
		Details:    map[string]any{"name": dir.Name, "path": dir.FullPath()},
	})
	return dir, nil
}

// GetDirectory returns a live directory.
func (s *Service) GetDirectory(ctx context.Context, id string) (*models.Directory, error) {
	return s.store.GetDirectory(ctx, id)
}

// ListDirectories returns the live children of a parent (nil for the
// library root).
func (s *Service) ListDirectories(ctx context.Context, libraryID string, parentID *string) ([]*models.Directory, error) {
	return s.store.ListDirectories(ctx, libraryID, parentID)
}

// RenameDirectory renames the directory and rewrites every descendant
// path in one transaction.
func (s *Service) RenameDirectory(ctx context.Context, id, newName, actorID string) (*models.Directory, error) {
	dir, err := s.store.RenameDirectory(ctx, id, newName)
	if err != nil {
		return nil, err
	}

	s.invalidateLibrary(dir.LibraryID)
	s.publish(dir.LibraryID, "directory_renamed", dir)
	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionDirectoryRenamed,
		TargetType: "directory",
		TargetID:   id,
		LibraryID:  dir.LibraryID,
		Details:    map[string]any{"name": newName},
	})
	return dir, nil
}

// MoveDirectory reparents the directory. The store rejects moves into
// the directory itself or any descendant.
func (s *Service) MoveDirectory(ctx context.Context, id string, newParentID *string, actorID string) (*models.Directory, error) {
	dir, err := s.store.MoveDirectory(ctx, id, newParentID)
	if err != nil {
		return nil, err
	}

	s.invalidateLibrary(dir.LibraryID)
	s.publish(dir.LibraryID, "directory_moved", dir)
	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionDirectoryMoved,
		TargetType: "directory",
		TargetID:   id,
		LibraryID:  dir.LibraryID,
		Details:    map[string]any{"path": dir.FullPath()},
	})
	return dir, nil
}

// DeleteDirectory soft-deletes the subtree and schedules a best-effort
// de-index of everything under it.
func (s *Service) DeleteDirectory(ctx context.Context, id, actorID string) error {
	dir, err := s.store.GetDirectory(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.SoftDeleteDirectory(ctx, id, actorID, time.Now().UTC()); err != nil {
		return err
	}

	s.invalidateLibrary(dir.LibraryID)
	s.publish(dir.LibraryID, "directory_deleted", map[string]string{"directory_id": id})
	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionDirectoryDeleted,
		TargetType: "directory",
		TargetID:   id,
		LibraryID:  dir.LibraryID,
		Details:    map[string]any{"path": dir.FullPath()},
	})
	s.enqueueIndex(ctx, indexer.Job{
		Kind:      indexer.JobRemove,
		LibraryID: dir.LibraryID,
		Path:      indexPathPrefix(dir.FullPath()),
	})
	return nil
}

// indexPathPrefix converts an absolute namespace path into the prefix
// form stored in chunk metadata (no leading slash, trailing slash to
// avoid matching sibling names that merely share a prefix).
func indexPathPrefix(fullPath string) string {
	p := fullPath
	if len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	if len(p) > 0 && p[len(p)-1] != '/' {
		p += "/"
	}
	return p
}
