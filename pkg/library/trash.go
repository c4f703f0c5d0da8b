package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/index/indexer"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/store/metadata"
)

// Trash item types.
const (
	TrashItemFile      = "file"
	TrashItemDirectory = "directory"
)

// ListTrash returns a library's restorable items with their expiry.
func (s *Service) ListTrash(ctx context.Context, libraryID string) ([]*metadata.TrashItem, error) {
	return s.store.ListTrash(ctx, libraryID, s.cfg.TrashRetention)
}

// RestoreInput selects the item and an optional restore target.
type RestoreInput struct {
	ItemType string
	ItemID   string
	ActorID  string

	// ToOriginal falls back to the library root when the original
	// parent is gone. NewParentID overrides the target entirely.
	ToOriginal  bool
	NewParentID *string
}

// Restore un-deletes a trashed item. Expired items are refused. For
// directories the restore cascades to every descendant deleted in the
// same instant.
func (s *Service) Restore(ctx context.Context, in RestoreInput) error {
	switch in.ItemType {
	case TrashItemFile:
		return s.restoreFile(ctx, in)
	case TrashItemDirectory:
		return s.restoreDirectory(ctx, in)
	default:
		return fmt.Errorf("unknown trash item type %q", in.ItemType)
	}
}

// checkNotExpired refuses restores past the retention window.
func (s *Service) checkNotExpired(deletedAt *time.Time) error {
	if deletedAt == nil {
		return models.ErrNotInTrash
	}
	if time.Since(*deletedAt) > s.cfg.TrashRetention {
		return models.ErrTrashItemExpired
	}
	return nil
}

// resolveRestoreTarget picks the parent the item reattaches to.
func (s *Service) resolveRestoreTarget(ctx context.Context, originalParent *string, toOriginal bool, newParentID *string) (*string, string, error) {
	if newParentID != nil {
		dir, err := s.store.GetDirectory(ctx, *newParentID)
		if err != nil {
			return nil, "", err
		}
		return newParentID, dir.FullPath(), nil
	}

	if originalParent == nil {
		return nil, "/", nil
	}

	dir, err := s.store.GetDirectory(ctx, *originalParent)
	if err == nil {
		return originalParent, dir.FullPath(), nil
	}
	if errors.Is(err, models.ErrDirectoryNotFound) && toOriginal {
		// Original parent is gone; fall back to the library root.
		return nil, "/", nil
	}
	return nil, "", err
}

func (s *Service) restoreFile(ctx context.Context, in RestoreInput) error {
	file, err := s.store.GetAnyFile(ctx, in.ItemID)
	if err != nil {
		return err
	}
	if !file.IsDeleted {
		return models.ErrNotInTrash
	}
	if err := s.checkNotExpired(file.DeletedAt); err != nil {
		return err
	}

	parentID, parentPath, err := s.resolveRestoreTarget(ctx, file.DirectoryID, in.ToOriginal, in.NewParentID)
	if err != nil {
		return err
	}

	restored, err := s.store.RestoreFile(ctx, in.ItemID, parentID, parentPath)
	if err != nil {
		return err
	}

	s.invalidateLibrary(file.LibraryID)
	s.publish(file.LibraryID, "file_restored", restored)
	s.record(ctx, audit.Entry{
		ActorID:    in.ActorID,
		Action:     audit.ActionTrashRestored,
		TargetType: "file",
		TargetID:   in.ItemID,
		LibraryID:  file.LibraryID,
		Details:    map[string]any{"path": restored.FullPath()},
	})
	s.enqueueFileIndex(ctx, restored)
	return nil
}

func (s *Service) restoreDirectory(ctx context.Context, in RestoreInput) error {
	dir, err := s.store.GetAnyDirectory(ctx, in.ItemID)
	if err != nil {
		return err
	}
	if !dir.IsDeleted {
		return models.ErrNotInTrash
	}
	if err := s.checkNotExpired(dir.DeletedAt); err != nil {
		return err
	}

	parentID, parentPath, err := s.resolveRestoreTarget(ctx, dir.ParentID, in.ToOriginal, in.NewParentID)
	if err != nil {
		return err
	}

	restored, err := s.store.RestoreDirectory(ctx, in.ItemID, parentID, parentPath)
	if err != nil {
		return err
	}

	s.invalidateLibrary(dir.LibraryID)
	s.publish(dir.LibraryID, "directory_restored", restored)
	s.record(ctx, audit.Entry{
		ActorID:    in.ActorID,
		Action:     audit.ActionTrashRestored,
		TargetType: "directory",
		TargetID:   in.ItemID,
		LibraryID:  dir.LibraryID,
		Details:    map[string]any{"path": restored.FullPath()},
	})

	// The cascade restored files too; put them back into the index.
	files, err := s.store.ListLibraryFiles(ctx, dir.LibraryID)
	if err != nil {
		logger.WarnCtx(ctx, "failed to list files for reindex after restore", "error", err)
		return nil
	}
	prefix := restored.FullPath()
	for _, f := range files {
		if f.Path == prefix || strings.HasPrefix(f.Path, prefix+"/") {
			s.enqueueFileIndex(ctx, f)
		}
	}
	return nil
}

// enqueueFileIndex schedules a best-effort reindex of one live file.
func (s *Service) enqueueFileIndex(ctx context.Context, file *models.File) {
	lib, err := s.store.GetAnyLibrary(ctx, file.LibraryID)
	if err != nil {
		return
	}
	s.enqueueIndex(ctx, indexer.Job{
		Kind:        indexer.JobIndex,
		LibraryID:   file.LibraryID,
		FileID:      file.ID,
		Path:        fileIndexPath(file),
		Filename:    file.Filename,
		Bucket:      lib.BucketName,
		StorageKey:  file.StorageKey,
		ContentType: file.ContentType,
	})
}

// PermanentDelete destroys a trashed item: version blobs first
// (best-effort), then the metadata rows. Directories recurse into
// children before removing themselves.
func (s *Service) PermanentDelete(ctx context.Context, itemType, itemID, actorID string) error {
	switch itemType {
	case TrashItemFile:
		file, err := s.store.GetAnyFile(ctx, itemID)
		if err != nil {
			return err
		}
		if !file.IsDeleted {
			return models.ErrNotInTrash
		}
		return s.permanentDeleteFile(ctx, file, actorID)
	case TrashItemDirectory:
		dir, err := s.store.GetAnyDirectory(ctx, itemID)
		if err != nil {
			return err
		}
		if !dir.IsDeleted {
			return models.ErrNotInTrash
		}
		return s.permanentDeleteDirectory(ctx, dir, actorID)
	default:
		return fmt.Errorf("unknown trash item type %q", itemType)
	}
}

func (s *Service) permanentDeleteFile(ctx context.Context, file *models.File, actorID string) error {
	lib, err := s.store.GetAnyLibrary(ctx, file.LibraryID)
	if err != nil {
		return err
	}

	// Blob deletion is best-effort: an unreachable store must not keep
	// the metadata row alive forever.
	versions, err := s.store.ListFileVersions(ctx, file.ID)
	if err != nil {
		return err
	}
	for _, v := range versions {
		if err := s.objects.DeleteObject(ctx, lib.BucketName, v.StorageKey); err != nil {
			logger.WarnCtx(ctx, "failed to delete version blob",
				"file_id", file.ID, "version", v.VersionNumber, "key", v.StorageKey, "error", err)
		}
	}

	if err := s.store.PermanentDeleteFile(ctx, file.ID); err != nil {
		return err
	}

	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionTrashPurged,
		TargetType: "file",
		TargetID:   file.ID,
		LibraryID:  file.LibraryID,
		Details:    map[string]any{"path": file.FullPath(), "versions": len(versions)},
	})
	s.enqueueIndex(ctx, indexer.Job{
		Kind:      indexer.JobRemove,
		LibraryID: file.LibraryID,
		Path:      fileIndexPath(file),
	})
	return nil
}

func (s *Service) permanentDeleteDirectory(ctx context.Context, dir *models.Directory, actorID string) error {
	// Children first, files before subdirectories.
	files, err := s.store.ListFilesInDirectoryAny(ctx, dir.ID)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := s.permanentDeleteFile(ctx, f, actorID); err != nil {
			return err
		}
	}

	children, err := s.store.ListChildDirectoriesAny(ctx, dir.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.permanentDeleteDirectory(ctx, child, actorID); err != nil {
			return err
		}
	}

	if err := s.store.PermanentDeleteDirectory(ctx, dir.ID); err != nil {
		return err
	}

	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionTrashPurged,
		TargetType: "directory",
		TargetID:   dir.ID,
		LibraryID:  dir.LibraryID,
		Details:    map[string]any{"path": dir.FullPath()},
	})
	return nil
}

// EmptyTrash permanently deletes every trashed item in a library.
func (s *Service) EmptyTrash(ctx context.Context, libraryID, actorID string) (int, error) {
	items, err := s.ListTrash(ctx, libraryID)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, item := range items {
		if err := s.PermanentDelete(ctx, item.ItemType, item.ItemID, actorID); err != nil {
			logger.WarnCtx(ctx, "failed to purge trash item",
				"item_type", item.ItemType, "item_id", item.ItemID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}

// CleanupExpired permanently deletes items past their retention
// window. It is idempotent and safe to run on a schedule.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.TrashRetention)
	items, err := s.store.ListExpiredTrash(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, item := range items {
		if err := s.PermanentDelete(ctx, item.ItemType, item.ItemID, "system"); err != nil {
			// Cascade-deleted children may already be gone by the time
			// their own entry comes up.
			if errors.Is(err, models.ErrFileNotFound) || errors.Is(err, models.ErrDirectoryNotFound) {
				continue
			}
			logger.WarnCtx(ctx, "failed to purge expired trash item",
				"item_type", item.ItemType, "item_id", item.ItemID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}
