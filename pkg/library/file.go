package library

import (
	"context"
	"strings"
	"time"

	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/index/indexer"
	"github.com/shelfd/shelfd/pkg/models"
)

// GetFile returns a live file.
func (s *Service) GetFile(ctx context.Context, id string) (*models.File, error) {
	return s.store.GetFile(ctx, id)
}

// ListFiles returns the live files of a directory (nil for the library
// root), reading through the cache.
func (s *Service) ListFiles(ctx context.Context, libraryID string, directoryID *string) ([]*models.File, error) {
	dir := ""
	if directoryID != nil {
		dir = *directoryID
	}
	key := filesKey(libraryID, dir)

	if v, ok := s.cache.Get(key); ok {
		if files, ok := v.([]*models.File); ok {
			return files, nil
		}
	}

	files, err := s.store.ListFiles(ctx, libraryID, directoryID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, files, 0)
	return files, nil
}

// RenameFile renames within the same directory. The storage key stays:
// keys are version-scoped, not path-scoped. The old index entry is
// dropped and the file reindexed under its new path.
func (s *Service) RenameFile(ctx context.Context, id, newFilename, actorID string) (*models.File, error) {
	if l := len(newFilename); l < 1 || l > 255 {
		return nil, ErrInvalidFilename
	}

	before, err := s.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}

	file, err := s.store.RenameFile(ctx, id, newFilename, actorID)
	if err != nil {
		return nil, err
	}

	s.invalidateListing(file.LibraryID, file.DirectoryID)
	s.publish(file.LibraryID, "file_renamed", file)
	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionFileRenamed,
		TargetType: "file",
		TargetID:   id,
		LibraryID:  file.LibraryID,
		Details:    map[string]any{"from": before.Filename, "to": newFilename},
	})
	s.reindexAfterPathChange(ctx, before, file)
	return file, nil
}

// MoveFile relocates the file to another directory (nil for the
// library root), enforcing uniqueness in the target.
func (s *Service) MoveFile(ctx context.Context, id string, newDirectoryID *string, actorID string) (*models.File, error) {
	before, err := s.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}

	file, err := s.store.MoveFile(ctx, id, newDirectoryID, actorID)
	if err != nil {
		return nil, err
	}

	s.invalidateListing(file.LibraryID, before.DirectoryID)
	s.invalidateListing(file.LibraryID, newDirectoryID)
	s.publish(file.LibraryID, "file_moved", file)
	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionFileMoved,
		TargetType: "file",
		TargetID:   id,
		LibraryID:  file.LibraryID,
		Details:    map[string]any{"from": before.FullPath(), "to": file.FullPath()},
	})
	s.reindexAfterPathChange(ctx, before, file)
	return file, nil
}

// reindexAfterPathChange drops chunks stored under the old path and
// reindexes the current blob under the new one.
func (s *Service) reindexAfterPathChange(ctx context.Context, before, after *models.File) {
	lib, err := s.store.GetLibrary(ctx, after.LibraryID)
	if err != nil {
		return
	}
	s.enqueueIndex(ctx, indexer.Job{
		Kind:      indexer.JobRemove,
		LibraryID: before.LibraryID,
		Path:      fileIndexPath(before),
	})
	s.enqueueIndex(ctx, indexer.Job{
		Kind:        indexer.JobIndex,
		LibraryID:   after.LibraryID,
		FileID:      after.ID,
		Path:        fileIndexPath(after),
		Filename:    after.Filename,
		Bucket:      lib.BucketName,
		StorageKey:  after.StorageKey,
		ContentType: after.ContentType,
	})
}

// DeleteFile soft-deletes the file and schedules a best-effort
// de-index. Blobs stay until a permanent trash purge.
func (s *Service) DeleteFile(ctx context.Context, id, actorID string) error {
	file, err := s.store.GetFile(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.SoftDeleteFile(ctx, id, actorID, time.Now().UTC()); err != nil {
		return err
	}

	s.invalidateListing(file.LibraryID, file.DirectoryID)
	s.publish(file.LibraryID, "file_deleted", map[string]string{"file_id": id})
	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionFileDeleted,
		TargetType: "file",
		TargetID:   id,
		LibraryID:  file.LibraryID,
		Details:    map[string]any{"path": file.FullPath()},
	})
	s.enqueueIndex(ctx, indexer.Job{
		Kind:      indexer.JobRemove,
		LibraryID: file.LibraryID,
		Path:      fileIndexPath(file),
	})
	return nil
}

// SearchFiles returns the library's live files whose filename or path
// contains the query, case-insensitive.
func (s *Service) SearchFiles(ctx context.Context, libraryID, query string) ([]*models.File, error) {
	files, err := s.store.ListLibraryFiles(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []*models.File
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Filename), q) || strings.Contains(strings.ToLower(f.FullPath()), q) {
			out = append(out, f)
		}
	}
	return out, nil
}

// ListFileVersions returns a file's version history, newest first.
func (s *Service) ListFileVersions(ctx context.Context, fileID string) ([]*models.FileVersion, error) {
	return s.store.ListFileVersions(ctx, fileID)
}

// DownloadURL issues a presigned download URL for the file's current
// version, carrying the user-facing filename in Content-Disposition.
func (s *Service) DownloadURL(ctx context.Context, fileID, actorID string) (string, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	lib, err := s.GetLibrary(ctx, file.LibraryID)
	if err != nil {
		return "", err
	}

	url, err := s.objects.GeneratePresignedDownloadURL(ctx, lib.BucketName, file.StorageKey, s.cfg.PresignedURLExpiry, file.Filename)
	if err != nil {
		return "", err
	}

	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionFileDownloaded,
		TargetType: "file",
		TargetID:   fileID,
		LibraryID:  file.LibraryID,
	})
	return url, nil
}

// VersionDownloadURL issues a presigned URL for one historical
// version.
func (s *Service) VersionDownloadURL(ctx context.Context, fileID string, versionNumber int) (string, error) {
	file, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	version, err := s.store.GetFileVersion(ctx, fileID, versionNumber)
	if err != nil {
		return "", err
	}
	lib, err := s.GetLibrary(ctx, file.LibraryID)
	if err != nil {
		return "", err
	}
	return s.objects.GeneratePresignedDownloadURL(ctx, lib.BucketName, version.StorageKey, s.cfg.PresignedURLExpiry, file.Filename)
}
