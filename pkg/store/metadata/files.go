package metadata

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/store/object"
)

// ============================================
// FILE OPERATIONS
// ============================================

// CreateFileWithVersion inserts a new file row together with its version 1
// row in one transaction. Sibling uniqueness among live rows is checked
// first. The storage key is derived here, inside the transaction, so it is
// fixed the moment the version exists.
func (s *GORMStore) CreateFileWithVersion(ctx context.Context, file *models.File, version *models.FileVersion) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := filenameTaken(tx, file.LibraryID, file.DirectoryID, file.Filename, "")
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateFilename
		}

		file.CurrentVersion = 1
		file.StorageKey = object.GenerateStorageKey(file.LibraryID, file.Path, file.Filename, 1)
		version.StorageKey = file.StorageKey
		file.CreatedAt = time.Now()
		id, err = createWithID(tx, ctx, file, func(f *models.File, id string) { f.ID = id }, file.ID, models.ErrDuplicateFilename)
		if err != nil {
			return err
		}

		version.FileID = id
		version.VersionNumber = 1
		_, err = createWithID(tx, ctx, version, func(v *models.FileVersion, id string) { v.ID = id }, version.ID, models.ErrDuplicateFilename)
		return err
	})
	return id, err
}

// CommitFileVersion bumps a file's current version and inserts the matching
// version row atomically. The version number and its storage key are both
// resolved here, from the row read inside the transaction, so two racing
// overwrites can never be assigned the same key. Concurrent commits against
// the same file serialize on the version uniqueness index; the loser fails
// and must re-read. Guarantees current_version stays linear with no gaps.
func (s *GORMStore) CommitFileVersion(ctx context.Context, fileID string, update *models.File, version *models.FileVersion) (*models.File, error) {
	var committed *models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.File
		if err := tx.Where("id = ? AND is_deleted = ?", fileID, false).First(&file).Error; err != nil {
			return convertNotFoundError(err, models.ErrFileNotFound)
		}

		next := file.CurrentVersion + 1
		key := object.GenerateStorageKey(file.LibraryID, file.Path, file.Filename, next)
		version.StorageKey = key

		result := tx.Model(&models.File{}).
			Where("id = ? AND current_version = ?", fileID, file.CurrentVersion).
			Updates(map[string]any{
				"current_version": next,
				"size_bytes":      update.SizeBytes,
				"checksum_sha256": update.ChecksumSHA256,
				"content_type":    update.ContentType,
				"storage_key":     key,
				"modified_by":     update.ModifiedBy,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Lost a concurrent version race; caller retries from init.
			return fmt.Errorf("concurrent version commit on file %s", fileID)
		}

		version.FileID = fileID
		version.VersionNumber = next
		if _, err := createWithID(tx, ctx, version, func(v *models.FileVersion, id string) { v.ID = id }, version.ID, models.ErrDuplicateFilename); err != nil {
			return err
		}

		if err := tx.Where("id = ?", fileID).First(&file).Error; err != nil {
			return err
		}
		committed = &file
		return nil
	})
	return committed, err
}

// GetFile returns a live file by id.
func (s *GORMStore) GetFile(ctx context.Context, id string) (*models.File, error) {
	return getByID[models.File](s.db, ctx, id, models.ErrFileNotFound)
}

// GetAnyFile returns a file by id regardless of soft-delete state.
func (s *GORMStore) GetAnyFile(ctx context.Context, id string) (*models.File, error) {
	return getAnyByID[models.File](s.db, ctx, id, models.ErrFileNotFound)
}

// GetFileByName returns the live file with the given name in a directory
// (nil directoryID for the library root).
func (s *GORMStore) GetFileByName(ctx context.Context, libraryID string, directoryID *string, filename string) (*models.File, error) {
	var file models.File
	q := s.db.WithContext(ctx).
		Where("library_id = ? AND filename = ? AND is_deleted = ?", libraryID, filename, false)
	q = nullableEquals(q, "directory_id", directoryID)
	if err := q.First(&file).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrFileNotFound)
	}
	return &file, nil
}

// ListFiles returns the live files in a directory (nil for the library
// root), ordered by filename.
func (s *GORMStore) ListFiles(ctx context.Context, libraryID string, directoryID *string) ([]*models.File, error) {
	var files []*models.File
	q := s.db.WithContext(ctx).
		Where("library_id = ? AND is_deleted = ?", libraryID, false)
	q = nullableEquals(q, "directory_id", directoryID)
	if err := q.Order("filename ASC").Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

// ListLibraryFiles returns all live files in a library, ordered by path then
// filename. Used by agent browsing and name search.
func (s *GORMStore) ListLibraryFiles(ctx context.Context, libraryID string) ([]*models.File, error) {
	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("library_id = ? AND is_deleted = ?", libraryID, false).
		Order("path ASC, filename ASC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// RenameFile renames a live file, enforcing sibling uniqueness. The storage
// key is untouched; keys are version-scoped, not path-scoped.
func (s *GORMStore) RenameFile(ctx context.Context, id, newFilename, actorID string) (*models.File, error) {
	var renamed *models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.File
		if err := tx.Where("id = ? AND is_deleted = ?", id, false).First(&file).Error; err != nil {
			return convertNotFoundError(err, models.ErrFileNotFound)
		}
		if file.Filename == newFilename {
			renamed = &file
			return nil
		}

		taken, err := filenameTaken(tx, file.LibraryID, file.DirectoryID, newFilename, file.ID)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateFilename
		}

		file.Filename = newFilename
		file.ModifiedBy = actorID
		if err := tx.Model(&file).
			Updates(map[string]any{"filename": newFilename, "modified_by": actorID}).Error; err != nil {
			return err
		}

		renamed = &file
		return nil
	})
	return renamed, err
}

// MoveFile moves a live file into another directory (nil for the library
// root), enforcing uniqueness in the target and updating the denormalized
// path.
func (s *GORMStore) MoveFile(ctx context.Context, id string, newDirectoryID *string, actorID string) (*models.File, error) {
	var moved *models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.File
		if err := tx.Where("id = ? AND is_deleted = ?", id, false).First(&file).Error; err != nil {
			return convertNotFoundError(err, models.ErrFileNotFound)
		}

		newPath := "/"
		if newDirectoryID != nil {
			var dir models.Directory
			if err := tx.Where("id = ? AND library_id = ? AND is_deleted = ?", *newDirectoryID, file.LibraryID, false).First(&dir).Error; err != nil {
				return convertNotFoundError(err, models.ErrDirectoryNotFound)
			}
			newPath = dir.FullPath()
		}

		taken, err := filenameTaken(tx, file.LibraryID, newDirectoryID, file.Filename, file.ID)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateFilename
		}

		file.DirectoryID = newDirectoryID
		file.Path = newPath
		file.ModifiedBy = actorID
		if err := tx.Model(&file).Updates(map[string]any{
			"directory_id": newDirectoryID,
			"path":         newPath,
			"modified_by":  actorID,
		}).Error; err != nil {
			return err
		}

		moved = &file
		return nil
	})
	return moved, err
}

// SoftDeleteFile marks a file deleted.
func (s *GORMStore) SoftDeleteFile(ctx context.Context, id, actorID string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.File{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": now,
			"deleted_by": actorID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrFileNotFound
	}
	return nil
}

// RestoreFile clears the soft-delete trio. The caller resolves the restore
// target; directoryID and path name the live directory the file reattaches
// to (nil and "/" for the library root).
func (s *GORMStore) RestoreFile(ctx context.Context, id string, directoryID *string, path string) (*models.File, error) {
	var restored *models.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.File
		if err := tx.Where("id = ? AND is_deleted = ?", id, true).First(&file).Error; err != nil {
			return convertNotFoundError(err, models.ErrNotInTrash)
		}

		taken, err := filenameTaken(tx, file.LibraryID, directoryID, file.Filename, file.ID)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateFilename
		}

		file.DirectoryID = directoryID
		file.Path = path
		if err := tx.Model(&file).Updates(map[string]any{
			"directory_id": directoryID,
			"path":         path,
			"is_deleted":   false,
			"deleted_at":   nil,
			"deleted_by":   nil,
		}).Error; err != nil {
			return err
		}

		restored = &file
		return nil
	})
	return restored, err
}

// PermanentDeleteFile removes a file row and all of its version rows.
// Blob deletion happens first at the trash service; metadata removal does
// not roll back on storage errors.
func (s *GORMStore) PermanentDeleteFile(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.File{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrFileNotFound
		}
		return tx.Where("file_id = ?", id).Delete(&models.FileVersion{}).Error
	})
}

// ============================================
// FILE VERSION OPERATIONS
// ============================================

// ListFileVersions returns a file's versions in descending version order.
func (s *GORMStore) ListFileVersions(ctx context.Context, fileID string) ([]*models.FileVersion, error) {
	var versions []*models.FileVersion
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// GetFileVersion returns one version of a file.
func (s *GORMStore) GetFileVersion(ctx context.Context, fileID string, versionNumber int) (*models.FileVersion, error) {
	var version models.FileVersion
	err := s.db.WithContext(ctx).
		Where("file_id = ? AND version_number = ?", fileID, versionNumber).
		First(&version).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrVersionNotFound)
	}
	return &version, nil
}

// filenameTaken reports whether a live file with the given name exists in
// the directory, excluding excludeID (pass "" to exclude nothing).
func filenameTaken(tx *gorm.DB, libraryID string, directoryID *string, filename, excludeID string) (bool, error) {
	var count int64
	q := tx.Model(&models.File{}).
		Where("library_id = ? AND filename = ? AND is_deleted = ?", libraryID, filename, false)
	q = nullableEquals(q, "directory_id", directoryID)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
