package metadata

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/shelfd/shelfd/pkg/models"
)

// ============================================
// LIBRARY OPERATIONS
// ============================================

// CreateLibrary creates a new library. The library ID is generated if empty.
// Returns models.ErrDuplicateLibrary if the derived bucket name collides.
func (s *GORMStore) CreateLibrary(ctx context.Context, library *models.Library) (string, error) {
	library.CreatedAt = time.Now()
	return createWithID(s.db, ctx, library, func(l *models.Library, id string) { l.ID = id }, library.ID, models.ErrDuplicateLibrary)
}

// GetLibrary returns a live library by id.
// Returns models.ErrLibraryNotFound if the library doesn't exist or is
// soft-deleted.
func (s *GORMStore) GetLibrary(ctx context.Context, id string) (*models.Library, error) {
	return getByID[models.Library](s.db, ctx, id, models.ErrLibraryNotFound)
}

// GetAnyLibrary returns a library by id regardless of soft-delete state.
func (s *GORMStore) GetAnyLibrary(ctx context.Context, id string) (*models.Library, error) {
	return getAnyByID[models.Library](s.db, ctx, id, models.ErrLibraryNotFound)
}

// GetLibraryByName returns a live library owned by ownerID with the given name.
// Name uniqueness among live libraries is enforced at the service layer via
// this lookup, not by a database constraint, so a soft-deleted library's name
// can be reused.
func (s *GORMStore) GetLibraryByName(ctx context.Context, ownerID, name string) (*models.Library, error) {
	var library models.Library
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND name = ? AND is_deleted = ?", ownerID, name, false).
		First(&library).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrLibraryNotFound)
	}
	return &library, nil
}

// ListLibraries returns all live libraries.
func (s *GORMStore) ListLibraries(ctx context.Context) ([]*models.Library, error) {
	var libraries []*models.Library
	err := s.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("name ASC").
		Find(&libraries).Error
	if err != nil {
		return nil, err
	}
	return libraries, nil
}

// ListLibrariesByOwner returns all live libraries owned by ownerID.
func (s *GORMStore) ListLibrariesByOwner(ctx context.Context, ownerID string) ([]*models.Library, error) {
	var libraries []*models.Library
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Order("name ASC").
		Find(&libraries).Error
	if err != nil {
		return nil, err
	}
	return libraries, nil
}

// UpdateLibrary updates mutable library fields. BucketName and OwnerID are
// immutable after creation and never written here.
// Returns models.ErrLibraryNotFound if the library doesn't exist.
func (s *GORMStore) UpdateLibrary(ctx context.Context, library *models.Library) error {
	var existing models.Library
	if err := s.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", library.ID, false).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrLibraryNotFound)
	}

	return s.db.WithContext(ctx).
		Model(&existing).
		Select("Name", "Description", "MCPWriteEnabled", "MaxFileSizeBytes").
		Updates(library).Error
}

// SoftDeleteLibrary marks a library deleted. Directories, files, and share
// links are not individually marked; they become unreachable because every
// access path checks library liveness first. The bucket is kept until a
// permanent purge.
func (s *GORMStore) SoftDeleteLibrary(ctx context.Context, id, actorID string, now time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.Library{}).
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
		return models.ErrLibraryNotFound
	}
	return nil
}

// PermanentDeleteLibrary removes a library row and all of its directories,
// files, versions, and share links in one transaction. Blob and vector
// cleanup is the caller's responsibility.
func (s *GORMStore) PermanentDeleteLibrary(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var library models.Library
		if err := tx.Where("id = ?", id).First(&library).Error; err != nil {
			return convertNotFoundError(err, models.ErrLibraryNotFound)
		}

		// Versions first (they reference files)
		if err := tx.Where("file_id IN (?)",
			tx.Model(&models.File{}).Select("id").Where("library_id = ?", id),
		).Delete(&models.FileVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("library_id = ?", id).Delete(&models.File{}).Error; err != nil {
			return err
		}
		if err := tx.Where("library_id = ?", id).Delete(&models.Directory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("library_id = ?", id).Delete(&models.ShareLink{}).Error; err != nil {
			return err
		}

		return tx.Delete(&library).Error
	})
}
