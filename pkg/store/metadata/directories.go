package metadata

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shelfd/shelfd/pkg/models"
)

// ============================================
// DIRECTORY OPERATIONS
// ============================================
//
// The namespace tree denormalizes each row's containing path. Rename, move,
// and delete therefore cascade: every descendant directory and file is
// rewritten inside the same transaction. Traversal is iterative with an
// explicit stack so arbitrarily deep trees cannot exhaust the call stack.

// CreateDirectory creates a directory after checking sibling uniqueness among
// live rows. The Path field must already hold the parent's full path.
// Returns models.ErrDuplicateDirectory on a name collision.
func (s *GORMStore) CreateDirectory(ctx context.Context, dir *models.Directory) (string, error) {
	var id string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := directoryNameTaken(tx, dir.LibraryID, dir.ParentID, dir.Name, "")
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateDirectory
		}

		dir.CreatedAt = time.Now()
		id, err = createWithID(tx, ctx, dir, func(d *models.Directory, id string) { d.ID = id }, dir.ID, models.ErrDuplicateDirectory)
		return err
	})
	return id, err
}

// GetDirectory returns a live directory by id.
func (s *GORMStore) GetDirectory(ctx context.Context, id string) (*models.Directory, error) {
	return getByID[models.Directory](s.db, ctx, id, models.ErrDirectoryNotFound)
}

// GetAnyDirectory returns a directory by id regardless of soft-delete state.
func (s *GORMStore) GetAnyDirectory(ctx context.Context, id string) (*models.Directory, error) {
	return getAnyByID[models.Directory](s.db, ctx, id, models.ErrDirectoryNotFound)
}

// ListDirectories returns the live child directories of parentID (nil for the
// library root), ordered by name.
func (s *GORMStore) ListDirectories(ctx context.Context, libraryID string, parentID *string) ([]*models.Directory, error) {
	var dirs []*models.Directory
	q := s.db.WithContext(ctx).
		Where("library_id = ? AND is_deleted = ?", libraryID, false)
	q = nullableEquals(q, "parent_id", parentID)
	if err := q.Order("name ASC").Find(&dirs).Error; err != nil {
		return nil, err
	}
	return dirs, nil
}

// RenameDirectory renames a directory and rewrites the denormalized path on
// every descendant directory and file.
// Returns models.ErrDuplicateDirectory if a live sibling already has newName.
func (s *GORMStore) RenameDirectory(ctx context.Context, id, newName string) (*models.Directory, error) {
	var renamed *models.Directory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dir models.Directory
		if err := tx.Where("id = ? AND is_deleted = ?", id, false).First(&dir).Error; err != nil {
			return convertNotFoundError(err, models.ErrDirectoryNotFound)
		}
		if dir.Name == newName {
			renamed = &dir
			return nil
		}

		taken, err := directoryNameTaken(tx, dir.LibraryID, dir.ParentID, newName, dir.ID)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateDirectory
		}

		dir.Name = newName
		if err := tx.Model(&dir).Update("name", newName).Error; err != nil {
			return err
		}

		if err := rewriteDescendantPaths(tx, &dir); err != nil {
			return err
		}

		renamed = &dir
		return nil
	})
	return renamed, err
}

// MoveDirectory reparents a directory and rewrites descendant paths.
// Moving a directory into itself or any of its descendants returns
// models.ErrInvalidMoveTarget. A live name collision in the target parent
// returns models.ErrDuplicateDirectory.
func (s *GORMStore) MoveDirectory(ctx context.Context, id string, newParentID *string) (*models.Directory, error) {
	var moved *models.Directory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dir models.Directory
		if err := tx.Where("id = ? AND is_deleted = ?", id, false).First(&dir).Error; err != nil {
			return convertNotFoundError(err, models.ErrDirectoryNotFound)
		}

		newParentPath := "/"
		if newParentID != nil {
			if *newParentID == dir.ID {
				return models.ErrInvalidMoveTarget
			}
			var parent models.Directory
			if err := tx.Where("id = ? AND library_id = ? AND is_deleted = ?", *newParentID, dir.LibraryID, false).First(&parent).Error; err != nil {
				return convertNotFoundError(err, models.ErrDirectoryNotFound)
			}
			// The target must not live inside the moved subtree. Prefix
			// comparison on full paths catches every descendant.
			if isPathWithin(parent.FullPath(), dir.FullPath()) {
				return models.ErrInvalidMoveTarget
			}
			newParentPath = parent.FullPath()
		}

		taken, err := directoryNameTaken(tx, dir.LibraryID, newParentID, dir.Name, dir.ID)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateDirectory
		}

		dir.ParentID = newParentID
		dir.Path = newParentPath
		if err := tx.Model(&dir).
			Select("ParentID", "Path").
			Updates(map[string]any{"parent_id": newParentID, "path": newParentPath}).Error; err != nil {
			return err
		}

		if err := rewriteDescendantPaths(tx, &dir); err != nil {
			return err
		}

		moved = &dir
		return nil
	})
	return moved, err
}

// SoftDeleteDirectory marks a directory and its whole live subtree deleted.
// Every cascaded row gets the identical deletion instant; restore uses that
// instant to tell cascaded deletions apart from earlier ones.
func (s *GORMStore) SoftDeleteDirectory(ctx context.Context, id, actorID string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dir models.Directory
		if err := tx.Where("id = ? AND is_deleted = ?", id, false).First(&dir).Error; err != nil {
			return convertNotFoundError(err, models.ErrDirectoryNotFound)
		}

		trio := map[string]any{
			"is_deleted": true,
			"deleted_at": now,
			"deleted_by": actorID,
		}

		stack := []string{dir.ID}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if err := tx.Model(&models.File{}).
				Where("directory_id = ? AND is_deleted = ?", current, false).
				Updates(trio).Error; err != nil {
				return err
			}

			var childIDs []string
			if err := tx.Model(&models.Directory{}).
				Where("parent_id = ? AND is_deleted = ?", current, false).
				Pluck("id", &childIDs).Error; err != nil {
				return err
			}
			stack = append(stack, childIDs...)

			if err := tx.Model(&models.Directory{}).
				Where("id = ?", current).
				Updates(trio).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// RestoreDirectory clears the soft-delete trio on a directory and on every
// descendant that was deleted in the same cascade (same deletion instant).
// The caller resolves the restore target; parentID and parentPath name the
// live parent the subtree reattaches to (nil and "/" for the library root).
func (s *GORMStore) RestoreDirectory(ctx context.Context, id string, parentID *string, parentPath string) (*models.Directory, error) {
	var restored *models.Directory
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dir models.Directory
		if err := tx.Where("id = ? AND is_deleted = ?", id, true).First(&dir).Error; err != nil {
			return convertNotFoundError(err, models.ErrNotInTrash)
		}
		deletedAt := dir.DeletedAt

		taken, err := directoryNameTaken(tx, dir.LibraryID, parentID, dir.Name, dir.ID)
		if err != nil {
			return err
		}
		if taken {
			return models.ErrDuplicateDirectory
		}

		clearTrio := map[string]any{
			"is_deleted": false,
			"deleted_at": nil,
			"deleted_by": nil,
		}

		dir.ParentID = parentID
		dir.Path = parentPath
		if err := tx.Model(&dir).Updates(map[string]any{
			"parent_id":  parentID,
			"path":       parentPath,
			"is_deleted": false,
			"deleted_at": nil,
			"deleted_by": nil,
		}).Error; err != nil {
			return err
		}

		// Un-delete descendants sharing the cascade instant, then fix paths.
		stack := []string{dir.ID}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if err := tx.Model(&models.File{}).
				Where("directory_id = ? AND is_deleted = ? AND deleted_at = ?", current, true, deletedAt).
				Updates(clearTrio).Error; err != nil {
				return err
			}

			var childIDs []string
			if err := tx.Model(&models.Directory{}).
				Where("parent_id = ? AND is_deleted = ? AND deleted_at = ?", current, true, deletedAt).
				Pluck("id", &childIDs).Error; err != nil {
				return err
			}
			for _, childID := range childIDs {
				if err := tx.Model(&models.Directory{}).
					Where("id = ?", childID).
					Updates(clearTrio).Error; err != nil {
					return err
				}
			}
			stack = append(stack, childIDs...)
		}

		if err := rewriteDescendantPaths(tx, &dir); err != nil {
			return err
		}

		restored = &dir
		return nil
	})
	return restored, err
}

// PermanentDeleteDirectory removes a directory row. Children must already be
// gone; the trash service recurses bottom-up before calling this.
func (s *GORMStore) PermanentDeleteDirectory(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Directory{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDirectoryNotFound
	}
	return nil
}

// ListChildDirectoriesAny returns all child directories of parentID including
// soft-deleted ones. Used by permanent-delete recursion.
func (s *GORMStore) ListChildDirectoriesAny(ctx context.Context, parentID string) ([]*models.Directory, error) {
	var dirs []*models.Directory
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Find(&dirs).Error
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// ListFilesInDirectoryAny returns all files under directoryID including
// soft-deleted ones. Used by permanent-delete recursion.
func (s *GORMStore) ListFilesInDirectoryAny(ctx context.Context, directoryID string) ([]*models.File, error) {
	var files []*models.File
	err := s.db.WithContext(ctx).
		Where("directory_id = ?", directoryID).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// directoryNameTaken reports whether a live sibling with the given name
// exists, excluding excludeID (pass "" to exclude nothing).
func directoryNameTaken(tx *gorm.DB, libraryID string, parentID *string, name, excludeID string) (bool, error) {
	var count int64
	q := tx.Model(&models.Directory{}).
		Where("library_id = ? AND name = ? AND is_deleted = ?", libraryID, name, false)
	q = nullableEquals(q, "parent_id", parentID)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// rewriteDescendantPaths walks the subtree rooted at dir and rewrites the
// denormalized path column on every descendant directory and file. dir's own
// Name and Path must already reflect the new location. Soft-deleted rows are
// rewritten too so trash entries keep an accurate original path.
func rewriteDescendantPaths(tx *gorm.DB, dir *models.Directory) error {
	type frame struct {
		id       string
		fullPath string
	}

	stack := []frame{{id: dir.ID, fullPath: dir.FullPath()}}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := tx.Model(&models.File{}).
			Where("directory_id = ?", current.id).
			Update("path", current.fullPath).Error; err != nil {
			return err
		}

		var children []models.Directory
		if err := tx.Where("parent_id = ?", current.id).Find(&children).Error; err != nil {
			return err
		}
		for _, child := range children {
			if err := tx.Model(&models.Directory{}).
				Where("id = ?", child.ID).
				Update("path", current.fullPath).Error; err != nil {
				return err
			}
			child.Path = current.fullPath
			stack = append(stack, frame{id: child.ID, fullPath: child.FullPath()})
		}
	}

	return nil
}

// isPathWithin reports whether candidate equals base or lives under it.
func isPathWithin(candidate, base string) bool {
	return candidate == base || strings.HasPrefix(candidate, base+"/")
}
