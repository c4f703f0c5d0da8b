package metadata

import (
	"context"
	"time"

	"github.com/shelfd/shelfd/pkg/models"
)

// ============================================
// TRASH QUERIES
// ============================================
//
// The trash view is derived from soft-deleted rows; there is no separate
// trash table. Cascade-deleted descendants are filtered out of listings so
// the trash shows only the roots users actually deleted.

// TrashItem is one restorable entry in a library's trash.
type TrashItem struct {
	ItemType  string     `json:"item_type"` // file or directory
	ItemID    string     `json:"item_id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"` // original containing path
	DeletedBy string     `json:"deleted_by"`
	DeletedAt time.Time  `json:"deleted_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	SizeBytes *int64     `json:"size_bytes,omitempty"`
}

// ListTrash returns the trash entries for a library: soft-deleted files and
// directories whose parent was not deleted in the same cascade. retention
// determines each entry's expiry.
func (s *GORMStore) ListTrash(ctx context.Context, libraryID string, retention time.Duration) ([]*TrashItem, error) {
	var items []*TrashItem

	var dirs []*models.Directory
	err := s.db.WithContext(ctx).
		Where("library_id = ? AND is_deleted = ?", libraryID, true).
		Order("deleted_at DESC").
		Find(&dirs).Error
	if err != nil {
		return nil, err
	}

	// Index deleted directories so cascade children can be skipped.
	deletedDirs := make(map[string]*models.Directory, len(dirs))
	for _, d := range dirs {
		deletedDirs[d.ID] = d
	}

	for _, d := range dirs {
		if isCascadeChild(d.ParentID, d.DeletedAt, deletedDirs) {
			continue
		}
		items = append(items, &TrashItem{
			ItemType:  "directory",
			ItemID:    d.ID,
			Name:      d.Name,
			Path:      d.Path,
			DeletedBy: derefString(d.DeletedBy),
			DeletedAt: derefTime(d.DeletedAt),
			ExpiresAt: derefTime(d.DeletedAt).Add(retention),
		})
	}

	var files []*models.File
	err = s.db.WithContext(ctx).
		Where("library_id = ? AND is_deleted = ?", libraryID, true).
		Order("deleted_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if isCascadeChild(f.DirectoryID, f.DeletedAt, deletedDirs) {
			continue
		}
		size := f.SizeBytes
		items = append(items, &TrashItem{
			ItemType:  "file",
			ItemID:    f.ID,
			Name:      f.Filename,
			Path:      f.Path,
			DeletedBy: derefString(f.DeletedBy),
			DeletedAt: derefTime(f.DeletedAt),
			ExpiresAt: derefTime(f.DeletedAt).Add(retention),
			SizeBytes: &size,
		})
	}

	return items, nil
}

// ListExpiredTrash returns trash roots across all libraries deleted before
// the cutoff. The sweeper permanently purges these.
func (s *GORMStore) ListExpiredTrash(ctx context.Context, cutoff time.Time) ([]*TrashItem, error) {
	var items []*TrashItem

	var dirs []*models.Directory
	err := s.db.WithContext(ctx).
		Where("is_deleted = ? AND deleted_at < ?", true, cutoff).
		Find(&dirs).Error
	if err != nil {
		return nil, err
	}
	deletedDirs := make(map[string]*models.Directory, len(dirs))
	for _, d := range dirs {
		deletedDirs[d.ID] = d
	}
	for _, d := range dirs {
		if isCascadeChild(d.ParentID, d.DeletedAt, deletedDirs) {
			continue
		}
		items = append(items, &TrashItem{
			ItemType:  "directory",
			ItemID:    d.ID,
			Name:      d.Name,
			Path:      d.Path,
			DeletedBy: derefString(d.DeletedBy),
			DeletedAt: derefTime(d.DeletedAt),
			ExpiresAt: cutoff,
		})
	}

	var files []*models.File
	err = s.db.WithContext(ctx).
		Where("is_deleted = ? AND deleted_at < ?", true, cutoff).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if isCascadeChild(f.DirectoryID, f.DeletedAt, deletedDirs) {
			continue
		}
		items = append(items, &TrashItem{
			ItemType:  "file",
			ItemID:    f.ID,
			Name:      f.Filename,
			Path:      f.Path,
			DeletedBy: derefString(f.DeletedBy),
			DeletedAt: derefTime(f.DeletedAt),
			ExpiresAt: cutoff,
		})
	}

	return items, nil
}

// isCascadeChild reports whether an item's parent directory was deleted in
// the same cascade (same deletion instant), meaning the item is not a trash
// root itself.
func isCascadeChild(parentID *string, deletedAt *time.Time, deletedDirs map[string]*models.Directory) bool {
	if parentID == nil || deletedAt == nil {
		return false
	}
	parent, ok := deletedDirs[*parentID]
	if !ok || parent.DeletedAt == nil {
		return false
	}
	return parent.DeletedAt.Equal(*deletedAt)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
