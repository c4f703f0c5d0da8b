package metadata

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/shelfd/shelfd/pkg/models"
)

// ============================================
// SHARE LINK OPERATIONS
// ============================================

// CreateShareLink creates a share link. The ID is generated if empty.
func (s *GORMStore) CreateShareLink(ctx context.Context, link *models.ShareLink) (string, error) {
	link.CreatedAt = time.Now()
	return createWithID(s.db, ctx, link, func(l *models.ShareLink, id string) { l.ID = id }, link.ID, models.ErrShareLinkNotFound)
}

// GetShareLink returns a share link by id.
func (s *GORMStore) GetShareLink(ctx context.Context, id string) (*models.ShareLink, error) {
	var link models.ShareLink
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrShareLinkNotFound)
	}
	return &link, nil
}

// GetShareLinkByToken returns a share link by its capability token.
func (s *GORMStore) GetShareLinkByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	var link models.ShareLink
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&link).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrShareLinkNotFound)
	}
	return &link, nil
}

// ListShareLinks returns all share links in a library, newest first.
func (s *GORMStore) ListShareLinks(ctx context.Context, libraryID string) ([]*models.ShareLink, error) {
	var links []*models.ShareLink
	err := s.db.WithContext(ctx).
		Where("library_id = ?", libraryID).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// ListShareLinksByCreator returns the share links a user created, newest
// first.
func (s *GORMStore) ListShareLinksByCreator(ctx context.Context, createdBy string) ([]*models.ShareLink, error) {
	var links []*models.ShareLink
	err := s.db.WithContext(ctx).
		Where("created_by = ?", createdBy).
		Order("created_at DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// RevokeShareLink deactivates a share link. Revocation is permanent; create
// a new link to re-share.
func (s *GORMStore) RevokeShareLink(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.ShareLink{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrShareLinkNotFound
	}
	return nil
}

// RecordShareAccess atomically increments the access counter and stamps the
// access time. The guard re-checks the access budget inside the update so
// two concurrent accesses cannot overshoot max_access_count.
func (s *GORMStore) RecordShareAccess(ctx context.Context, id string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link models.ShareLink
		if err := tx.Where("id = ?", id).First(&link).Error; err != nil {
			return convertNotFoundError(err, models.ErrShareLinkNotFound)
		}
		if link.IsConsumed() {
			return models.ErrShareLinkConsumed
		}

		result := tx.Model(&models.ShareLink{}).
			Where("id = ? AND access_count = ?", id, link.AccessCount).
			Updates(map[string]any{
				"access_count":     link.AccessCount + 1,
				"last_accessed_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Concurrent access won the increment; retry against fresh state.
			return models.ErrShareLinkConsumed
		}
		return nil
	})
}

// DeleteShareLink removes a share link row.
func (s *GORMStore) DeleteShareLink(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ShareLink{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrShareLinkNotFound
	}
	return nil
}
