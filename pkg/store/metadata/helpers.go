package metadata

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// Generic GORM Helpers
// ============================================================================
//
// These helpers reduce repetitive CRUD boilerplate across store implementation
// files. They are unexported (package-internal) and operate on the raw *gorm.DB
// to avoid coupling to GORMStore. Each helper handles standard concerns like
// context propagation, not-found error conversion, and unique constraint
// detection.

// getByID retrieves a single live (non-soft-deleted) record of type T by id.
// Converts gorm.ErrRecordNotFound to the provided notFoundErr.
func getByID[T any](db *gorm.DB, ctx context.Context, id string, notFoundErr error) (*T, error) {
	var result T
	err := db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&result).Error
	if err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// getAnyByID retrieves a record of type T by id regardless of soft-delete
// state. Trash and restore paths need to see deleted rows.
func getAnyByID[T any](db *gorm.DB, ctx context.Context, id string, notFoundErr error) (*T, error) {
	var result T
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error
	if err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// createWithID generates a UUID for the entity if it has no ID, then creates
// it in the database. The idSetter callback sets the generated ID on the entity.
// Unique constraint violations are converted to dupErr.
func createWithID[T any](db *gorm.DB, ctx context.Context, entity *T, idSetter func(*T, string), currentID string, dupErr error) (string, error) {
	id := currentID
	if id == "" {
		id = uuid.New().String()
		idSetter(entity, id)
	}
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", dupErr
		}
		return "", err
	}
	return id, nil
}

// nullableEquals builds a GORM condition matching a nullable column against a
// *string value. SQL NULL never equals NULL, so the nil case needs IS NULL.
func nullableEquals(q *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where(column+" = ?", *value)
}
