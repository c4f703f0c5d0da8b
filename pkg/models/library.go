package models

import "time"

// Library is the top-level tenant container. Each library owns a namespace
// tree of directories and files, one object-store bucket, and one vector
// collection.
type Library struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Name        string `gorm:"not null;size:255" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// BucketName is derived from the library id at creation and never
	// changes afterwards. It satisfies S3 naming constraints: lowercase,
	// 3-63 chars, no underscores.
	BucketName string `gorm:"uniqueIndex;not null;size:63" json:"bucket_name"`

	OwnerID   string `gorm:"not null;size:36;index" json:"owner_id"`
	CreatedBy string `gorm:"not null;size:36" json:"created_by"`

	// MCPWriteEnabled gates agent write tools on top of the per-library
	// policy; both must allow a write for it to proceed.
	MCPWriteEnabled bool `gorm:"default:false" json:"mcp_write_enabled"`

	// MaxFileSizeBytes overrides the global upload ceiling when set.
	MaxFileSizeBytes *int64 `json:"max_file_size_bytes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Soft-delete trio
	IsDeleted bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `gorm:"size:36" json:"deleted_by,omitempty"`
}

// TableName returns the table name for Library.
func (Library) TableName() string {
	return "libraries"
}

// MaxFileSize returns the library's size ceiling, falling back to the given
// global limit when the library has no override.
func (l *Library) MaxFileSize(global int64) int64 {
	if l.MaxFileSizeBytes != nil && *l.MaxFileSizeBytes > 0 {
		return *l.MaxFileSizeBytes
	}
	return global
}
