package models

import "time"

// Directory is a node in the namespace tree rooted at a library.
//
// Path is denormalized: it holds the parent's full path ("/" at the library
// root). Rename and move rewrite Path on every descendant directory and file
// within the same transaction.
type Directory struct {
	ID        string  `gorm:"primaryKey;size:36" json:"id"`
	LibraryID string  `gorm:"not null;size:36;index:idx_dir_sibling,priority:1" json:"library_id"`
	ParentID  *string `gorm:"size:36;index:idx_dir_sibling,priority:2" json:"parent_id,omitempty"`
	Name      string  `gorm:"not null;size:255;index:idx_dir_sibling,priority:3" json:"name"`
	Path      string  `gorm:"not null;size:4096;index" json:"path"`
	CreatedBy string  `gorm:"not null;size:36" json:"created_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Soft-delete trio
	IsDeleted bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `gorm:"size:36" json:"deleted_by,omitempty"`
}

// TableName returns the table name for Directory.
func (Directory) TableName() string {
	return "directories"
}

// FullPath returns the directory's own absolute path: the parent path joined
// with the directory name.
func (d *Directory) FullPath() string {
	if d.Path == "/" {
		return "/" + d.Name
	}
	return d.Path + "/" + d.Name
}
