package models

import "time"

// File is the metadata row for a versioned blob. The blob bytes live in the
// library's bucket under StorageKey; every historical version keeps its own
// immutable key.
type File struct {
	ID        string  `gorm:"primaryKey;size:36" json:"id"`
	LibraryID string  `gorm:"not null;size:36;index:idx_file_sibling,priority:1" json:"library_id"`
	// DirectoryID is nil for files at the library root.
	DirectoryID *string `gorm:"size:36;index:idx_file_sibling,priority:2" json:"directory_id,omitempty"`
	Filename    string  `gorm:"not null;size:255;index:idx_file_sibling,priority:3" json:"filename"`
	// Path is the containing directory's full path ("/" at root).
	Path string `gorm:"not null;size:4096;index" json:"path"`

	SizeBytes      int64  `gorm:"not null" json:"size_bytes"`
	ChecksumSHA256 string `gorm:"size:64" json:"checksum_sha256"`
	ContentType    string `gorm:"size:255" json:"content_type"`
	StorageKey     string `gorm:"not null;size:4096" json:"storage_key"`

	// CurrentVersion equals max(version_number) over the file's versions.
	CurrentVersion int `gorm:"not null;default:1" json:"current_version"`

	CreatedBy  string `gorm:"not null;size:36" json:"created_by"`
	ModifiedBy string `gorm:"size:36" json:"modified_by"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Soft-delete trio
	IsDeleted bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `gorm:"size:36" json:"deleted_by,omitempty"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// FullPath returns the file's absolute path within its library.
func (f *File) FullPath() string {
	if f.Path == "/" {
		return "/" + f.Filename
	}
	return f.Path + "/" + f.Filename
}

// FileVersion is an immutable historical blob reference. Rows are never
// updated and storage keys are never reused.
type FileVersion struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	FileID        string `gorm:"not null;size:36;uniqueIndex:idx_file_version,priority:1" json:"file_id"`
	VersionNumber int    `gorm:"not null;uniqueIndex:idx_file_version,priority:2" json:"version_number"`

	SizeBytes      int64  `gorm:"not null" json:"size_bytes"`
	ChecksumSHA256 string `gorm:"size:64" json:"checksum_sha256"`
	StorageKey     string `gorm:"not null;size:4096" json:"storage_key"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	CreatedBy string    `gorm:"not null;size:36" json:"created_by"`
	Comment   string    `gorm:"type:text" json:"comment,omitempty"`
}

// TableName returns the table name for FileVersion.
func (FileVersion) TableName() string {
	return "file_versions"
}
