package models

import "errors"

// Domain errors. Adapters convert backend failures (gorm.ErrRecordNotFound,
// unique violations) into these so services and handlers never inspect
// driver error strings.
var (
	// Library errors
	ErrLibraryNotFound  = errors.New("library not found")
	ErrDuplicateLibrary = errors.New("library already exists")

	// Directory errors
	ErrDirectoryNotFound  = errors.New("directory not found")
	ErrDuplicateDirectory = errors.New("directory name already exists in parent")
	ErrInvalidMoveTarget  = errors.New("directory cannot be moved into itself or a descendant")

	// File errors
	ErrFileNotFound      = errors.New("file not found")
	ErrDuplicateFilename = errors.New("filename already exists in directory")
	ErrVersionNotFound   = errors.New("file version not found")

	// Upload errors
	ErrUploadNotFound    = errors.New("upload not found")
	ErrFileTooLarge      = errors.New("file exceeds maximum allowed size")
	ErrInvalidPartNumber = errors.New("part number out of range")
	ErrChecksumMismatch  = errors.New("client checksum does not match uploaded content")

	// Share link errors
	ErrShareLinkNotFound = errors.New("share link not found")
	ErrShareLinkExpired  = errors.New("share link has expired")
	ErrShareLinkRevoked  = errors.New("share link has been revoked")
	ErrShareLinkConsumed = errors.New("share link access limit reached")
	ErrSharePassword     = errors.New("share link password required or incorrect")

	// Trash errors
	ErrTrashItemExpired = errors.New("trash item past its retention window")
	ErrNotInTrash       = errors.New("item is not in the trash")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// Access errors
	ErrAccessDenied = errors.New("access denied")
)
