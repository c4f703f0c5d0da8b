package metadata

import (
	"context"
	"time"

	"github.com/shelfd/shelfd/pkg/models"
)

// Store provides the metadata persistence interface.
//
// This interface defines all operations for managing libraries, directories,
// files, versions, share links, notifications, and the audit log.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines.
//
// "Live" in the method docs means not soft-deleted. Trash and restore paths
// use the Any variants that see deleted rows.
type Store interface {
	// ============================================
	// LIBRARY OPERATIONS
	// ============================================

	// CreateLibrary creates a new library, generating the ID if empty.
	// Returns models.ErrDuplicateLibrary if the bucket name collides.
	CreateLibrary(ctx context.Context, library *models.Library) (string, error)

	// GetLibrary returns a live library by id.
	GetLibrary(ctx context.Context, id string) (*models.Library, error)

	// GetAnyLibrary returns a library regardless of soft-delete state.
	GetAnyLibrary(ctx context.Context, id string) (*models.Library, error)

	// GetLibraryByName returns a live library owned by ownerID with the name.
	GetLibraryByName(ctx context.Context, ownerID, name string) (*models.Library, error)

	// ListLibraries returns all live libraries.
	ListLibraries(ctx context.Context) ([]*models.Library, error)

	// ListLibrariesByOwner returns a user's live libraries.
	ListLibrariesByOwner(ctx context.Context, ownerID string) ([]*models.Library, error)

	// UpdateLibrary updates mutable library fields.
	UpdateLibrary(ctx context.Context, library *models.Library) error

	// SoftDeleteLibrary marks a library deleted.
	SoftDeleteLibrary(ctx context.Context, id, actorID string, now time.Time) error

	// PermanentDeleteLibrary removes a library and all dependent rows.
	PermanentDeleteLibrary(ctx context.Context, id string) error

	// ============================================
	// DIRECTORY OPERATIONS
	// ============================================

	// CreateDirectory creates a directory, enforcing sibling uniqueness.
	CreateDirectory(ctx context.Context, dir *models.Directory) (string, error)

	// GetDirectory returns a live directory by id.
	GetDirectory(ctx context.Context, id string) (*models.Directory, error)

	// GetAnyDirectory returns a directory regardless of soft-delete state.
	GetAnyDirectory(ctx context.Context, id string) (*models.Directory, error)

	// ListDirectories returns live children of a parent (nil for root).
	ListDirectories(ctx context.Context, libraryID string, parentID *string) ([]*models.Directory, error)

	// RenameDirectory renames and rewrites descendant paths.
	RenameDirectory(ctx context.Context, id, newName string) (*models.Directory, error)

	// MoveDirectory reparents and rewrites descendant paths.
	// Returns models.ErrInvalidMoveTarget on move-into-self/descendant.
	MoveDirectory(ctx context.Context, id string, newParentID *string) (*models.Directory, error)

	// SoftDeleteDirectory cascades the soft-delete trio over the subtree.
	SoftDeleteDirectory(ctx context.Context, id, actorID string, now time.Time) error

	// RestoreDirectory un-deletes a subtree deleted in one cascade.
	RestoreDirectory(ctx context.Context, id string, parentID *string, parentPath string) (*models.Directory, error)

	// PermanentDeleteDirectory removes an already-emptied directory row.
	PermanentDeleteDirectory(ctx context.Context, id string) error

	// ListChildDirectoriesAny lists children including soft-deleted rows.
	ListChildDirectoriesAny(ctx context.Context, parentID string) ([]*models.Directory, error)

	// ListFilesInDirectoryAny lists files including soft-deleted rows.
	ListFilesInDirectoryAny(ctx context.Context, directoryID string) ([]*models.File, error)

	// ============================================
	// FILE OPERATIONS
	// ============================================

	// CreateFileWithVersion inserts a file and its version 1 atomically,
	// assigning the version's storage key inside the transaction.
	CreateFileWithVersion(ctx context.Context, file *models.File, version *models.FileVersion) (string, error)

	// CommitFileVersion bumps current_version and inserts the version row.
	// The version number and storage key are resolved inside the
	// transaction; a committed version's key is never reused.
	CommitFileVersion(ctx context.Context, fileID string, update *models.File, version *models.FileVersion) (*models.File, error)

	// GetFile returns a live file by id.
	GetFile(ctx context.Context, id string) (*models.File, error)

	// GetAnyFile returns a file regardless of soft-delete state.
	GetAnyFile(ctx context.Context, id string) (*models.File, error)

	// GetFileByName returns the live file with the name in a directory.
	GetFileByName(ctx context.Context, libraryID string, directoryID *string, filename string) (*models.File, error)

	// ListFiles returns live files in a directory (nil for root).
	ListFiles(ctx context.Context, libraryID string, directoryID *string) ([]*models.File, error)

	// ListLibraryFiles returns all live files in a library.
	ListLibraryFiles(ctx context.Context, libraryID string) ([]*models.File, error)

	// RenameFile renames a file, enforcing sibling uniqueness.
	RenameFile(ctx context.Context, id, newFilename, actorID string) (*models.File, error)

	// MoveFile moves a file to another directory.
	MoveFile(ctx context.Context, id string, newDirectoryID *string, actorID string) (*models.File, error)

	// SoftDeleteFile marks a file deleted.
	SoftDeleteFile(ctx context.Context, id, actorID string, now time.Time) error

	// RestoreFile clears the soft-delete trio.
	RestoreFile(ctx context.Context, id string, directoryID *string, path string) (*models.File, error)

	// PermanentDeleteFile removes a file row and its versions.
	PermanentDeleteFile(ctx context.Context, id string) error

	// ListFileVersions returns versions newest first.
	ListFileVersions(ctx context.Context, fileID string) ([]*models.FileVersion, error)

	// GetFileVersion returns one version of a file.
	GetFileVersion(ctx context.Context, fileID string, versionNumber int) (*models.FileVersion, error)

	// ============================================
	// TRASH QUERIES
	// ============================================

	// ListTrash returns a library's restorable trash roots.
	ListTrash(ctx context.Context, libraryID string, retention time.Duration) ([]*TrashItem, error)

	// ListExpiredTrash returns trash roots past the retention cutoff.
	ListExpiredTrash(ctx context.Context, cutoff time.Time) ([]*TrashItem, error)

	// ============================================
	// SHARE LINK OPERATIONS
	// ============================================

	// CreateShareLink creates a share link.
	CreateShareLink(ctx context.Context, link *models.ShareLink) (string, error)

	// GetShareLink returns a share link by id.
	GetShareLink(ctx context.Context, id string) (*models.ShareLink, error)

	// GetShareLinkByToken returns a share link by token.
	GetShareLinkByToken(ctx context.Context, token string) (*models.ShareLink, error)

	// ListShareLinks returns a library's share links.
	ListShareLinks(ctx context.Context, libraryID string) ([]*models.ShareLink, error)

	// ListShareLinksByCreator returns the links a user created.
	ListShareLinksByCreator(ctx context.Context, createdBy string) ([]*models.ShareLink, error)

	// RevokeShareLink deactivates a share link.
	RevokeShareLink(ctx context.Context, id string) error

	// RecordShareAccess increments the access counter atomically.
	RecordShareAccess(ctx context.Context, id string, now time.Time) error

	// DeleteShareLink removes a share link row.
	DeleteShareLink(ctx context.Context, id string) error

	// ============================================
	// AUDIT LOG OPERATIONS
	// ============================================

	// AppendAuditEvent inserts one audit event.
	AppendAuditEvent(ctx context.Context, event *models.AuditEvent) error

	// ListAuditEventsByCorrelation returns events oldest first.
	ListAuditEventsByCorrelation(ctx context.Context, correlationID string) ([]*models.AuditEvent, error)

	// ListAuditEventsByLibrary returns a library's events newest first.
	ListAuditEventsByLibrary(ctx context.Context, libraryID string, limit int) ([]*models.AuditEvent, error)

	// ListAuditEventsByActor returns an actor's events newest first.
	ListAuditEventsByActor(ctx context.Context, actorID string, limit int) ([]*models.AuditEvent, error)

	// ListAuditEventsByTarget returns an entity's events newest first.
	ListAuditEventsByTarget(ctx context.Context, targetType, targetID string, limit int) ([]*models.AuditEvent, error)

	// ============================================
	// NOTIFICATION OPERATIONS
	// ============================================

	// CreateNotification inserts one notification.
	CreateNotification(ctx context.Context, notification *models.Notification) (string, error)

	// ListNotifications returns a user's notifications newest first.
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error)

	// CountUnreadNotifications returns the unread count.
	CountUnreadNotifications(ctx context.Context, userID string) (int64, error)

	// MarkNotificationRead marks one notification read.
	MarkNotificationRead(ctx context.Context, id, userID string, now time.Time) error

	// MarkAllNotificationsRead marks all unread notifications read.
	MarkAllNotificationsRead(ctx context.Context, userID string, now time.Time) (int64, error)

	// MarkNotificationEmailSent stamps the email dispatch time.
	MarkNotificationEmailSent(ctx context.Context, id string, now time.Time) error

	// DeleteNotification removes one notification.
	DeleteNotification(ctx context.Context, id, userID string) error

	// Close releases the underlying database connection.
	Close() error
}

// Interface satisfaction check.
var _ Store = (*GORMStore)(nil)
