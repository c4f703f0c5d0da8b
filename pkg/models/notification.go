package models

import "time"

// Notification kinds dispatched by the notification service.
const (
	NotificationShareAccessed  = "share_accessed"
	NotificationFileUploaded   = "file_uploaded"
	NotificationTrashExpiring  = "trash_expiring"
	NotificationLibraryShared  = "library_shared"
	NotificationIndexCompleted = "index_completed"
)

// Notification is an in-app notification record for a single user. Email
// dispatch is best-effort and tracked separately via EmailSentAt.
type Notification struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;size:36;index:idx_notif_user,priority:1" json:"user_id"`

	Kind    string `gorm:"not null;size:32" json:"kind"`
	Title   string `gorm:"not null;size:255" json:"title"`
	Message string `gorm:"type:text" json:"message"`

	// Optional references back to the subject of the notification.
	LibraryID  *string `gorm:"size:36" json:"library_id,omitempty"`
	TargetType string  `gorm:"size:32" json:"target_type,omitempty"`
	TargetID   string  `gorm:"size:36" json:"target_id,omitempty"`

	IsRead      bool       `gorm:"default:false;index:idx_notif_user,priority:2" json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_notif_user,priority:3" json:"created_at"`
}

// TableName returns the table name for Notification.
func (Notification) TableName() string {
	return "notifications"
}
