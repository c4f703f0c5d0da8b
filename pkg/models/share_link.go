package models

import "time"

// Share target and access types.
const (
	ShareTargetFile      = "file"
	ShareTargetDirectory = "directory"
	ShareTargetLibrary   = "library"

	ShareTypeView     = "view"
	ShareTypeDownload = "download"
	ShareTypeEdit     = "edit"
)

// ShareLink is an externally addressable capability referring to a target
// within a library. The token is the capability; everything else narrows it.
type ShareLink struct {
	ID    string `gorm:"primaryKey;size:36" json:"id"`
	Token string `gorm:"uniqueIndex;not null;size:64" json:"token"`

	TargetType string `gorm:"not null;size:16" json:"target_type"` // file, directory, library
	TargetID   string `gorm:"not null;size:36;index" json:"target_id"`
	LibraryID  string `gorm:"not null;size:36;index" json:"library_id"`
	ShareType  string `gorm:"not null;size:16;default:view" json:"share_type"` // view, download, edit

	// PasswordHash is a salted bcrypt hash; empty means no password.
	PasswordHash string `gorm:"size:255" json:"-"`

	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	MaxAccessCount *int       `json:"max_access_count,omitempty"`
	AccessCount    int        `gorm:"not null;default:0" json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	AllowGuestAccess bool `gorm:"default:false" json:"allow_guest_access"`
	NotifyOnAccess   bool `gorm:"default:false" json:"notify_on_access"`
	IsActive         bool `gorm:"default:true;index" json:"is_active"`

	CreatedBy string    `gorm:"not null;size:36" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for ShareLink.
func (ShareLink) TableName() string {
	return "share_links"
}

// IsExpired reports whether the link's expiry, if any, has passed.
func (s *ShareLink) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// IsConsumed reports whether the link's access budget, if any, is used up.
func (s *ShareLink) IsConsumed() bool {
	return s.MaxAccessCount != nil && s.AccessCount >= *s.MaxAccessCount
}

// HasPassword reports whether access requires password verification.
func (s *ShareLink) HasPassword() bool {
	return s.PasswordHash != ""
}
