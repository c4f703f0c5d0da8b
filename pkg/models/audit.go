package models

import (
	"encoding/json"
	"time"
)

// AuditEvent is an immutable append-only log record. Rows are inserted and
// queried, never updated or deleted.
type AuditEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Timestamp time.Time `gorm:"not null;index:idx_audit_library,priority:2;index:idx_audit_actor,priority:2;index:idx_audit_target,priority:3" json:"timestamp"`

	ActorType string `gorm:"not null;size:16" json:"actor_type"` // user, ai, system
	ActorID   string `gorm:"not null;size:36;index:idx_audit_actor,priority:1" json:"actor_id"`
	ActorName string `gorm:"size:255" json:"actor_name,omitempty"`

	Action     string `gorm:"not null;size:64" json:"action"`
	TargetType string `gorm:"not null;size:32;index:idx_audit_target,priority:1" json:"target_type"`
	TargetID   string `gorm:"not null;size:36;index:idx_audit_target,priority:2" json:"target_id"`

	LibraryID *string `gorm:"size:36;index:idx_audit_library,priority:1" json:"library_id,omitempty"`

	// Details is a JSON blob with action-specific context.
	Details string `gorm:"type:text" json:"-"`

	CorrelationID string `gorm:"not null;size:64;index" json:"correlation_id"`
	IPAddress     string `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent     string `gorm:"size:512" json:"user_agent,omitempty"`
}

// TableName returns the table name for AuditEvent.
func (AuditEvent) TableName() string {
	return "audit_events"
}

// SetDetails marshals the given map into the Details column.
func (e *AuditEvent) SetDetails(details map[string]any) error {
	if details == nil {
		e.Details = ""
		return nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return err
	}
	e.Details = string(data)
	return nil
}

// GetDetails unmarshals the Details column.
func (e *AuditEvent) GetDetails() (map[string]any, error) {
	if e.Details == "" {
		return map[string]any{}, nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(e.Details), &details); err != nil {
		return nil, err
	}
	return details, nil
}
