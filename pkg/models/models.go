// Package models defines the persistent entities of the shelfd metadata
// store and the domain error values shared across services.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Library{},
		&Directory{},
		&File{},
		&FileVersion{},
		&ShareLink{},
		&AuditEvent{},
		&Notification{},
	}
}

// Actor types recorded on audit events.
const (
	ActorTypeUser   = "user"
	ActorTypeAI     = "ai"
	ActorTypeSystem = "system"
)
