package domain

import "time"

// AuditEntry is an append-only record of a mutation.
type AuditEntry struct {
	ID         string
	ActorID    *string
	ActorType  *SubjectType
	Action     string
	EntityType string
	EntityID   string
	OldValues  map[string]any
	NewValues  map[string]any
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}
