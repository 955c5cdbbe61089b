package domain

import "time"

// AuditLog represents an audit event.
type AuditLog struct {
	ID        string
	UserID    string // empty for events with no resolved user
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
