package audit

import (
	"context"
	"encoding/json"

	"authsession/internal/telemetry"
	"authsession/internal/telemetry/domain"
)

// ActionResource holds the audit action and resource for an authentication event.
type ActionResource struct {
	Action   string
	Resource string
}

// Resources recorded in audit_logs.
const (
	ResourceSession       = "session"
	ResourceLoginToken    = "login_token"
	ResourceRememberToken = "remember_token"
	ResourceAccount       = "account"
)

// MapEvent returns action and resource for an event type. Unknown types keep their
// name as the action on resource "session".
func MapEvent(eventType string) ActionResource {
	switch eventType {
	case domain.EventCookieLogin:
		return ActionResource{Action: "login", Resource: ResourceRememberToken}
	case domain.EventCookieReuse:
		return ActionResource{Action: "reuse_detected", Resource: ResourceRememberToken}
	case domain.EventTokenLogin:
		return ActionResource{Action: "login", Resource: ResourceLoginToken}
	case domain.EventTokenIssued:
		return ActionResource{Action: "create", Resource: ResourceLoginToken}
	case domain.EventTokenRevoked:
		return ActionResource{Action: "revoke", Resource: ResourceLoginToken}
	case domain.EventPasswordChanged:
		return ActionResource{Action: "password_changed", Resource: ResourceAccount}
	case domain.EventLoginDisabled:
		return ActionResource{Action: "login_disabled", Resource: ResourceAccount}
	case "":
		return ActionResource{Action: "unknown", Resource: ResourceSession}
	default:
		return ActionResource{Action: eventType, Resource: ResourceSession}
	}
}

// NewEmitter returns an EventEmitter that writes each event as an audit log entry.
func NewEmitter(logger AuditLogger) telemetry.EventEmitter {
	return &emitter{logger: logger}
}

type emitter struct {
	logger AuditLogger
}

type eventMetadata struct {
	LoginName string `json:"login_name,omitempty"`
	Source    string `json:"source,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (e *emitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil || e.logger == nil {
		return nil
	}
	ar := MapEvent(event.Type)
	meta, err := json.Marshal(eventMetadata{LoginName: event.LoginName, Source: event.Source, Reason: event.Reason})
	if err != nil {
		return err
	}
	e.logger.LogEvent(ctx, event.UserID, ar.Action, ar.Resource, string(meta))
	return nil
}
