package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"authsession/internal/telemetry"
	"authsession/internal/telemetry/domain"
)

const instrumentationName = "authsession/session"

// recordEmitter is the part of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record and emits it. Failed logins are recorded at WARN.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(severity(event.Type))
	rec.SetBody(otellog.StringValue(event.Type))
	addString(&rec, "event_type", event.Type)
	addString(&rec, "user_id", event.UserID)
	addString(&rec, "login_name", event.LoginName)
	addString(&rec, "source", event.Source)
	addString(&rec, "reason", event.Reason)
	e.logger.Emit(ctx, rec)
	return nil
}

func addString(rec *otellog.Record, key, value string) {
	if value != "" {
		rec.AddAttributes(otellog.String(key, value))
	}
}

func severity(eventType string) otellog.Severity {
	switch eventType {
	case domain.EventLoginFailure, domain.EventLoginDisabled, domain.EventLoginRefused,
		domain.EventForcedLogout, domain.EventCookieReuse:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
