package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
)

// ZerologAuditLogger writes audit events as structured log lines on a
// dedicated "audit" channel.
type ZerologAuditLogger struct {
	log zerolog.Logger
}

// NewZerologAuditLogger creates a new audit logger
func NewZerologAuditLogger(log zerolog.Logger) *ZerologAuditLogger {
	return &ZerologAuditLogger{log: log.With().Str("channel", "audit").Logger()}
}

// LogEvent implements domain.AuditLogger
func (l *ZerologAuditLogger) LogEvent(ctx context.Context, event *domain.AuditEvent) {
	if event == nil {
		return
	}
	var e *zerolog.Event
	if event.Success {
		e = l.log.Info()
	} else {
		e = l.log.Warn().Str("error", event.ErrorMsg)
	}

	e = e.Str("event", string(event.EventType)).
		Time("at", event.Timestamp).
		Bool("success", event.Success)
	if event.AccountID != 0 {
		e = e.Uint("account_id", event.AccountID)
	}
	if event.Role != "" {
		e = e.Str("role", string(event.Role))
	}
	if event.Phone != "" {
		e = e.Str("phone", event.Phone)
	}
	if event.Email != "" {
		e = e.Str("email", event.Email)
	}
	if len(event.Metadata) > 0 {
		e = e.Fields(event.Metadata)
	}
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		e = e.Str("request_id", id)
	}
	e.Msg("audit")
}

// RequestIDKey is the context key under which the HTTP layer stores the
// request id.
type RequestIDKey struct{}

var _ domain.AuditLogger = (*ZerologAuditLogger)(nil)
