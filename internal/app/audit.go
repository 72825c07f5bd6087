package app

import (
	"context"

	"gopherblog/internal/logging"
	"gopherblog/internal/model"
)

type AuthEventPublisher interface {
	Publish(ctx context.Context, event model.AuthEvent) error
}

type ctxKey int

const clientIPKey ctxKey = iota

// WithClientIP attaches the caller address for the audit trail.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// publishEvent is best-effort: a broker outage must not change the outcome
// of the authentication step, but it is always logged.
func publishEvent(ctx context.Context, pub AuthEventPublisher, logger logging.Logger, event model.AuthEvent) {
	if pub == nil {
		return
	}
	event.ClientIP = clientIP(ctx)
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn(ctx, "publish auth event failed", "kind", event.Kind, "error", err)
	}
}
