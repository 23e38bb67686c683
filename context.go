package authcore

import "context"

type ctxKey struct{ name string }

var (
	ctxKeyClientIP  = ctxKey{"client-ip"}
	ctxKeyUserAgent = ctxKey{"user-agent"}
	ctxKeyActor     = ctxKey{"actor"}
)

// WithClientIP attaches the caller's IP address for audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// WithUserAgent attaches the caller's user agent for audit records.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// WithActor attaches the authenticated account ID performing the
// operation. Audited operations run without an actor produce no record.
func WithActor(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxKeyActor, accountID)
}

func clientIPFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP).(string)
	return v
}

func userAgentFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}

func actorFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyActor).(string)
	return v
}
