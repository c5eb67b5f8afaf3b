package goProfile

import "context"

type callerContextKey struct{}
type clientIPContextKey struct{}

// WithCaller returns a context carrying the calling principal. Gated
// operations read the caller from here.
func WithCaller(ctx context.Context, caller Principal) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller set by [WithCaller].
func CallerFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(callerContextKey{}).(Principal)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithClientIP returns a context carrying the client IP used by the
// registration throttle and audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(clientIPContextKey{}).(string)
	return v
}
