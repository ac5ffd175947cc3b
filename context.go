package flashauth

import "context"

type clientIPContextKey struct{}
type refererContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine records
// it on signup and includes it in audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithReferer attaches the caller-supplied referer to ctx. Verification
// links are built against it; the configured frontend URL is used when
// absent.
func WithReferer(ctx context.Context, referer string) context.Context {
	return context.WithValue(ctx, refererContextKey{}, referer)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func refererFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	referer, _ := ctx.Value(refererContextKey{}).(string)
	return referer
}
