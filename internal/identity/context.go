package identity

import "context"

type sessionContextKey struct{}
type resolutionContextKey struct{}

// ContextWithSession attaches the caller's session so data stores can forward its token.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session previously attached.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}

// ContextWithResolution attaches the resolved identity.
func ContextWithResolution(ctx context.Context, r Resolution) context.Context {
	return context.WithValue(ctx, resolutionContextKey{}, &r)
}

// ResolutionFromContext extracts the resolved identity.
func ResolutionFromContext(ctx context.Context) (Resolution, bool) {
	if ctx == nil {
		return Resolution{}, false
	}
	v, ok := ctx.Value(resolutionContextKey{}).(*Resolution)
	if !ok || v == nil {
		return Resolution{}, false
	}
	return *v, true
}

// FromContext returns the resolved identity or Unauthenticated.
func FromContext(ctx context.Context) Identity {
	if r, ok := ResolutionFromContext(ctx); ok && r.Identity != nil {
		return r.Identity
	}
	return Unauthenticated{}
}
