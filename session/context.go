package session

import "context"

type contextKey struct{}

// NewContext returns a context carrying the given session. The auth
// middleware is the only provider; handlers and templates read the session
// back with FromContext or MustFromContext.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}

// MustFromContext returns the session carried by ctx. Accessing the session
// outside of the auth middleware is a programming error, so it fails fast
// instead of returning a default.
func MustFromContext(ctx context.Context) *Session {
	s, ok := FromContext(ctx)
	if !ok {
		panic("session.MustFromContext must be used within the session middleware")
	}
	return s
}
