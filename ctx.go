package auth

import "context"

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSessionContext sets the session in the given context
func WithSessionContext(ctx context.Context, session *SessionView) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session stored by ProtectedRoute or
// OptionalSession. Handlers that only see a context.Context use this
// instead of GetSession.
func SessionFromContext(ctx context.Context) (*SessionView, bool) {
	session, ok := ctx.Value(sessionCtxKey).(*SessionView)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}
