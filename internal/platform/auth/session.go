package auth

import (
	"context"
	"time"
)

type SessionState int

const (
	StateAnonymous SessionState = iota
	StateAuthenticated
	StateRevoked
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateRevoked:
		return "revoked"
	default:
		return "anonymous"
	}
}

// Session is the caller's auth state for one request. The middleware creates
// it and handlers read it with SessionFromContext; nothing else holds it.
type Session struct {
	State     SessionState
	ID        string
	UserID    string
	Role      string
	ExpiresAt time.Time
}

func Anonymous() *Session {
	return &Session{State: StateAnonymous}
}

func (s *Session) Authenticated() bool {
	return s != nil && s.State == StateAuthenticated
}

func (s *Session) IsDoctor() bool {
	return s.Authenticated() && s.Role == RoleDoctor
}

func (s *Session) IsPatient() bool {
	return s.Authenticated() && s.Role == RolePatient
}

// Revoke deletes the backing record. Revoking an anonymous or already
// revoked session is a no-op.
func (s *Session) Revoke(ctx context.Context, store SessionStore) error {
	if !s.Authenticated() {
		return nil
	}
	if err := store.Delete(ctx, s.ID); err != nil {
		return err
	}
	s.State = StateRevoked
	return nil
}

type contextKey string

const sessionKey contextKey = "session"

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext never returns nil.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok && s != nil {
		return s
	}
	return Anonymous()
}
