package session

import (
	"context"
	"net/http"
	"slices"
)

// Roles understood by the storefront.
const (
	RoleCustomer   = "customer"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Session carries the caller's credentials for a single request. It is passed
// explicitly to every backend call instead of being read from shared state.
type Session struct {
	Token   string
	UserID  string
	Roles   []string
	StoreID string
	CartID  string
}

// Authenticated reports whether the session carries a verified token.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.UserID != ""
}

// HasRole reports whether the session holds any of the given roles. Super
// admins implicitly hold every role.
func (s Session) HasRole(roles ...string) bool {
	if slices.Contains(s.Roles, RoleSuperAdmin) {
		return true
	}
	for _, role := range roles {
		if slices.Contains(s.Roles, role) {
			return true
		}
	}
	return false
}

// StoreScope returns the store the session is bound to, or nil.
func (s Session) StoreScope() *string {
	if s.StoreID == "" {
		return nil
	}
	id := s.StoreID
	return &id
}

type ctxKey struct{}

// WithSession stores the session on ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext extracts the session attached by the middleware. The zero
// Session is returned for anonymous requests.
func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// UserID is a shorthand used by loggers and rate limiters.
func UserID(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}

// FromRequest returns the session attached to r, or an anonymous session.
func FromRequest(r *http.Request) Session {
	s, _ := FromContext(r.Context())
	return s
}
