package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// CartHeader carries the guest or user cart identifier.
const CartHeader = "X-Cart-ID"

// Middleware builds a Session for each request.
type Middleware struct {
	Verifier     *Verifier
	AccessCookie string
}

// Authenticate attaches a session to the request context. Requests without a
// token, or with an invalid one, continue anonymously.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := m.sessionFor(r)
		obs.Annotate(r, "user_id", s.UserID)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireAuth enforces that a valid token is present before executing the next handler.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.sessionFor(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.JSONError(w, http.StatusUnauthorized, appErr.Code, appErr.Message, nil)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		obs.Annotate(r, "user_id", s.UserID)
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireRole rejects authenticated callers lacking every one of roles. It
// must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			if !ok || !s.Authenticated() {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			if !s.HasRole(roles...) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errNoToken = common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, errors.New("session: token missing"))

func (m Middleware) sessionFor(r *http.Request) (Session, error) {
	anon := Session{CartID: strings.TrimSpace(r.Header.Get(CartHeader))}
	if m.Verifier == nil {
		return anon, errors.New("session: verifier not configured")
	}
	token := m.extractToken(r)
	if token == "" {
		return anon, errNoToken
	}
	s, err := m.Verifier.Parse(token)
	if err != nil {
		return anon, err
	}
	s.CartID = anon.CartID
	return s, nil
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.AccessCookie != "" {
		if cookie, err := r.Cookie(m.AccessCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
