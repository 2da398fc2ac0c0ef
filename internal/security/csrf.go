package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// CSRF applies double-submit protection to requests authenticated by the
// access cookie. Bearer requests and requests without the cookie pass.
type CSRF struct {
	Header       string
	AccessCookie string
}

// Middleware rejects unsafe cookie-authenticated requests whose CSRF header
// does not match the CSRF cookie.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") || !c.usesCookie(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		cookie, err := r.Cookie(headerName)
		if token == "" || err != nil || cookie.Value == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_REQUIRED", "missing csrf token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_MISMATCH", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c CSRF) usesCookie(r *http.Request) bool {
	if c.AccessCookie == "" {
		return false
	}
	cookie, err := r.Cookie(c.AccessCookie)
	return err == nil && strings.TrimSpace(cookie.Value) != ""
}
