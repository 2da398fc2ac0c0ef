package security

import (
	"net/http"
	"strconv"
)

// Headers sets response headers for a JSON API that may carry personal data.
type Headers struct {
	// HSTSMaxAge enables Strict-Transport-Security on TLS requests when positive.
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// Middleware attaches the headers before the handler writes.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		// prices and orders are per caller; shared caches must not keep them
		if r.Header.Get("Authorization") != "" || len(r.Cookies()) > 0 {
			headers.Set("Cache-Control", "no-store")
		}
		if h.HSTSMaxAge > 0 && r.TLS != nil {
			value := "max-age=" + strconv.Itoa(h.HSTSMaxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}
