package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/obs"
)

// HeaderStoreID selects the store a request is scoped to.
const HeaderStoreID = "X-Store-ID"

type contextKey string

const storeContextKey contextKey = "tenant.store_id"

// Resolver resolves the store identifier from HTTP requests using either a header or the subdomain.
type Resolver struct {
	HeaderName   string
	RootDomain   string
	DefaultStore string
}

// NewResolver returns a resolver configured with the provided root domain and default store.
func NewResolver(rootDomain, defaultStore string) *Resolver {
	return &Resolver{
		HeaderName:   HeaderStoreID,
		RootDomain:   strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultStore: strings.TrimSpace(defaultStore),
	}
}

// Middleware resolves the store from the request and injects it into the context passed downstream.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		storeID := r.Resolve(req)
		if storeID == "" {
			storeID = r.DefaultStore
		}
		if storeID != "" {
			obs.Annotate(req, "store_id", storeID)
			req = req.WithContext(WithStore(req.Context(), storeID))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve finds the store identifier from the configured header or the request subdomain.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	header := r.HeaderName
	if header == "" {
		header = HeaderStoreID
	}
	if storeID := strings.TrimSpace(req.Header.Get(header)); storeID != "" {
		return storeID
	}
	host := hostWithoutPort(req.Host)
	if host == "" || r.RootDomain == "" {
		return ""
	}
	return strings.TrimSpace(r.subdomainFromHost(host))
}

func (r *Resolver) subdomainFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || host == r.RootDomain {
		return ""
	}
	suffix := "." + r.RootDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	host = strings.TrimSuffix(host, suffix)
	parts := strings.Split(host, ".")
	if parts[0] == "www" {
		return ""
	}
	return parts[0]
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return hostport
}

// WithStore stores the store identifier inside the context.
func WithStore(ctx context.Context, storeID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, storeContextKey, storeID)
}

// FromContext extracts the store identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	storeID, ok := ctx.Value(storeContextKey).(string)
	if !ok {
		return "", false
	}
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return "", false
	}
	return storeID, true
}

// Scope returns the store identifier as an optional pointer for voucher scoping.
func Scope(ctx context.Context) *string {
	id, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return &id
}

// Key namespaces a cache key by the store on ctx.
func Key(ctx context.Context, parts ...string) string {
	key := strings.Join(parts, ":")
	if id, ok := FromContext(ctx); ok {
		return "store:" + id + ":" + key
	}
	return key
}
