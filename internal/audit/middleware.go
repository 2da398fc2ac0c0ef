package audit

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// HTTPRecorder writes an audit entry for every request that reaches the
// wrapped handler, after the response has been sent.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig describes the audited action of a route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	// MetadataFunc adds route specific fields; it sees the final status.
	MetadataFunc func(r *http.Request, status int) map[string]any
}

// Middleware records cfg.Action for the route it wraps.
func (h HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.Service == nil || !h.Service.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			var resourceID string
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(r, cfg.ResourceIDParam)
			}
			sess := session.FromRequest(r)
			err := h.Service.Record(r.Context(), UserActor(sess.UserID), cfg.Action, cfg.ResourceType, resourceID, r, status, metadata(cfg, r, sess, status))
			if err != nil && h.OnError != nil {
				h.OnError(err)
			}
		})
	}
}

func metadata(cfg HTTPConfig, r *http.Request, sess session.Session, status int) []byte {
	fields := map[string]any{}
	if key := strings.TrimSpace(r.Header.Get(common.IdempotencyHeader)); key != "" {
		fields["idempotency_key"] = key
	}
	if len(sess.Roles) > 0 {
		fields["roles"] = sess.Roles
	}
	if cfg.MetadataFunc != nil {
		for k, v := range cfg.MetadataFunc(r, status) {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		return nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return data
}
