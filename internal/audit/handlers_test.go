package audit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/session"
)

func TestHandlerList(t *testing.T) {
	store := &stubStore{logs: []Log{{Action: "payment.initiate", Method: "POST"}}}
	h := Handler{Service: &Service{Store: store, Enabled: true}}

	req := httptest.NewRequest(http.MethodGet, "/audit?limit=25&offset=10&store_id=store-a", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 25, store.lastFilter.Limit)
	require.Equal(t, 10, store.lastFilter.Offset)
	require.Equal(t, "store-a", *store.lastFilter.StoreID)

	var payload struct {
		Data []Log `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)

	req = httptest.NewRequest(http.MethodGet, "/audit?limit=5000", nil)
	rr = httptest.NewRecorder()
	h.List(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 50, store.lastFilter.Limit)
}

func TestHandlerListNotConfigured(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler{}.List(rr, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHTTPRecorderMiddleware(t *testing.T) {
	store := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.With(rec.Middleware(HTTPConfig{
		Action:          "order.cancel",
		ResourceType:    "order",
		ResourceIDParam: "id",
		MetadataFunc: func(_ *http.Request, status int) map[string]any {
			return map[string]any{"status": status}
		},
	})).Post("/orders/{id}/cancel", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/orders/o-1/cancel", nil)
	req = req.WithContext(session.WithSession(req.Context(), session.Session{UserID: "u-1"}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.True(t, store.called)
	require.Equal(t, "order.cancel", store.lastInsert.Action)
	require.Equal(t, "o-1", *store.lastInsert.ResourceID)
	require.Equal(t, "u-1", *store.lastInsert.Actor.UserID)
	require.Equal(t, http.StatusAccepted, store.lastInsert.Status)
	require.JSONEq(t, `{"status":202}`, string(store.lastInsert.Metadata))
}

func TestHTTPRecorderDefaultMetadata(t *testing.T) {
	store := &stubStore{}
	rec := HTTPRecorder{Service: &Service{Store: store, Enabled: true}}

	r := chi.NewRouter()
	r.With(rec.Middleware(HTTPConfig{Action: "admin.inventory.report", ResourceType: "inventory"})).
		Get("/reports/inventory", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})

	req := httptest.NewRequest(http.MethodGet, "/reports/inventory", nil)
	req.Header.Set("Idempotency-Key", "k-1")
	req = req.WithContext(session.WithSession(req.Context(), session.Session{UserID: "adm", Roles: []string{"admin"}}))
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, store.called)
	require.Equal(t, http.StatusOK, store.lastInsert.Status)
	require.JSONEq(t, `{"idempotency_key":"k-1","roles":["admin"]}`, string(store.lastInsert.Metadata))

	store.called = false
	anon := httptest.NewRequest(http.MethodGet, "/reports/inventory", nil)
	r.ServeHTTP(httptest.NewRecorder(), anon)
	require.True(t, store.called)
	require.Equal(t, ActorKindAnonymous, store.lastInsert.Actor.Kind)
	require.Nil(t, store.lastInsert.Metadata)
}
