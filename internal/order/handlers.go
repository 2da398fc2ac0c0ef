package order

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Handler exposes customer order endpoints.
type Handler struct {
	Svc            *Service
	DefaultPerPage int
	MaxPerPage     int
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, h.DefaultPerPage, h.MaxPerPage)
	f := backend.OrderFilter{
		ListParams: backend.ListParams{Page: page, PerPage: perPage, Sort: r.URL.Query().Get("sort")},
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
	}
	views, pagination, err := h.Svc.List(r.Context(), session.FromRequest(r), f)
	if err != nil {
		common.WriteError(w, backend.AppError(err))
		return
	}
	common.List(w, views, pagination)
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	view, err := h.Svc.Get(r.Context(), session.FromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, backend.AppError(err))
		return
	}
	common.Data(w, http.StatusOK, view)
}

// Cancel handles POST /api/v1/orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "order id is required", nil)
		return
	}
	receipt, err := h.Svc.Cancel(r.Context(), session.FromRequest(r), id)
	if err != nil {
		if common.IsAppError(err) {
			common.WriteError(w, err)
			return
		}
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "unable to queue order cancellation", nil)
		return
	}
	common.Data(w, http.StatusAccepted, receipt)
}
