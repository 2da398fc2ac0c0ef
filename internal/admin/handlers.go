package admin

import (
	"net/http"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Handler exposes store admin reports.
type Handler struct {
	Svc            *Service
	DefaultPerPage int
	MaxPerPage     int
}

// Discounts handles GET /api/v1/admin/discounts.
func (h *Handler) Discounts(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin service not configured", nil)
		return
	}
	sess := session.FromRequest(r)
	storeID, err := h.Svc.StoreFor(r.Context(), sess, r.URL.Query().Get("store_id"))
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	page, perPage := common.ParsePagination(r, h.DefaultPerPage, h.MaxPerPage)
	views, pagination, err := h.Svc.Discounts(r.Context(), sess, storeID, backend.ListParams{Page: page, PerPage: perPage, Sort: r.URL.Query().Get("sort")})
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.List(w, views, pagination)
}

// Inventory handles GET /api/v1/admin/reports/inventory.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "admin service not configured", nil)
		return
	}
	sess := session.FromRequest(r)
	storeID, err := h.Svc.StoreFor(r.Context(), sess, r.URL.Query().Get("store_id"))
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	report, err := h.Svc.Inventory(r.Context(), sess, storeID)
	if err != nil {
		common.WriteError(w, appError(err))
		return
	}
	common.Data(w, http.StatusOK, report)
}
