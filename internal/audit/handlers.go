package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler exposes HTTP endpoints for working with audit logs.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/admin/audit for super administrators.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil || h.Service.Store == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	q := r.URL.Query()
	f := ListFilter{
		Limit:  common.AtoiDefault(q.Get("limit"), 50),
		Offset: common.AtoiDefault(q.Get("offset"), 0),
	}
	if storeID := strings.TrimSpace(q.Get("store_id")); storeID != "" {
		f.StoreID = &storeID
	}

	rows, err := h.Service.List(r.Context(), f)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	if rows == nil {
		rows = []Log{}
	}
	common.Data(w, http.StatusOK, rows)
}
