package voucher

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Handler exposes customer voucher endpoints.
type Handler struct {
	Svc *Service
}

// Eligible handles GET /api/v1/vouchers/eligible?subtotal=.
func (h *Handler) Eligible(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("subtotal"))
	subtotal := common.ParseInt64Default(raw, -1)
	if raw == "" || subtotal < 0 {
		common.WriteError(w, common.Validation(map[string]string{"subtotal": "must be a non-negative integer"}))
		return
	}
	rows, err := h.Svc.Eligible(r.Context(), session.FromRequest(r), subtotal)
	if err != nil {
		common.WriteError(w, backend.AppError(err))
		return
	}
	common.Data(w, http.StatusOK, rows)
}

// Claim handles POST /api/v1/vouchers/{id}/claim.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "voucher id is required", nil)
		return
	}
	receipt, err := h.Svc.Claim(r.Context(), session.FromRequest(r), id)
	if err != nil {
		if common.IsAppError(err) {
			common.WriteError(w, err)
			return
		}
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "unable to queue voucher claim", nil)
		return
	}
	common.Data(w, http.StatusAccepted, receipt)
}
