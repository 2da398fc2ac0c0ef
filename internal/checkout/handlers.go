package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

const maxBodyBytes = 64 << 10

// Handler serves the checkout quote and pay endpoints.
type Handler struct {
	Svc *Service
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload QuoteInput
	if !decode(w, r, &payload) {
		return
	}
	quote, err := h.Svc.Quote(r.Context(), session.FromRequest(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, quote)
}

// Pay handles POST /api/v1/checkout/pay.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload QuoteInput
	if !decode(w, r, &payload) {
		return
	}
	key := strings.TrimSpace(r.Header.Get(common.IdempotencyHeader))
	if key == "" {
		key = uuid.NewString()
	}
	out, err := h.Svc.Pay(r.Context(), session.FromRequest(r), PayInput{QuoteInput: payload, IdempotencyKey: key})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(common.IdempotencyHeader, key)
	common.Data(w, http.StatusCreated, out)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrVoucherNotFound):
		common.JSONError(w, http.StatusUnprocessableEntity, "VOUCHER_NOT_FOUND", "selected voucher is not available", nil)
	case errors.Is(err, ErrShippingUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_UNAVAILABLE", "selected shipping option is not offered for this address", nil)
	default:
		common.WriteError(w, backend.AppError(err))
	}
}
