package analytics

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Handler exposes analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Revenue returns per store revenue for the requested range.
func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	from, to, err := parseRange(r.URL.Query(), h.Svc.now(), h.Svc.DefaultRange)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	report, err := h.Svc.RevenueRange(r.Context(), session.FromRequest(r), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, report)
}

// Inventory returns the platform inventory summary.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", "analytics service not configured", nil)
		return
	}
	summary, err := h.Svc.InventorySummary(r.Context(), session.FromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, summary)
}

const (
	defaultDays = 30
	maxRange    = 366 * 24 * time.Hour
)

// parseRange reads from/to (RFC3339) and days. A missing bound is derived
// from the other and days; with neither, the range ends at the start of
// tomorrow (UTC) so repeated calls share a cache entry.
func parseRange(q url.Values, now time.Time, fallbackDays int) (from, to time.Time, err error) {
	days := fallbackDays
	if days <= 0 {
		days = defaultDays
	}
	if raw := q.Get("days"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n <= 0 {
			return from, to, fmt.Errorf("days must be a positive integer")
		}
		days = n
	}
	if from, err = parseBound(q, "from"); err != nil {
		return from, to, err
	}
	if to, err = parseBound(q, "to"); err != nil {
		return from, to, err
	}

	switch {
	case from.IsZero() && to.IsZero():
		to = now.UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
		from = to.AddDate(0, 0, -days)
	case from.IsZero():
		from = to.AddDate(0, 0, -days)
	case to.IsZero():
		to = from.AddDate(0, 0, days)
	}
	if !from.Before(to) {
		return from, to, fmt.Errorf("from must be before to")
	}
	if to.Sub(from) > maxRange {
		return from, to, fmt.Errorf("range must not exceed 366 days")
	}
	return from.UTC(), to.UTC(), nil
}

func parseBound(q url.Values, key string) (time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s date", key)
	}
	return t, nil
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotConfigured) {
		common.JSONError(w, http.StatusInternalServerError, "ANALYTICS_NOT_CONFIGURED", err.Error(), nil)
		return
	}
	common.WriteError(w, backend.AppError(err))
}
