package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/geo"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	def, max := h.service.PerPage()
	page, perPage := common.ParsePagination(r, def, max)
	q := r.URL.Query()
	search := q.Get("q")
	if search == "" {
		search = q.Get("search")
	}
	result, err := h.service.ListProducts(r.Context(), session.FromRequest(r), ListQuery{
		Page:       page,
		PerPage:    perPage,
		Search:     strings.TrimSpace(search),
		Sort:       strings.TrimSpace(q.Get("sort")),
		CategoryID: strings.TrimSpace(q.Get("category_id")),
	})
	if err != nil {
		common.WriteError(w, backend.AppError(err))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Pagination.TotalItems))
	common.List(w, result.Items, result.Pagination)
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	detail, err := h.service.GetProduct(r.Context(), session.FromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, backend.AppError(err))
		return
	}
	common.Data(w, http.StatusOK, detail)
}

// NearestStores handles GET /api/v1/stores/nearest?lat=&lng=.
func (h *Handler) NearestStores(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	q := r.URL.Query()
	lat, okLat := common.ParseFloatParam(q.Get("lat"))
	lng, okLng := common.ParseFloatParam(q.Get("lng"))
	details := map[string]string{}
	if !okLat || lat < -90 || lat > 90 {
		details["lat"] = "must be a latitude between -90 and 90"
	}
	if !okLng || lng < -180 || lng > 180 {
		details["lng"] = "must be a longitude between -180 and 180"
	}
	if len(details) > 0 {
		common.WriteError(w, common.Validation(details))
		return
	}
	limit := common.AtoiDefault(q.Get("limit"), 10)
	stores, err := h.service.NearestStores(r.Context(), session.FromRequest(r), geo.Point{Lat: lat, Lng: lng}, limit)
	if err != nil {
		common.WriteError(w, backend.AppError(err))
		return
	}
	common.Data(w, http.StatusOK, stores)
}
