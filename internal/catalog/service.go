package catalog

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/geo"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

// Backend is the slice of the commerce API the catalog reads from.
type Backend interface {
	ListProducts(ctx context.Context, sess session.Session, f backend.ProductFilter) (backend.Page[backend.Product], error)
	GetProduct(ctx context.Context, sess session.Session, id string) (backend.Product, error)
	ListStores(ctx context.Context, sess session.Session, p backend.ListParams) (backend.Page[backend.Store], error)
}

// Service decorates backend catalog data with resolved prices.
type Service struct {
	backend    Backend
	cache      *Cache
	perPage    int
	maxPerPage int
	now        func() time.Time
	timeout    time.Duration
	flights    singleflight.Group
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Backend    Backend
	Cache      *Cache
	PerPage    int
	MaxPerPage int
	Now        func() time.Time
	// FetchTimeout bounds a shared backend fetch. Defaults to 10s.
	FetchTimeout time.Duration
}

// ListQuery captures filters for product listing.
type ListQuery struct {
	Page       int
	PerPage    int
	Search     string
	Sort       string
	CategoryID string
}

// DiscountView is the customer-facing form of the honoured discount.
type DiscountView struct {
	Type      pricing.DiscountType `json:"type"`
	Value     pricing.Money        `json:"value"`
	Percent   *int64               `json:"percent,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

// ProductView is a product with its unit price resolved.
type ProductView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Slug       string        `json:"slug,omitempty"`
	StoreID    string        `json:"store_id,omitempty"`
	CategoryID string        `json:"category_id,omitempty"`
	Images     []string      `json:"images"`
	Weight     int64         `json:"weight"`
	Stock      int64         `json:"stock"`
	InStock    bool          `json:"in_stock"`
	Price      pricing.Money `json:"price"`
	UnitPrice  pricing.Money `json:"unit_price"`
	Savings    pricing.Money `json:"savings"`
	Discount   *DiscountView `json:"discount,omitempty"`
}

// ProductPage is one page of decorated products.
type ProductPage struct {
	Items      []ProductView
	Pagination common.Pagination
}

// StoreView is a store annotated with its distance from the caller.
type StoreView struct {
	backend.Store
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// NewService constructs a catalog Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Backend == nil {
		return nil, errors.New("catalog: backend is required")
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	maxPerPage := cfg.MaxPerPage
	if maxPerPage < perPage {
		maxPerPage = perPage
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{backend: cfg.Backend, cache: cfg.Cache, perPage: perPage, maxPerPage: maxPerPage, now: now, timeout: timeout}, nil
}

// PerPage returns the default and maximum page sizes.
func (s *Service) PerPage() (def, max int) {
	return s.perPage, s.maxPerPage
}

// ListProducts returns a page of products for the store on ctx.
func (s *Service) ListProducts(ctx context.Context, sess session.Session, q ListQuery) (ProductPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = s.perPage
	}
	if q.PerPage > s.maxPerPage {
		q.PerPage = s.maxPerPage
	}
	filter := backend.ProductFilter{
		ListParams: backend.ListParams{Page: q.Page, PerPage: q.PerPage, Search: q.Search, Sort: q.Sort},
		CategoryID: q.CategoryID,
	}
	if storeID, ok := tenant.FromContext(ctx); ok {
		filter.StoreID = storeID
	}

	key := tenant.Key(ctx, "products", listCacheKey(q))
	page, err := load(ctx, s, key, func(ctx context.Context) (backend.Page[backend.Product], error) {
		return s.backend.ListProducts(ctx, sess, filter)
	})
	if err != nil {
		return ProductPage{}, err
	}

	now := s.now()
	items := make([]ProductView, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, Decorate(p, now))
	}
	return ProductPage{
		Items:      items,
		Pagination: common.NewPagination(page.Meta.Page, page.Meta.PerPage, page.Meta.Total),
	}, nil
}

// GetProduct returns a single decorated product.
func (s *Service) GetProduct(ctx context.Context, sess session.Session, id string) (ProductView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ProductView{}, common.BadRequest("product id is required", nil)
	}
	key := tenant.Key(ctx, "product", id)
	product, err := load(ctx, s, key, func(ctx context.Context) (backend.Product, error) {
		return s.backend.GetProduct(ctx, sess, id)
	})
	if err != nil {
		return ProductView{}, err
	}
	return Decorate(product, s.now()), nil
}

// NearestStores lists stores ordered by great-circle distance from origin.
// Stores without coordinates are returned last.
func (s *Service) NearestStores(ctx context.Context, sess session.Session, origin geo.Point, limit int) ([]StoreView, error) {
	stores, err := load(ctx, s, "stores:all", func(ctx context.Context) ([]backend.Store, error) {
		page, err := s.backend.ListStores(ctx, sess, backend.ListParams{PerPage: s.maxPerPage})
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	})
	if err != nil {
		return nil, err
	}

	// shared with concurrent callers of the same flight
	stores = append([]backend.Store(nil), stores...)
	geo.SortByDistance(stores, origin)
	if limit > 0 && len(stores) > limit {
		stores = stores[:limit]
	}
	out := make([]StoreView, 0, len(stores))
	for _, st := range stores {
		view := StoreView{Store: st}
		if p, ok := st.Location(); ok {
			d := geo.Distance(origin, p)
			view.DistanceKm = &d
		}
		out = append(out, view)
	}
	return out, nil
}

// load serves key from the cache, collapsing concurrent misses into a single
// backend call. Cache failures are logged and never fail the request.
//
// The shared fetch is detached from the caller that started it, so a
// disconnecting client only abandons its own wait.
func load[T any](ctx context.Context, s *Service, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero, cached T
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("catalog_cache_read_failed")
	}
	if hit {
		return cached, nil
	}
	ch := s.flights.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		fresh, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetJSON(fctx, key, fresh); err != nil {
			zerolog.Ctx(fctx).Warn().Err(err).Str("key", key).Msg("catalog_cache_write_failed")
		}
		return fresh, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Decorate resolves the unit price and display percentage of p at now.
func Decorate(p backend.Product, now time.Time) ProductView {
	item := p.PricedItem(now)
	unit := item.UnitPrice()
	images := p.Images
	if images == nil {
		images = []string{}
	}
	view := ProductView{
		ID:         p.ID,
		Name:       p.Name,
		Slug:       p.Slug,
		StoreID:    p.StoreID,
		CategoryID: p.CategoryID,
		Images:     images,
		Weight:     p.Weight,
		Stock:      p.Stock,
		InStock:    p.Stock > 0,
		Price:      item.BasePrice,
		UnitPrice:  unit,
		Savings:    item.BasePrice - unit,
	}
	if d := item.Discount; d != nil {
		dv := &DiscountView{Type: d.Type, Value: d.Value}
		if !d.ExpiresAt.IsZero() {
			exp := d.ExpiresAt
			dv.ExpiresAt = &exp
		}
		if pct, err := pricing.Percentage(item.BasePrice, *d); err == nil {
			dv.Percent = &pct
		}
		view.Discount = dv
	}
	return view
}

func listCacheKey(q ListQuery) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("per_page", strconv.Itoa(q.PerPage))
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.CategoryID != "" {
		v.Set("category", q.CategoryID)
	}
	return common.Sha256Hex(v.Encode())
}
