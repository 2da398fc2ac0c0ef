package analytics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/analytics"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
)

var day = time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

type stubBackend struct {
	orderCalls     int
	inventoryCalls int
	pages          [][]backend.Order
}

func (s *stubBackend) ListAllOrders(_ context.Context, _ session.Session, f backend.OrderFilter) (backend.Page[backend.Order], error) {
	s.orderCalls++
	total := 0
	for _, p := range s.pages {
		total += len(p)
	}
	var items []backend.Order
	if f.Page-1 < len(s.pages) {
		items = s.pages[f.Page-1]
	}
	return backend.Page[backend.Order]{Items: items, Meta: backend.Meta{Page: f.Page, PerPage: 2, Total: total, TotalPages: len(s.pages)}}, nil
}

func (s *stubBackend) InventoryReport(_ context.Context, _ session.Session, storeID string) ([]backend.InventoryRow, error) {
	s.inventoryCalls++
	return []backend.InventoryRow{
		{ProductID: "p-1", StoreID: "a", Stock: 10},
		{ProductID: "p-2", StoreID: "a", Stock: 1},
		{ProductID: "p-3", StoreID: "b", Stock: 3},
	}, nil
}

func order(store, status string, at time.Time, items ...backend.OrderItem) backend.Order {
	return backend.Order{ID: store + status, StoreID: store, Status: status, CreatedAt: at, ShippingCost: 10_000, Items: items}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func fixture() *stubBackend {
	discounted := backend.OrderItem{ProductID: "p-1", Price: 100_000, Quantity: 2, Discounts: []backend.Discount{{Type: "percentage", Value: 20}}}
	plain := backend.OrderItem{ProductID: "p-2", Price: 50_000, Quantity: 1}
	return &stubBackend{pages: [][]backend.Order{
		{order("a", "paid", day, discounted), order("b", "paid", day.Add(time.Hour), plain)},
		{order("a", "cancelled", day, plain), order("a", "completed", day.Add(-48*time.Hour), plain)},
		{order("b", "shipped", day.Add(2*time.Hour), discounted, plain)},
	}}
}

func TestRevenueRangeAggregatesAllPages(t *testing.T) {
	stub := fixture()
	svc := &analytics.Service{Backend: stub}
	report, err := svc.RevenueRange(context.Background(), session.Session{}, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, stub.orderCalls)
	require.Len(t, report.Stores, 2)

	require.Equal(t, "b", report.Stores[0].StoreID)
	require.Equal(t, 2, report.Stores[0].Orders)
	require.Equal(t, pricing.Money(260_000), report.Stores[0].Revenue)
	require.Equal(t, pricing.Money(300_000), report.Stores[0].Gross)

	require.Equal(t, "a", report.Stores[1].StoreID)
	require.Equal(t, 1, report.Stores[1].Orders)
	require.Equal(t, pricing.Money(160_000), report.Stores[1].Revenue)
	require.Equal(t, pricing.Money(40_000), report.Stores[1].Savings)
	require.Equal(t, pricing.Money(10_000), report.Stores[1].Shipping)

	require.Equal(t, pricing.Money(420_000), report.Total)
}

func TestRevenueRangeCached(t *testing.T) {
	mr, rdb := newRedis(t)
	stub := fixture()
	svc := &analytics.Service{Backend: stub, R: rdb, TTL: time.Minute}
	from, to := day, day.Add(24*time.Hour)

	first, err := svc.RevenueRange(context.Background(), session.Session{}, from, to)
	require.NoError(t, err)
	second, err := svc.RevenueRange(context.Background(), session.Session{}, from, to)
	require.NoError(t, err)
	require.Equal(t, 3, stub.orderCalls)
	require.Equal(t, first.Total, second.Total)
	require.Equal(t, first.Stores, second.Stores)

	mr.FastForward(2 * time.Minute)
	_, err = svc.RevenueRange(context.Background(), session.Session{}, from, to)
	require.NoError(t, err)
	require.Equal(t, 6, stub.orderCalls)
}

func TestInventorySummaryCached(t *testing.T) {
	_, rdb := newRedis(t)
	stub := &stubBackend{}
	svc := &analytics.Service{Backend: stub, R: rdb, TTL: time.Minute, LowStockThreshold: 5}

	inv, err := svc.InventorySummary(context.Background(), session.Session{})
	require.NoError(t, err)
	require.Equal(t, 3, inv.TotalSKUs)
	require.Equal(t, int64(14), inv.TotalStock)
	require.Equal(t, 2, inv.LowStockCount)
	require.Equal(t, 1, inv.Stores["a"].LowStockCount)
	require.Equal(t, 1, inv.Stores["b"].TotalSKUs)

	again, err := svc.InventorySummary(context.Background(), session.Session{})
	require.NoError(t, err)
	require.Equal(t, inv, again)
	require.Equal(t, 1, stub.inventoryCalls)
}

func TestNotConfigured(t *testing.T) {
	_, err := (&analytics.Service{}).InventorySummary(context.Background(), session.Session{})
	require.ErrorIs(t, err, analytics.ErrNotConfigured)
}

func TestRevenueHandler(t *testing.T) {
	stub := fixture()
	h := &analytics.Handler{Svc: &analytics.Service{Backend: stub, DefaultRange: 1, Now: func() time.Time { return day.Add(5 * time.Hour) }}}

	rec := httptest.NewRecorder()
	h.Revenue(rec, httptest.NewRequest(http.MethodGet, "/analytics/revenue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":420000`)

	rec = httptest.NewRecorder()
	h.Revenue(rec, httptest.NewRequest(http.MethodGet, "/analytics/revenue?from=2025-06-10T00:00:00Z&to=2025-06-01T00:00:00Z", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Revenue(rec, httptest.NewRequest(http.MethodGet, "/analytics/revenue?from=yesterday&to=2025-06-01T00:00:00Z", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Inventory(rec, httptest.NewRequest(http.MethodGet, "/analytics/inventory", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"low_stock_count"`)
}

type brokenLocker struct{}

func (brokenLocker) WithLock(context.Context, string, time.Duration, func(context.Context) error) error {
	return errors.New("redis down")
}

func TestRevenueRangeUnderLock(t *testing.T) {
	mr, rdb := newRedis(t)
	stub := fixture()
	svc := &analytics.Service{Backend: stub, R: rdb, TTL: time.Minute, Lock: lock.Locker{R: rdb, Prefix: "lock:"}}

	report, err := svc.RevenueRange(context.Background(), session.Session{}, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, pricing.Money(420_000), report.Total)
	for _, key := range mr.Keys() {
		require.NotContains(t, key, "lock:")
	}

	degraded := &analytics.Service{Backend: fixture(), Lock: brokenLocker{}}
	report, err = degraded.RevenueRange(context.Background(), session.Session{}, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, pricing.Money(420_000), report.Total)
}
