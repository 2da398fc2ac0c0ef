package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeBackend struct {
	storeID string
	params  backend.ListParams
}

func (f *fakeBackend) ListDiscounts(_ context.Context, _ session.Session, storeID string, p backend.ListParams) (backend.Page[backend.Discount], error) {
	f.storeID, f.params = storeID, p
	past := now.Add(-time.Hour)
	return backend.Page[backend.Discount]{
		Items: []backend.Discount{
			{ID: "d-1", Type: "percentage", Value: 20},
			{ID: "d-2", Type: "fixed_amount", Value: 5_000, ExpiresAt: &past},
			{ID: "d-3", Type: "bogo", Value: 1},
		},
		Meta: backend.Meta{Page: p.Page, PerPage: p.PerPage, Total: 3},
	}, nil
}

func (f *fakeBackend) InventoryReport(_ context.Context, _ session.Session, storeID string) ([]backend.InventoryRow, error) {
	f.storeID = storeID
	return []backend.InventoryRow{
		{ProductID: "p-1", Stock: 40},
		{ProductID: "p-2", Stock: 2},
		{ProductID: "p-3", Stock: 5},
		{ProductID: "p-4", Stock: 0},
	}, nil
}

func TestSummarize(t *testing.T) {
	rows := []backend.InventoryRow{{Stock: 10}, {Stock: 4}, {Stock: -3}}
	require.Equal(t, InventorySummary{TotalSKUs: 3, TotalStock: 14, LowStockCount: 2, Threshold: 5}, Summarize(rows, 5))
	require.Equal(t, InventorySummary{}, Summarize(nil, 0))
}

func TestStoreFor(t *testing.T) {
	svc := &Service{}
	ctx := tenant.WithStore(context.Background(), "store-tenant")

	id, err := svc.StoreFor(ctx, session.Session{Roles: []string{session.RoleAdmin}, StoreID: "store-a"}, "store-b")
	require.NoError(t, err)
	require.Equal(t, "store-a", id)

	_, err = svc.StoreFor(ctx, session.Session{Roles: []string{session.RoleAdmin}}, "")
	require.ErrorIs(t, err, ErrNoStore)

	super := session.Session{Roles: []string{session.RoleSuperAdmin}}
	id, err = svc.StoreFor(ctx, super, "store-b")
	require.NoError(t, err)
	require.Equal(t, "store-b", id)

	id, err = svc.StoreFor(ctx, super, "")
	require.NoError(t, err)
	require.Equal(t, "store-tenant", id)

	id, err = svc.StoreFor(context.Background(), super, "")
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestInventory(t *testing.T) {
	fb := &fakeBackend{}
	svc := &Service{Backend: fb, LowStockThreshold: 5}
	report, err := svc.Inventory(context.Background(), session.Session{}, "store-a")
	require.NoError(t, err)
	require.Equal(t, "store-a", fb.storeID)
	require.Equal(t, 2, report.Summary.LowStockCount)
	require.Equal(t, int64(47), report.Summary.TotalStock)
	ids := make([]string, 0, len(report.Items))
	for _, row := range report.Items {
		ids = append(ids, row.ProductID)
	}
	require.Equal(t, []string{"p-4", "p-2", "p-3", "p-1"}, ids)
	require.True(t, report.Items[0].LowStock)
	require.False(t, report.Items[2].LowStock)
}

func withSession(r *http.Request, s session.Session) *http.Request {
	return r.WithContext(session.WithSession(r.Context(), s))
}

func TestDiscountsHandler(t *testing.T) {
	fb := &fakeBackend{}
	h := &Handler{Svc: &Service{Backend: fb, Now: func() time.Time { return now }}, DefaultPerPage: 20, MaxPerPage: 50}

	req := withSession(httptest.NewRequest(http.MethodGet, "/admin/discounts?per_page=500", nil), session.Session{Token: "t", UserID: "u-1", Roles: []string{session.RoleAdmin}, StoreID: "store-a"})
	rec := httptest.NewRecorder()
	h.Discounts(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "store-a", fb.storeID)
	require.Equal(t, 50, fb.params.PerPage)

	var body struct {
		Data []DiscountView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)
	require.True(t, body.Data[0].Active)
	require.True(t, body.Data[1].Valid)
	require.False(t, body.Data[1].Active)
	require.False(t, body.Data[2].Valid)

	req = withSession(httptest.NewRequest(http.MethodGet, "/admin/discounts", nil), session.Session{Token: "t", UserID: "u-1", Roles: []string{session.RoleAdmin}})
	rec = httptest.NewRecorder()
	h.Discounts(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "STORE_REQUIRED")
}

func TestInventoryHandler(t *testing.T) {
	fb := &fakeBackend{}
	h := &Handler{Svc: &Service{Backend: fb, LowStockThreshold: 5}}
	req := withSession(httptest.NewRequest(http.MethodGet, "/admin/reports/inventory?store_id=store-z", nil), session.Session{Token: "t", UserID: "root", Roles: []string{session.RoleSuperAdmin}})
	rec := httptest.NewRecorder()
	h.Inventory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "store-z", fb.storeID)
	require.Contains(t, rec.Body.String(), `"low_stock_count":2`)
}
