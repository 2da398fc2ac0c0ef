package admin

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tenant"
)

// ErrNoStore is returned when a store admin token is not bound to a store.
var ErrNoStore = errors.New("admin: no store in scope")

// Backend is the slice of the commerce API used by store administration.
type Backend interface {
	ListDiscounts(ctx context.Context, sess session.Session, storeID string, p backend.ListParams) (backend.Page[backend.Discount], error)
	InventoryReport(ctx context.Context, sess session.Session, storeID string) ([]backend.InventoryRow, error)
}

// DiscountView is a configured discount with its state at request time.
type DiscountView struct {
	backend.Discount
	Active bool `json:"active"`
	Valid  bool `json:"valid"`
}

// InventoryRow flags a product whose stock is under the threshold.
type InventoryRow struct {
	backend.InventoryRow
	LowStock bool `json:"low_stock"`
}

// InventorySummary totals a stock report.
type InventorySummary struct {
	TotalSKUs     int   `json:"total_skus"`
	TotalStock    int64 `json:"total_stock"`
	LowStockCount int   `json:"low_stock_count"`
	Threshold     int64 `json:"low_stock_threshold"`
}

// InventoryReport is the store inventory with low stock rows first.
type InventoryReport struct {
	StoreID string           `json:"store_id,omitempty"`
	Summary InventorySummary `json:"summary"`
	Items   []InventoryRow   `json:"items"`
}

// Summarize counts SKUs, stock and rows strictly under threshold.
func Summarize(rows []backend.InventoryRow, threshold int64) InventorySummary {
	sum := InventorySummary{TotalSKUs: len(rows), Threshold: threshold}
	for _, row := range rows {
		if row.Stock > 0 {
			sum.TotalStock += row.Stock
		}
		if row.Stock < threshold {
			sum.LowStockCount++
		}
	}
	return sum
}

// Service serves store administration reads.
type Service struct {
	Backend           Backend
	LowStockThreshold int64
	Now               func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StoreFor picks the store a request operates on. Store admins are pinned to
// the store in their token; super admins may pick any store through the
// request scope or the explicit parameter.
func (s *Service) StoreFor(ctx context.Context, sess session.Session, requested string) (string, error) {
	if !sess.HasRole(session.RoleSuperAdmin) {
		if sess.StoreID == "" {
			return "", ErrNoStore
		}
		return sess.StoreID, nil
	}
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested, nil
	}
	if id, ok := tenant.FromContext(ctx); ok {
		return id, nil
	}
	return "", nil
}

// Discounts lists the discounts configured for storeID.
func (s *Service) Discounts(ctx context.Context, sess session.Session, storeID string, p backend.ListParams) ([]DiscountView, common.Pagination, error) {
	page, err := s.Backend.ListDiscounts(ctx, sess, storeID, p)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	now := s.now()
	views := make([]DiscountView, 0, len(page.Items))
	for _, d := range page.Items {
		view := DiscountView{Discount: d}
		if pd, err := d.Pricing(); err == nil {
			view.Valid = true
			view.Active = pd.ActiveAt(now)
		}
		views = append(views, view)
	}
	return views, common.NewPagination(page.Meta.Page, page.Meta.PerPage, page.Meta.Total), nil
}

// Inventory returns the stock report for storeID.
func (s *Service) Inventory(ctx context.Context, sess session.Session, storeID string) (InventoryReport, error) {
	rows, err := s.Backend.InventoryReport(ctx, sess, storeID)
	if err != nil {
		return InventoryReport{}, err
	}
	report := InventoryReport{
		StoreID: storeID,
		Summary: Summarize(rows, s.LowStockThreshold),
		Items:   make([]InventoryRow, 0, len(rows)),
	}
	for _, row := range rows {
		report.Items = append(report.Items, InventoryRow{InventoryRow: row, LowStock: row.Stock < s.LowStockThreshold})
	}
	sort.SliceStable(report.Items, func(i, j int) bool {
		if report.Items[i].LowStock != report.Items[j].LowStock {
			return report.Items[i].LowStock
		}
		return report.Items[i].Stock < report.Items[j].Stock
	})
	return report, nil
}

func appError(err error) error {
	if errors.Is(err, ErrNoStore) {
		return common.NewAppError("STORE_REQUIRED", "token is not bound to a store", http.StatusForbidden, err)
	}
	return backend.AppError(err)
}
