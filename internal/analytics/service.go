package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/admin"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// ErrNotConfigured is returned when the service has no backend.
var ErrNotConfigured = errors.New("analytics service not configured")

const (
	pageSize = 100
	maxPages = 50
	lockTTL  = time.Minute
)

// Backend is the platform-wide slice of the commerce API.
type Backend interface {
	ListAllOrders(ctx context.Context, sess session.Session, f backend.OrderFilter) (backend.Page[backend.Order], error)
	InventoryReport(ctx context.Context, sess session.Session, storeID string) ([]backend.InventoryRow, error)
}

// StoreRevenue is the revenue of a single store over a range.
type StoreRevenue struct {
	StoreID  string        `json:"store_id"`
	Orders   int           `json:"orders"`
	Gross    pricing.Money `json:"gross"`
	Revenue  pricing.Money `json:"revenue"`
	Savings  pricing.Money `json:"savings"`
	Shipping pricing.Money `json:"shipping"`
}

// Revenue is the platform revenue report.
type Revenue struct {
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	Stores    []StoreRevenue `json:"stores"`
	Total     pricing.Money  `json:"total"`
	Truncated bool           `json:"truncated,omitempty"`
}

// Inventory is the platform inventory summary with a per store breakdown.
type Inventory struct {
	admin.InventorySummary
	Stores map[string]admin.InventorySummary `json:"stores"`
}

// Locker serialises report computation across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service computes cached analytics for super admins.
type Service struct {
	Backend           Backend
	R                 redis.UniversalClient
	Lock              Locker
	TTL               time.Duration
	DefaultRange      int
	LowStockThreshold int64
	Now               func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

// skipStatus lists order states that never produce revenue.
var skipStatus = map[string]bool{
	"cancelled": true,
	"canceled":  true,
	"failed":    true,
	"expired":   true,
}

// RevenueRange aggregates the discounted line totals of every order created in
// [from, to) grouped by store.
func (s *Service) RevenueRange(ctx context.Context, sess session.Session, from, to time.Time) (Revenue, error) {
	if s == nil || s.Backend == nil {
		return Revenue{}, ErrNotConfigured
	}
	key := cacheKey("an", "revenue", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	var cached Revenue
	if s.get(ctx, key, &cached) {
		return cached, nil
	}

	var report Revenue
	err := s.exclusive(ctx, key, func(ctx context.Context) error {
		// another replica may have filled the cache while we waited
		if s.get(ctx, key, &report) {
			return nil
		}
		var err error
		if report, err = s.revenue(ctx, sess, from, to); err != nil {
			return err
		}
		s.store(ctx, key, report)
		return nil
	})
	return report, err
}

func (s *Service) revenue(ctx context.Context, sess session.Session, from, to time.Time) (Revenue, error) {
	byStore := make(map[string]*StoreRevenue)
	report := Revenue{From: from, To: to}
	for page := 1; ; page++ {
		if page > maxPages {
			report.Truncated = true
			break
		}
		res, err := s.Backend.ListAllOrders(ctx, sess, backend.OrderFilter{ListParams: backend.ListParams{Page: page, PerPage: pageSize}})
		if err != nil {
			return Revenue{}, err
		}
		for _, o := range res.Items {
			if skipStatus[strings.ToLower(o.Status)] || o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
				continue
			}
			entry, ok := byStore[o.StoreID]
			if !ok {
				entry = &StoreRevenue{StoreID: o.StoreID}
				byStore[o.StoreID] = entry
			}
			totals := pricing.Aggregate(o.Lines())
			entry.Orders++
			entry.Gross += totals.Original
			entry.Revenue += totals.Discounted
			entry.Savings += totals.Savings()
			entry.Shipping += o.ShippingCost.Money()
		}
		if len(res.Items) == 0 || lastPage(res.Meta, page) {
			break
		}
	}

	report.Stores = make([]StoreRevenue, 0, len(byStore))
	for _, entry := range byStore {
		report.Stores = append(report.Stores, *entry)
		report.Total += entry.Revenue
	}
	sort.Slice(report.Stores, func(i, j int) bool {
		if report.Stores[i].Revenue != report.Stores[j].Revenue {
			return report.Stores[i].Revenue > report.Stores[j].Revenue
		}
		return report.Stores[i].StoreID < report.Stores[j].StoreID
	})
	return report, nil
}

func lastPage(meta backend.Meta, page int) bool {
	if meta.TotalPages > 0 {
		return page >= meta.TotalPages
	}
	if meta.Total > 0 && meta.PerPage > 0 {
		return page*meta.PerPage >= meta.Total
	}
	return true
}

// InventorySummary summarizes stock across every store.
func (s *Service) InventorySummary(ctx context.Context, sess session.Session) (Inventory, error) {
	if s == nil || s.Backend == nil {
		return Inventory{}, ErrNotConfigured
	}
	key := cacheKey("an", "inventory", s.LowStockThreshold)
	var cached Inventory
	if s.get(ctx, key, &cached) {
		return cached, nil
	}
	rows, err := s.Backend.InventoryReport(ctx, sess, "")
	if err != nil {
		return Inventory{}, err
	}
	grouped := make(map[string][]backend.InventoryRow)
	for _, row := range rows {
		grouped[row.StoreID] = append(grouped[row.StoreID], row)
	}
	out := Inventory{
		InventorySummary: admin.Summarize(rows, s.LowStockThreshold),
		Stores:           make(map[string]admin.InventorySummary, len(grouped)),
	}
	for storeID, storeRows := range grouped {
		out.Stores[storeID] = admin.Summarize(storeRows, s.LowStockThreshold)
	}
	s.store(ctx, key, out)
	return out, nil
}

// exclusive runs fn under the report lock when one is configured. Lock
// failures other than cancellation degrade to an unlocked run.
func (s *Service) exclusive(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.Lock == nil {
		return fn(ctx)
	}
	ran := false
	err := s.Lock.WithLock(ctx, key, lockTTL, func(ctx context.Context) error {
		ran = true
		return fn(ctx)
	})
	if err != nil && !ran && ctx.Err() == nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("analytics_lock_unavailable")
		return fn(ctx)
	}
	return err
}

func (s *Service) get(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	obs.IncCacheLookup("analytics", err == nil)
	return err == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
