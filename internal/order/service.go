package order

import (
	"context"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/tasks"
)

// Backend reads the caller's orders.
type Backend interface {
	ListOrders(ctx context.Context, sess session.Session, f backend.OrderFilter) (backend.Page[backend.Order], error)
	GetOrder(ctx context.Context, sess session.Session, id string) (backend.Order, error)
}

// Canceler enqueues order cancellations.
type Canceler interface {
	CancelOrder(ctx context.Context, sess session.Session, orderID string) (tasks.Receipt, error)
}

// View is an order with its totals recomputed from its lines.
type View struct {
	backend.Order
	Summary pricing.Summary `json:"summary"`
}

// NewView aggregates the order's lines as of its creation time.
func NewView(o backend.Order) View {
	totals := pricing.Aggregate(o.Lines())
	return View{Order: o, Summary: pricing.Compose(totals, o.ShippingCost.Money(), nil)}
}

// Service serves customer order history.
type Service struct {
	Backend  Backend
	Canceler Canceler
}

// List returns a page of the caller's orders.
func (s *Service) List(ctx context.Context, sess session.Session, f backend.OrderFilter) ([]View, common.Pagination, error) {
	page, err := s.Backend.ListOrders(ctx, sess, f)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	views := make([]View, 0, len(page.Items))
	for _, o := range page.Items {
		views = append(views, NewView(o))
	}
	return views, common.NewPagination(page.Meta.Page, page.Meta.PerPage, page.Meta.Total), nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, sess session.Session, id string) (View, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return View{}, common.BadRequest("order id is required", nil)
	}
	o, err := s.Backend.GetOrder(ctx, sess, id)
	if err != nil {
		return View{}, err
	}
	return NewView(o), nil
}

// Cancel enqueues a cancellation. The backend decides whether the order may
// still be cancelled.
func (s *Service) Cancel(ctx context.Context, sess session.Session, id string) (tasks.Receipt, error) {
	if s.Canceler == nil {
		return tasks.Receipt{}, common.NewAppError("QUEUE_UNAVAILABLE", "order cancellation is not available", http.StatusServiceUnavailable, nil)
	}
	return s.Canceler.CancelOrder(ctx, sess, id)
}
