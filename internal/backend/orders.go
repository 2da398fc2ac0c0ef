package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// OrderItem is a purchased line.
type OrderItem struct {
	ProductID string     `json:"product_id" validate:"required"`
	Name      string     `json:"name,omitempty"`
	Price     Amount     `json:"price"`
	Quantity  int64      `json:"quantity"`
	Discounts []Discount `json:"discounts,omitempty"`
}

// Order is an order as returned by the backend.
type Order struct {
	ID           string      `json:"id" validate:"required"`
	Status       string      `json:"status"`
	StoreID      string      `json:"store_id,omitempty"`
	UserID       string      `json:"user_id,omitempty"`
	ShippingName string      `json:"shipping_name,omitempty"`
	ShippingCost Amount      `json:"shipping_cost"`
	Total        Amount      `json:"total"`
	CreatedAt    time.Time   `json:"created_at"`
	Items        []OrderItem `json:"items" validate:"dive"`
}

// Lines converts the order items for aggregation. Discounts are evaluated as
// of the order's creation time.
func (o Order) Lines() []pricing.Line {
	at := o.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	lines := make([]pricing.Line, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, pricing.Line{Item: pricedItem(item.Price, item.Discounts, at), Quantity: item.Quantity})
	}
	return lines
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	ListParams
	Status  string
	StoreID string
}

func (f OrderFilter) query() url.Values {
	q := f.values()
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.StoreID != "" {
		q.Set("store_id", f.StoreID)
	}
	return q
}

// ListOrders returns the caller's orders.
func (c *Client) ListOrders(ctx context.Context, sess session.Session, f OrderFilter) (Page[Order], error) {
	return getList[Order](ctx, c, sess, "orders", "/orders", f.query())
}

// ListAllOrders returns orders across stores. Requires a super admin token.
func (c *Client) ListAllOrders(ctx context.Context, sess session.Session, f OrderFilter) (Page[Order], error) {
	return getList[Order](ctx, c, sess, "admin_orders", "/admin/orders", f.query())
}

// GetOrder fetches one of the caller's orders.
func (c *Client) GetOrder(ctx context.Context, sess session.Session, id string) (Order, error) {
	return getOne[Order](ctx, c, sess, "orders", "/orders/"+url.PathEscape(id), nil)
}

// CancelOrder asks the backend to cancel an order.
func (c *Client) CancelOrder(ctx context.Context, sess session.Session, id string) error {
	_, err := c.do(ctx, sess, request{
		method:   http.MethodPost,
		path:     "/orders/" + url.PathEscape(id) + "/cancel",
		resource: "orders",
	})
	return err
}
