package backend

import (
	"context"
	"net/url"

	"github.com/noah-isme/toko-storefront/internal/session"
)

// InventoryRow is one product's stock level.
type InventoryRow struct {
	ProductID string `json:"product_id" validate:"required"`
	Name      string `json:"name"`
	StoreID   string `json:"store_id,omitempty"`
	Stock     int64  `json:"stock"`
}

// ListDiscounts returns the discounts configured for a store.
func (c *Client) ListDiscounts(ctx context.Context, sess session.Session, storeID string, p ListParams) (Page[Discount], error) {
	q := p.values()
	if storeID != "" {
		q.Set("store_id", storeID)
	}
	return getList[Discount](ctx, c, sess, "admin_discounts", "/admin/discounts", q)
}

// InventoryReport returns stock levels. An empty storeID spans every store
// the token may see.
func (c *Client) InventoryReport(ctx context.Context, sess session.Session, storeID string) ([]InventoryRow, error) {
	var q url.Values
	if storeID != "" {
		q = url.Values{"store_id": {storeID}}
	}
	page, err := getList[InventoryRow](ctx, c, sess, "inventory", "/admin/reports/inventory", q)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}
