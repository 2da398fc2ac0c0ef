package backend

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Discount is the wire form of a product or voucher discount.
type Discount struct {
	ID           string     `json:"id,omitempty"`
	Type         string     `json:"discount_type" validate:"required"`
	Value        Amount     `json:"discount_value"`
	MinimumOrder Amount     `json:"minimum_order"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	StoreID      *string    `json:"store_id,omitempty"`
}

// Pricing converts and validates the discount.
func (d Discount) Pricing() (pricing.Discount, error) {
	kind, err := pricing.ParseDiscountType(d.Type)
	if err != nil {
		return pricing.Discount{}, err
	}
	out := pricing.Discount{
		Type:         kind,
		Value:        d.Value.Money(),
		MinimumOrder: d.MinimumOrder.Money(),
		StoreID:      d.StoreID,
	}
	if d.ExpiresAt != nil {
		out.ExpiresAt = *d.ExpiresAt
	}
	if err := out.Validate(); err != nil {
		return pricing.Discount{}, err
	}
	return out, nil
}

// Product is a catalog entry as served by the backend.
type Product struct {
	ID         string     `json:"id" validate:"required"`
	Name       string     `json:"name" validate:"required"`
	Slug       string     `json:"slug,omitempty"`
	StoreID    string     `json:"store_id,omitempty"`
	CategoryID string     `json:"category_id,omitempty"`
	Price      Amount     `json:"price"`
	Weight     int64      `json:"weight" validate:"gte=0"`
	Stock      int64      `json:"stock"`
	Images     []string   `json:"images,omitempty"`
	Discounts  []Discount `json:"discounts"`
}

func (p Product) check() error {
	if p.Price < 0 {
		return errors.New("negative price")
	}
	// later entries are never honoured, so they are not validated either
	if d := pricing.FirstDiscount(p.Discounts); d != nil {
		return d.check()
	}
	return nil
}

// PricedItem returns the product's pricing view. Only the first discount is
// honoured and it is dropped once expired.
func (p Product) PricedItem(now time.Time) pricing.PricedItem {
	return pricedItem(p.Price, p.Discounts, now)
}

func pricedItem(price Amount, discounts []Discount, now time.Time) pricing.PricedItem {
	item := pricing.PricedItem{BasePrice: price.Money()}
	first := pricing.FirstDiscount(discounts)
	if first == nil {
		return item
	}
	d, err := first.Pricing()
	if err != nil || !d.ActiveAt(now) {
		return item
	}
	item.Discount = &d
	return item
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	ListParams
	StoreID    string
	CategoryID string
}

// ListProducts returns a page of products.
func (c *Client) ListProducts(ctx context.Context, sess session.Session, f ProductFilter) (Page[Product], error) {
	q := f.values()
	if f.StoreID != "" {
		q.Set("store_id", f.StoreID)
	}
	if f.CategoryID != "" {
		q.Set("category_id", f.CategoryID)
	}
	return getList[Product](ctx, c, sess, "products", "/products", q)
}

// GetProduct fetches a single product by id or slug.
func (c *Client) GetProduct(ctx context.Context, sess session.Session, id string) (Product, error) {
	return getOne[Product](ctx, c, sess, "products", "/products/"+url.PathEscape(id), nil)
}

func (d Discount) check() error {
	_, err := d.Pricing()
	return err
}
