package backend

import (
	"context"
	"net/url"

	"github.com/noah-isme/toko-storefront/internal/geo"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// Store is a physical or virtual storefront.
type Store struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Address    string   `json:"address,omitempty"`
	City       string   `json:"city,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude  *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Location implements geo.Located.
func (s Store) Location() (geo.Point, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *s.Latitude, Lng: *s.Longitude}, true
}

// ListStores returns a page of stores.
func (c *Client) ListStores(ctx context.Context, sess session.Session, p ListParams) (Page[Store], error) {
	return getList[Store](ctx, c, sess, "stores", "/stores", p.values())
}

// Address is a customer delivery address.
type Address struct {
	ID         string `json:"id" validate:"required"`
	Label      string `json:"label,omitempty"`
	Recipient  string `json:"recipient_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
}

// GetAddress fetches one of the caller's addresses.
func (c *Client) GetAddress(ctx context.Context, sess session.Session, id string) (Address, error) {
	return getOne[Address](ctx, c, sess, "addresses", "/addresses/"+url.PathEscape(id), nil)
}
