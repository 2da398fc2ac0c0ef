package backend

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
)

// RateQuery asks for courier rates between two postal codes.
type RateQuery struct {
	Origin      string
	Destination string
	// Weight in grams.
	Weight int64
}

// Rate is a single courier offer.
type Rate struct {
	Name    string `json:"shipping_name" validate:"required"`
	Cost    Amount `json:"shipping_cost"`
	Service string `json:"service_name,omitempty"`
	ETD     string `json:"etd,omitempty"`
}

// Rates is the rate lookup response.
type Rates struct {
	Cargo   []Rate `json:"calculate_cargo" validate:"dive"`
	Reguler []Rate `json:"calculate_reguler" validate:"dive"`
}

func (r Rates) check() error {
	for _, list := range [][]Rate{r.Cargo, r.Reguler} {
		for _, rate := range list {
			if rate.Cost < 0 {
				return errors.New("negative shipping cost")
			}
		}
	}
	return nil
}

// Options flattens the response into pricing options, cargo first.
func (r Rates) Options() []pricing.ShippingOption {
	convert := func(in []Rate) []pricing.ShippingOption {
		out := make([]pricing.ShippingOption, 0, len(in))
		for _, rate := range in {
			out = append(out, pricing.ShippingOption{Name: rate.Name, Service: rate.Service, Cost: rate.Cost.Money(), ETD: rate.ETD})
		}
		return out
	}
	return pricing.FlattenRates(convert(r.Cargo), convert(r.Reguler))
}

// ShippingRates looks up courier rates.
func (c *Client) ShippingRates(ctx context.Context, sess session.Session, q RateQuery) (Rates, error) {
	values := url.Values{}
	values.Set("origin", q.Origin)
	values.Set("destination", q.Destination)
	values.Set("weight", strconv.FormatInt(q.Weight, 10))
	return getOne[Rates](ctx, c, sess, "shipping_rates", "/shipping/rates", values)
}
