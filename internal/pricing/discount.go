package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidDiscount is returned when a discount record cannot be priced safely.
	ErrInvalidDiscount = errors.New("pricing: invalid discount")
	// ErrZeroBasePrice is returned when a display percentage is requested for a
	// fixed-amount discount on an item priced at zero.
	ErrZeroBasePrice = errors.New("pricing: base price is zero")
)

// DiscountType enumerates the supported reduction kinds.
type DiscountType string

const (
	// DiscountPercentage reduces the price by a percentage of the base price.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount reduces the price by a flat amount.
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// ParseDiscountType normalises the spellings used by the backend.
func ParseDiscountType(value string) (DiscountType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percentage", "percent":
		return DiscountPercentage, nil
	case "fixed_amount", "fixed", "nominal":
		return DiscountFixedAmount, nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, value)
	}
}

// Discount describes a single price reduction attached to a product or voucher.
type Discount struct {
	Type         DiscountType `json:"type"`
	Value        Money        `json:"value"`
	MinimumOrder Money        `json:"minimum_order"`
	ExpiresAt    time.Time    `json:"expires_at,omitzero"`
	StoreID      *string      `json:"store_id,omitempty"`
}

// Validate reports whether the discount can be applied without producing
// nonsensical prices.
func (d Discount) Validate() error {
	switch d.Type {
	case DiscountPercentage:
		if d.Value > 100 {
			return fmt.Errorf("%w: percentage %d exceeds 100", ErrInvalidDiscount, d.Value)
		}
	case DiscountFixedAmount:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, d.Type)
	}
	if d.Value < 0 {
		return fmt.Errorf("%w: negative value %d", ErrInvalidDiscount, d.Value)
	}
	if d.MinimumOrder < 0 {
		return fmt.Errorf("%w: negative minimum order %d", ErrInvalidDiscount, d.MinimumOrder)
	}
	return nil
}

// ActiveAt reports whether the discount has not yet expired. A zero expiry never expires.
func (d Discount) ActiveAt(now time.Time) bool {
	return d.ExpiresAt.IsZero() || now.Before(d.ExpiresAt)
}

// PricedItem is a catalog entry with its base price and the discount honoured for it, if any.
type PricedItem struct {
	BasePrice Money
	Discount  *Discount
}

// UnitPrice returns the discounted price of a single unit.
func (p PricedItem) UnitPrice() Money {
	return Apply(p.BasePrice, p.Discount)
}

// FirstDiscount picks the discount honoured for an item. Only the first entry of
// the backend's discount list ever applies; stacking is not supported. It
// works on wire forms too, so callers decode and validate only that entry.
func FirstDiscount[D any](list []D) *D {
	if len(list) == 0 {
		return nil
	}
	d := list[0]
	return &d
}

// Apply computes the unit price after discount. Percentage reductions are
// truncated toward zero. The result is clamped to [0, basePrice].
func Apply(basePrice Money, d *Discount) Money {
	if d == nil {
		return basePrice
	}
	var reduction Money
	switch d.Type {
	case DiscountPercentage:
		reduction = (basePrice * d.Value) / 100
	case DiscountFixedAmount:
		reduction = d.Value
	default:
		return basePrice
	}
	price := basePrice - reduction
	if price < 0 {
		return 0
	}
	if price > basePrice {
		return basePrice
	}
	return price
}

// Percentage returns the discount percentage shown next to a product. Percentage
// discounts report their own value; fixed amounts are expressed relative to the
// base price and rounded half up.
func Percentage(basePrice Money, d Discount) (int64, error) {
	if d.Type == DiscountPercentage {
		return d.Value, nil
	}
	if basePrice == 0 {
		return 0, ErrZeroBasePrice
	}
	// round(x) == floor(x + 0.5) with x = value*100/base.
	return floorDiv(d.Value*200+basePrice, 2*basePrice), nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
