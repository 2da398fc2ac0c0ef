package pricing

import "time"

// Voucher is a user-owned discount claim. Its Discount carries the minimum
// order and the optional store scope.
type Voucher struct {
	ID         string    `json:"id"`
	Code       string    `json:"code,omitempty"`
	Discount   Discount  `json:"discount"`
	IsRedeemed bool      `json:"is_redeemed"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
}

// Eligible reports whether the voucher may be shown for an order of the given
// amount in the given store. A nil storeID or an unscoped voucher matches any store.
func Eligible(v Voucher, orderMinimum Money, storeID *string) bool {
	if v.IsRedeemed {
		return false
	}
	if v.Discount.MinimumOrder > orderMinimum {
		return false
	}
	if storeID == nil || v.Discount.StoreID == nil {
		return true
	}
	return *v.Discount.StoreID == *storeID
}

// EligibleAt is Eligible that also requires the voucher and its discount to be unexpired.
func EligibleAt(v Voucher, orderMinimum Money, storeID *string, now time.Time) bool {
	if !v.ExpiresAt.IsZero() && !now.Before(v.ExpiresAt) {
		return false
	}
	if !v.Discount.ActiveAt(now) {
		return false
	}
	return Eligible(v, orderMinimum, storeID)
}

// FilterEligible keeps the vouchers usable for the order, preserving input order.
func FilterEligible(vouchers []Voucher, orderMinimum Money, storeID *string, now time.Time) []Voucher {
	out := make([]Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		if EligibleAt(v, orderMinimum, storeID, now) {
			out = append(out, v)
		}
	}
	return out
}

// VoucherDiscount estimates the reduction a voucher would give on subtotal.
// The figure is advisory: the backend applies vouchers when the order is created.
func VoucherDiscount(subtotal Money, v Voucher) Money {
	if subtotal <= 0 || v.IsRedeemed || v.Discount.MinimumOrder > subtotal {
		return 0
	}
	var discount Money
	switch v.Discount.Type {
	case DiscountPercentage:
		discount = (subtotal * v.Discount.Value) / 100
	case DiscountFixedAmount:
		discount = v.Discount.Value
	default:
		return 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}
