package pricing

// Money represents a monetary value in whole rupiah.
type Money = int64

// Summary aggregates computed pricing components for a checkout.
type Summary struct {
	Original        Money `json:"original"`
	Subtotal        Money `json:"subtotal"`
	ProductDiscount Money `json:"product_discount"`
	Shipping        Money `json:"shipping"`
	Total           Money `json:"total"`
	VoucherDiscount Money `json:"voucher_discount"`
	EstimatedTotal  Money `json:"estimated_total"`
}

// Compose builds the checkout summary from cart totals and the resolved
// shipping cost. Total is subtotal plus shipping and is the amount sent to
// payment initiation. The voucher only affects the estimated figure.
func Compose(totals Totals, shipping Money, voucher *Voucher) Summary {
	total := totals.Discounted + shipping
	var voucherDiscount Money
	if voucher != nil {
		voucherDiscount = VoucherDiscount(totals.Discounted, *voucher)
	}
	return Summary{
		Original:        totals.Original,
		Subtotal:        totals.Discounted,
		ProductDiscount: totals.Savings(),
		Shipping:        shipping,
		Total:           total,
		VoucherDiscount: voucherDiscount,
		EstimatedTotal:  total - voucherDiscount,
	}
}
