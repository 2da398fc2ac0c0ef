package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

func percent(v pricing.Money) *pricing.Discount {
	return &pricing.Discount{Type: pricing.DiscountPercentage, Value: v}
}

func fixed(v pricing.Money) *pricing.Discount {
	return &pricing.Discount{Type: pricing.DiscountFixedAmount, Value: v}
}

func strPtr(s string) *string { return &s }

func TestScenarioPercentageDisplay(t *testing.T) {
	d := percent(20)
	require.Equal(t, pricing.Money(80_000), pricing.Apply(100_000, d))
	pct, err := pricing.Percentage(100_000, *d)
	require.NoError(t, err)
	require.Equal(t, int64(20), pct)
}

func TestScenarioFixedAmount(t *testing.T) {
	require.Equal(t, pricing.Money(35_000), pricing.Apply(50_000, fixed(15_000)))
}

func TestAggregate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.Equal(t, pricing.Totals{}, pricing.Aggregate(nil))
	})

	t.Run("mixed lines", func(t *testing.T) {
		lines := []pricing.Line{
			{Item: pricing.PricedItem{BasePrice: 100_000, Discount: percent(20)}, Quantity: 2},
			{Item: pricing.PricedItem{BasePrice: 50_000, Discount: fixed(15_000)}, Quantity: 1},
			{Item: pricing.PricedItem{BasePrice: 10_000}, Quantity: 3},
		}
		totals := pricing.Aggregate(lines)
		require.Equal(t, pricing.Money(280_000), totals.Original)
		require.Equal(t, pricing.Money(225_000), totals.Discounted)
		require.Equal(t, pricing.Money(55_000), totals.Savings())
	})

	t.Run("non-positive quantities ignored", func(t *testing.T) {
		lines := []pricing.Line{
			{Item: pricing.PricedItem{BasePrice: 10_000}, Quantity: 0},
			{Item: pricing.PricedItem{BasePrice: 10_000}, Quantity: -2},
			{Item: pricing.PricedItem{BasePrice: 5_000}, Quantity: 1},
		}
		require.Equal(t, pricing.Totals{Original: 5_000, Discounted: 5_000}, pricing.Aggregate(lines))
	})

	t.Run("additive", func(t *testing.T) {
		a := []pricing.Line{
			{Item: pricing.PricedItem{BasePrice: 33_333, Discount: percent(33)}, Quantity: 3},
			{Item: pricing.PricedItem{BasePrice: 1_000, Discount: fixed(2_000)}, Quantity: 4},
		}
		b := []pricing.Line{
			{Item: pricing.PricedItem{BasePrice: 77_777, Discount: percent(7)}, Quantity: 1},
		}
		joined := append(append([]pricing.Line{}, a...), b...)
		require.Equal(t, pricing.Aggregate(a).Add(pricing.Aggregate(b)), pricing.Aggregate(joined))
	})
}

func TestShippingResolution(t *testing.T) {
	cargo := []pricing.ShippingOption{{Name: "JNE Trucking", Cost: 30_000}}
	reguler := []pricing.ShippingOption{
		{Name: "JNE REG", Cost: 12_000},
		{Name: "SiCepat", Cost: 11_000},
		{Name: "JNE REG", Cost: 99_000},
	}
	options := pricing.FlattenRates(cargo, reguler)
	require.Len(t, options, 4)
	require.Equal(t, "JNE Trucking", options[0].Name)

	cost, ok := pricing.ResolveShipping(options, "JNE REG")
	require.True(t, ok)
	require.Equal(t, pricing.Money(12_000), cost)

	cost, ok = pricing.ResolveShipping(options, "Pos Kilat")
	require.False(t, ok)
	require.Zero(t, cost)

	_, ok = pricing.ResolveShipping(options, "")
	require.False(t, ok)

	require.Zero(t, pricing.ShippingCost(nil, "JNE REG"))
	require.Equal(t, pricing.Money(11_000), pricing.ShippingCost(options, "SiCepat"))
}

func TestComposeScenario(t *testing.T) {
	totals := pricing.Totals{Original: 230_000, Discounted: 195_000}
	summary := pricing.Compose(totals, 12_000, nil)
	require.Equal(t, pricing.Summary{
		Original:        230_000,
		Subtotal:        195_000,
		ProductDiscount: 35_000,
		Shipping:        12_000,
		Total:           207_000,
		EstimatedTotal:  207_000,
	}, summary)
}

func TestComposeVoucherIsAdvisory(t *testing.T) {
	totals := pricing.Totals{Original: 200_000, Discounted: 150_000}

	v := pricing.Voucher{ID: "v-1", Discount: *percent(10)}
	summary := pricing.Compose(totals, 10_000, &v)
	require.Equal(t, pricing.Money(160_000), summary.Total)
	require.Equal(t, pricing.Money(15_000), summary.VoucherDiscount)
	require.Equal(t, pricing.Money(145_000), summary.EstimatedTotal)

	big := pricing.Voucher{ID: "v-2", Discount: *fixed(500_000)}
	summary = pricing.Compose(totals, 10_000, &big)
	require.Equal(t, pricing.Money(150_000), summary.VoucherDiscount)
	require.Equal(t, pricing.Money(10_000), summary.EstimatedTotal)

	gated := pricing.Voucher{ID: "v-3", Discount: pricing.Discount{Type: pricing.DiscountFixedAmount, Value: 5_000, MinimumOrder: 200_000}}
	summary = pricing.Compose(totals, 10_000, &gated)
	require.Zero(t, summary.VoucherDiscount)
	require.Equal(t, summary.Total, summary.EstimatedTotal)
}

func TestVoucherEligibility(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	minimum := pricing.Voucher{ID: "min", Discount: pricing.Discount{Type: pricing.DiscountFixedAmount, Value: 10_000, MinimumOrder: 100_000}}

	require.False(t, pricing.Eligible(minimum, 80_000, nil))
	require.True(t, pricing.Eligible(minimum, 100_000, nil))

	redeemed := minimum
	redeemed.IsRedeemed = true
	require.False(t, pricing.Eligible(redeemed, 500_000, nil))

	scoped := pricing.Voucher{ID: "scoped", Discount: pricing.Discount{Type: pricing.DiscountPercentage, Value: 5, StoreID: strPtr("store-a")}}
	require.True(t, pricing.Eligible(scoped, 0, nil))
	require.True(t, pricing.Eligible(scoped, 0, strPtr("store-a")))
	require.False(t, pricing.Eligible(scoped, 0, strPtr("store-b")))

	expired := pricing.Voucher{ID: "expired", Discount: *percent(5), ExpiresAt: now.Add(-time.Hour)}
	require.True(t, pricing.Eligible(expired, 0, nil))
	require.False(t, pricing.EligibleAt(expired, 0, nil, now))

	discountExpired := pricing.Voucher{ID: "dexp", Discount: pricing.Discount{Type: pricing.DiscountPercentage, Value: 5, ExpiresAt: now}}
	require.False(t, pricing.EligibleAt(discountExpired, 0, nil, now))

	open := pricing.Voucher{ID: "open", Discount: *percent(5), ExpiresAt: now.Add(time.Hour)}
	filtered := pricing.FilterEligible([]pricing.Voucher{open, minimum, expired, scoped}, 150_000, strPtr("store-a"), now)
	ids := make([]string, 0, len(filtered))
	for _, v := range filtered {
		ids = append(ids, v.ID)
	}
	require.Equal(t, []string{"open", "min", "scoped"}, ids)
}

func TestScenarioCartWithShipping(t *testing.T) {
	lines := []pricing.Line{
		{Item: pricing.PricedItem{BasePrice: 100_000, Discount: pricing.FirstDiscount([]pricing.Discount{*percent(20), *fixed(1)})}, Quantity: 2},
		{Item: pricing.PricedItem{BasePrice: 50_000, Discount: fixed(15_000)}, Quantity: 1},
	}
	totals := pricing.Aggregate(lines)
	require.Equal(t, pricing.Money(195_000), totals.Discounted)

	options := pricing.FlattenRates(nil, []pricing.ShippingOption{{Name: "JNE REG", Cost: 12_000}})
	summary := pricing.Compose(totals, pricing.ShippingCost(options, "JNE REG"), nil)
	require.Equal(t, pricing.Money(207_000), summary.Total)
}
