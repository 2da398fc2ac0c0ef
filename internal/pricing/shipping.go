package pricing

// ShippingOption is a courier quote returned by the rate lookup.
type ShippingOption struct {
	Name    string `json:"name"`
	Service string `json:"service,omitempty"`
	Cost    Money  `json:"cost"`
	ETD     string `json:"etd,omitempty"`
}

// FlattenRates joins the cargo and regular rate lists into a single option list.
// Order is preserved and nothing is filtered or deduplicated.
func FlattenRates(cargo, reguler []ShippingOption) []ShippingOption {
	out := make([]ShippingOption, 0, len(cargo)+len(reguler))
	out = append(out, cargo...)
	return append(out, reguler...)
}

// ResolveShipping returns the cost of the first option named selected. The
// boolean is false when no option matches, in which case the cost is zero.
func ResolveShipping(options []ShippingOption, selected string) (Money, bool) {
	if selected == "" {
		return 0, false
	}
	for _, opt := range options {
		if opt.Name == selected {
			return opt.Cost, true
		}
	}
	return 0, false
}

// ShippingCost is ResolveShipping without the match flag.
func ShippingCost(options []ShippingOption, selected string) Money {
	cost, _ := ResolveShipping(options, selected)
	return cost
}
