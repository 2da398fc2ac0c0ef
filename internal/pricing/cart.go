package pricing

// Line is a single cart or order entry.
type Line struct {
	Item     PricedItem
	Quantity int64
}

// Totals holds the undiscounted and discounted sums of a set of lines.
type Totals struct {
	Original   Money `json:"original"`
	Discounted Money `json:"discounted"`
}

// Add returns the componentwise sum of both totals.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		Original:   t.Original + other.Original,
		Discounted: t.Discounted + other.Discounted,
	}
}

// Savings is the amount removed by item-level discounts.
func (t Totals) Savings() Money {
	return t.Original - t.Discounted
}

// Aggregate sums original and discounted line totals. Lines with a
// non-positive quantity are ignored.
func Aggregate(lines []Line) Totals {
	var totals Totals
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		totals.Original += line.Item.BasePrice * line.Quantity
		totals.Discounted += line.Item.UnitPrice() * line.Quantity
	}
	return totals
}
