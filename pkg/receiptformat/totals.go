package receiptformat

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineTotal is the printed total of an item. Any caller supplied total is ignored.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Totals are the money figures derived from a request
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	// ShowDiscount reports whether the discount row is printed
	ShowDiscount bool
	// ShowTax reports whether the subtotal and tax rows are printed
	ShowTax bool
}

// ComputeTotals recomputes all money figures from the item quantities and prices.
// Discounts at or below epsilon are treated as absent.
func ComputeTotals(r *Request, epsilon float64) Totals {
	subtotal := decimal.Zero
	for _, item := range r.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	t := Totals{Subtotal: subtotal, Discount: decimal.Zero, Tax: decimal.Zero}
	if r.Discount.GreaterThan(decimal.NewFromFloat(epsilon)) {
		t.Discount = r.Discount
		t.ShowDiscount = true
	}

	net := subtotal.Sub(t.Discount)
	if r.TaxRate.IsPositive() {
		t.Tax = net.Mul(r.TaxRate).Div(hundred).Round(2)
		t.ShowTax = true
	}
	t.Total = net.Add(t.Tax)
	return t
}

// FormatMoney renders an amount with two decimals and the optional currency suffix
func FormatMoney(d decimal.Decimal, currency string) string {
	s := d.StringFixed(2)
	if currency != "" {
		s += " " + currency
	}
	return s
}
