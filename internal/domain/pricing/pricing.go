// Package pricing reduces cart and order lines to subtotal, tax, shipping
// and total amounts.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Line is a single priced line item.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Totals holds the computed monetary amounts for a set of lines.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// Rules configures tax and shipping.
type Rules struct {
	// TaxRate is applied to the subtotal, e.g. 0.10 for 10%.
	TaxRate decimal.Decimal
	// FreeShippingOver is the subtotal above which shipping is free.
	// A subtotal exactly equal to the threshold still pays ShippingFee.
	FreeShippingOver decimal.Decimal
	// ShippingFee is the flat fee charged below the threshold.
	ShippingFee decimal.Decimal
}

// DefaultRules is a 10% tax with free shipping over 100 and a 9.99 flat fee.
var DefaultRules = Rules{
	TaxRate:          decimal.RequireFromString("0.10"),
	FreeShippingOver: decimal.NewFromInt(100),
	ShippingFee:      decimal.RequireFromString("9.99"),
}

// ParseRules builds Rules from decimal strings. Negative amounts are
// rejected.
func ParseRules(taxRate, freeShippingOver, shippingFee string) (Rules, error) {
	var (
		r   Rules
		err error
	)
	if r.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return r, errors.Wrap(err, "tax rate")
	}
	if r.FreeShippingOver, err = decimal.NewFromString(freeShippingOver); err != nil {
		return r, errors.Wrap(err, "free shipping threshold")
	}
	if r.ShippingFee, err = decimal.NewFromString(shippingFee); err != nil {
		return r, errors.Wrap(err, "shipping fee")
	}
	if r.TaxRate.IsNegative() || r.FreeShippingOver.IsNegative() || r.ShippingFee.IsNegative() {
		return r, errors.New("pricing amounts must not be negative")
	}
	return r, nil
}

// Calculate computes totals using DefaultRules.
func Calculate(lines []Line) Totals {
	return DefaultRules.Calculate(lines)
}

// Calculate computes totals for lines. The subtotal is exact; tax and total
// are rounded to 2 decimal places. An empty list yields all zeroes.
func (r Rules) Calculate(lines []Line) Totals {
	if len(lines) == 0 {
		return Totals{
			Subtotal: decimal.Zero,
			Tax:      decimal.Zero,
			Shipping: decimal.Zero,
			Total:    decimal.Zero,
		}
	}

	subtotal := Subtotal(lines)
	tax := subtotal.Mul(r.TaxRate).Round(2)

	shipping := r.ShippingFee
	if subtotal.GreaterThan(r.FreeShippingOver) {
		shipping = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping).Round(2),
	}
}

// Subtotal returns the sum of price * quantity across all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// ItemCount returns the sum of quantities across all lines.
func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
