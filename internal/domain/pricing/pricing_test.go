package pricing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  Totals
	}{
		{
			name:  "empty cart",
			lines: nil,
			want:  Totals{Subtotal: d("0"), Tax: d("0"), Shipping: d("0"), Total: d("0")},
		},
		{
			name: "over threshold ships free",
			lines: []Line{
				{Price: d("25.00"), Quantity: 2},
				{Price: d("60.00"), Quantity: 1},
			},
			want: Totals{Subtotal: d("110.00"), Tax: d("11.00"), Shipping: d("0"), Total: d("121.00")},
		},
		{
			name:  "under threshold pays flat fee",
			lines: []Line{{Price: d("10.00"), Quantity: 1}},
			want:  Totals{Subtotal: d("10.00"), Tax: d("1.00"), Shipping: d("9.99"), Total: d("20.99")},
		},
		{
			name:  "exactly at threshold pays fee",
			lines: []Line{{Price: d("50.00"), Quantity: 2}},
			want:  Totals{Subtotal: d("100.00"), Tax: d("10.00"), Shipping: d("9.99"), Total: d("119.99")},
		},
		{
			name:  "tax rounds half away from zero",
			lines: []Line{{Price: d("0.05"), Quantity: 1}},
			want:  Totals{Subtotal: d("0.05"), Tax: d("0.01"), Shipping: d("9.99"), Total: d("10.05")},
		},
		{
			name: "subtotal keeps full precision",
			lines: []Line{
				{Price: d("33.333"), Quantity: 3},
				{Price: d("0.001"), Quantity: 1},
			},
			want: Totals{Subtotal: d("100.000"), Tax: d("10.00"), Shipping: d("9.99"), Total: d("119.99")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.lines)

			assert.True(t, tt.want.Subtotal.Equal(got.Subtotal), "subtotal: want %s, got %s", tt.want.Subtotal, got.Subtotal)
			assert.True(t, tt.want.Tax.Equal(got.Tax), "tax: want %s, got %s", tt.want.Tax, got.Tax)
			assert.True(t, tt.want.Shipping.Equal(got.Shipping), "shipping: want %s, got %s", tt.want.Shipping, got.Shipping)
			assert.True(t, tt.want.Total.Equal(got.Total), "total: want %s, got %s", tt.want.Total, got.Total)
		})
	}
}

func TestRules_Custom(t *testing.T) {
	r := Rules{
		TaxRate:          d("0.075"),
		FreeShippingOver: d("50"),
		ShippingFee:      d("4.50"),
	}

	got := r.Calculate([]Line{{Price: d("20"), Quantity: 2}})

	assert.True(t, d("40").Equal(got.Subtotal))
	assert.True(t, d("3.00").Equal(got.Tax))
	assert.True(t, d("4.50").Equal(got.Shipping))
	assert.True(t, d("47.50").Equal(got.Total))
}

func TestItemCount(t *testing.T) {
	assert.Equal(t, 0, ItemCount(nil))
	assert.Equal(t, 5, ItemCount([]Line{
		{Price: d("1"), Quantity: 2},
		{Price: d("2"), Quantity: 3},
	}))
}

// toLines pairs generated prices (in cents) with quantities.
func toLines(cents []int64, qtys []int) []Line {
	n := min(len(cents), len(qtys))
	lines := make([]Line, n)
	for i := range n {
		lines[i] = Line{Price: decimal.New(cents[i], -2), Quantity: qtys[i]}
	}
	return lines
}

func TestCalculate_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	prices := gen.SliceOf(gen.Int64Range(0, 500_000))
	quantities := gen.SliceOf(gen.IntRange(1, 50))

	properties.Property("subtotal is the exact sum of price times quantity", prop.ForAll(
		func(cents []int64, qtys []int) bool {
			lines := toLines(cents, qtys)
			var wantCents int64
			for _, l := range lines {
				wantCents += l.Price.Shift(2).IntPart() * int64(l.Quantity)
			}
			return Calculate(lines).Subtotal.Equal(decimal.New(wantCents, -2))
		},
		prices, quantities,
	))

	properties.Property("tax is the subtotal share rounded to cents", prop.ForAll(
		func(cents []int64, qtys []int) bool {
			got := Calculate(toLines(cents, qtys))
			return got.Tax.Equal(got.Subtotal.Mul(DefaultRules.TaxRate).Round(2))
		},
		prices, quantities,
	))

	properties.Property("shipping is free only above the threshold", prop.ForAll(
		func(cents []int64, qtys []int) bool {
			lines := toLines(cents, qtys)
			got := Calculate(lines)
			switch {
			case len(lines) == 0:
				return got.Shipping.IsZero()
			case got.Subtotal.GreaterThan(DefaultRules.FreeShippingOver):
				return got.Shipping.IsZero()
			default:
				return got.Shipping.Equal(DefaultRules.ShippingFee)
			}
		},
		prices, quantities,
	))

	properties.Property("total is the rounded sum of its parts", prop.ForAll(
		func(cents []int64, qtys []int) bool {
			got := Calculate(toLines(cents, qtys))
			return got.Total.Equal(got.Subtotal.Add(got.Tax).Add(got.Shipping).Round(2))
		},
		prices, quantities,
	))

	properties.Property("calculation is deterministic", prop.ForAll(
		func(cents []int64, qtys []int) bool {
			lines := toLines(cents, qtys)
			a, b := Calculate(lines), Calculate(lines)
			return a.Subtotal.Equal(b.Subtotal) &&
				a.Tax.Equal(b.Tax) &&
				a.Shipping.Equal(b.Shipping) &&
				a.Total.Equal(b.Total)
		},
		prices, quantities,
	))

	properties.TestingRun(t)
}

func TestParseRules(t *testing.T) {
	r, err := ParseRules("0.10", "100", "9.99")
	assert.NoError(t, err)
	assert.True(t, r.TaxRate.Equal(DefaultRules.TaxRate))
	assert.True(t, r.FreeShippingOver.Equal(DefaultRules.FreeShippingOver))
	assert.True(t, r.ShippingFee.Equal(DefaultRules.ShippingFee))

	for _, args := range [][3]string{
		{"x", "100", "9.99"},
		{"0.1", "", "9.99"},
		{"0.1", "100", "-1"},
	} {
		_, err := ParseRules(args[0], args[1], args[2])
		assert.Error(t, err, args)
	}
}
