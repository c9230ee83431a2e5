package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/checkout"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

const dateLayout = "2006-01-02 15:04"

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// RenderProducts writes a product listing page as a table.
func RenderProducts(w io.Writer, page *product.Page) error {
	if page == nil || len(page.Items) == 0 {
		_, err := fmt.Fprintln(w, "No products found.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range page.Items {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, money(p.Price), stock(p.Stock))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pg := page.Pagination
	_, err := fmt.Fprintf(w, "\nPage %d of %d, %d products\n", pg.Page, max(pg.TotalPages, 1), pg.Total)
	return err
}

func stock(n int) string {
	if n <= 0 {
		return "out of stock"
	}
	return strconv.Itoa(n)
}

// RenderProduct writes the details of a single product.
func RenderProduct(w io.Writer, p *product.Product) error {
	tw := newTable(w)
	_, _ = fmt.Fprintf(tw, "ID:\t%d\n", p.ID)
	_, _ = fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	_, _ = fmt.Fprintf(tw, "Category:\t%s\n", p.Category)
	_, _ = fmt.Fprintf(tw, "Price:\t%s\n", money(p.Price))
	if p.DiscountPercentage > 0 {
		_, _ = fmt.Fprintf(tw, "Discount:\t%s%%\n", strconv.FormatFloat(p.DiscountPercentage, 'f', -1, 64))
	}
	_, _ = fmt.Fprintf(tw, "Stock:\t%s\n", stock(p.Stock))
	if p.Rating > 0 {
		_, _ = fmt.Fprintf(tw, "Rating:\t%s\n", strconv.FormatFloat(p.Rating, 'f', 1, 64))
	}
	if img := p.Image(); img != "" {
		_, _ = fmt.Fprintf(tw, "Image:\t%s\n", img)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if p.Description != "" {
		_, err := fmt.Fprintf(w, "\n%s\n", p.Description)
		return err
	}
	return nil
}

// RenderCategories writes one category per line.
func RenderCategories(w io.Writer, categories []string) error {
	if len(categories) == 0 {
		_, err := fmt.Fprintln(w, "No categories.")
		return err
	}
	for _, c := range categories {
		if _, err := fmt.Fprintln(w, c); err != nil {
			return err
		}
	}
	return nil
}

// RenderCart writes the cart lines followed by its totals.
func RenderCart(w io.Writer, c *cart.Cart, t pricing.Totals) error {
	if c.IsEmpty() {
		_, err := fmt.Fprintln(w, "Your cart is empty.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ITEM\tPRODUCT\tQTY\tPRICE\tTOTAL")
	for _, it := range c.Items {
		line := it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			it.ID, it.Product.Name, it.Quantity, money(it.Product.Price), money(line))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w)
	return renderTotals(w, t)
}

func renderTotals(w io.Writer, t pricing.Totals) error {
	shipping := money(t.Shipping)
	if t.Shipping.IsZero() {
		shipping = "FREE"
	}
	_, _ = fmt.Fprintf(w, "%-10s%s\n", "Subtotal:", money(t.Subtotal))
	_, _ = fmt.Fprintf(w, "%-10s%s\n", "Tax:", money(t.Tax))
	_, _ = fmt.Fprintf(w, "%-10s%s\n", "Shipping:", shipping)
	_, err := fmt.Fprintf(w, "%-10s%s\n", "Total:", money(t.Total))
	return err
}

// RenderOrder writes an order with its lines and totals.
func RenderOrder(w io.Writer, o *order.Order) error {
	_, _ = fmt.Fprintf(w, "Order #%d (%s)\n", o.ID, o.Status)
	if !o.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Placed %s\n", o.CreatedAt.UTC().Format(dateLayout))
	}
	_, _ = fmt.Fprintln(w)

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "PRODUCT\tQTY\tPRICE\tTOTAL")
	for _, it := range o.Items {
		name := it.Product.Name
		if name == "" {
			name = "#" + strconv.FormatInt(it.ProductID, 10)
		}
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, it.Quantity, money(it.Price), money(line))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w)
	return renderTotals(w, pricing.Totals{
		Subtotal: o.Subtotal,
		Tax:      o.Tax,
		Shipping: o.Shipping,
		Total:    o.Total,
	})
}

// RenderOrders writes a summary line per order.
func RenderOrders(w io.Writer, orders []*order.Order) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "No orders yet.")
		return err
	}

	tw := newTable(w)
	_, _ = fmt.Fprintln(tw, "ORDER\tSTATUS\tITEMS\tTOTAL\tPLACED")
	for _, o := range orders {
		units := 0
		for _, it := range o.Items {
			units += it.Quantity
		}
		placed := "-"
		if !o.CreatedAt.IsZero() {
			placed = o.CreatedAt.UTC().Format(dateLayout)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", o.ID, o.Status, units, money(o.Total), placed)
	}
	return tw.Flush()
}

// RenderValidation lists the invalid checkout fields.
func RenderValidation(w io.Writer, err error) error {
	var vErr *checkout.ValidationError
	if !errors.As(err, &vErr) {
		_, werr := fmt.Fprintln(w, err.Error())
		return werr
	}
	_, _ = fmt.Fprintln(w, "Please fix the following fields:")
	tw := newTable(w)
	for _, f := range vErr.Fields {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", f.Field, f.Message)
	}
	return tw.Flush()
}

// writeJSON writes the data envelope produced by data, followed by a newline.
func writeJSON(w io.Writer, data func(e *jx.Encoder)) error {
	buf := wire.Encode(func(e *jx.Encoder) {
		wire.EncodeData(e, data)
	})
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}

// RenderProductsJSON writes a product page in the API list envelope.
func RenderProductsJSON(w io.Writer, page *product.Page) error {
	buf := wire.Encode(func(e *jx.Encoder) {
		wire.EncodeList(e, func(e *jx.Encoder) {
			wire.EncodeProducts(e, page.Items, "")
		}, page.Pagination)
	})
	_, err := w.Write(append(buf, '\n'))
	return err
}

// RenderCartJSON writes the cart together with its totals.
func RenderCartJSON(w io.Writer, c *cart.Cart, t pricing.Totals) error {
	return writeJSON(w, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("cart", func(e *jx.Encoder) { wire.EncodeCart(e, c, "") })
			e.Field("totals", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("subtotal", func(e *jx.Encoder) { e.Str(t.Subtotal.StringFixed(2)) })
					e.Field("tax", func(e *jx.Encoder) { e.Str(t.Tax.StringFixed(2)) })
					e.Field("shipping", func(e *jx.Encoder) { e.Str(t.Shipping.StringFixed(2)) })
					e.Field("total", func(e *jx.Encoder) { e.Str(t.Total.StringFixed(2)) })
				})
			})
		})
	})
}
