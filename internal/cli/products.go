package cli

import (
	"context"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

type productsOptions struct {
	search   string
	category string
	minPrice string
	maxPrice string
	page     int
	limit    int
}

func (o productsOptions) filter() (product.Filter, error) {
	f := product.Filter{
		Search:   o.search,
		Category: o.category,
		Page:     o.page,
		Limit:    o.limit,
	}
	for _, p := range []struct {
		flag  string
		value string
		dst   **decimal.Decimal
	}{
		{"min-price", o.minPrice, &f.MinPrice},
		{"max-price", o.maxPrice, &f.MaxPrice},
	} {
		if p.value == "" {
			continue
		}
		d, err := decimal.NewFromString(p.value)
		if err != nil {
			return f, WrapExitError(ExitUsage, "invalid --"+p.flag, err)
		}
		*p.dst = &d
	}
	return f.Normalize(), nil
}

// NewProductsCommand lists the catalog.
func NewProductsCommand(root *RootOptions) *cobra.Command {
	var opts productsOptions
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := opts.filter()
			if err != nil {
				return err
			}
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				page, err := e.api.ListProducts(ctx, f)
				if err != nil {
					return apiError(err, false)
				}
				if e.json() {
					return RenderProductsJSON(e.out, page)
				}
				return RenderProducts(e.out, page)
			})
		},
	}
	cmd.Flags().StringVar(&opts.search, "search", "", "Search in product names and descriptions")
	cmd.Flags().StringVar(&opts.category, "category", "", "Only products of this category")
	cmd.Flags().StringVar(&opts.minPrice, "min-price", "", "Minimum price")
	cmd.Flags().StringVar(&opts.maxPrice, "max-price", "", "Maximum price")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.limit, "limit", product.DefaultLimit, "Products per page")
	return cmd
}

// NewProductCommand shows one product.
func NewProductCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Show a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "product id")
			if err != nil {
				return err
			}
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				p, err := e.api.GetProduct(ctx, id)
				if err != nil {
					return apiError(err, false)
				}
				if e.json() {
					return writeJSON(e.out, func(enc *jx.Encoder) { wire.EncodeProduct(enc, *p, "") })
				}
				return RenderProduct(e.out, p)
			})
		},
	}
}

// NewCategoriesCommand lists the catalog categories.
func NewCategoriesCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				categories, err := e.api.Categories(ctx)
				if err != nil {
					return apiError(err, false)
				}
				if e.json() {
					return writeJSON(e.out, func(enc *jx.Encoder) { wire.EncodeStrings(enc, categories) })
				}
				return RenderCategories(e.out, categories)
			})
		},
	}
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, NewExitError(ExitUsage, "invalid "+what+": "+s)
	}
	return id, nil
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewExitError(ExitUsage, "invalid quantity: "+s)
	}
	return n, nil
}
