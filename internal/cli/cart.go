package cli

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/kart-storefront/internal/cartstore"
)

// NewCartCommand shows the cart and groups the commands changing it.
func NewCartCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				if err := e.carts.Fetch(ctx); err != nil {
					return apiError(err, true)
				}
				return showCart(e)
			})
		},
	}
	cmd.AddCommand(
		newCartAddCommand(root),
		newCartUpdateCommand(root),
		newCartRemoveCommand(root),
		newCartClearCommand(root),
	)
	return cmd
}

func newCartAddCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0], "product id")
			if err != nil {
				return err
			}
			qty := 1
			if len(args) == 2 {
				if qty, err = parseQuantity(args[1]); err != nil {
					return err
				}
			}
			return cartMutation(cmd, root, func(ctx context.Context, e *env) error {
				return e.carts.AddItem(ctx, productID, qty)
			})
		},
	}
}

func newCartUpdateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <item-id> <quantity>",
		Short: "Change the quantity of a cart item; zero removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "item id")
			if err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			return cartMutation(cmd, root, func(ctx context.Context, e *env) error {
				return e.carts.UpdateItem(ctx, itemID, qty)
			})
		},
	}
}

func newCartRemoveCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove an item from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0], "item id")
			if err != nil {
				return err
			}
			return cartMutation(cmd, root, func(ctx context.Context, e *env) error {
				return e.carts.RemoveItem(ctx, itemID)
			})
		},
	}
}

func newCartClearCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every item from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cartMutation(cmd, root, func(ctx context.Context, e *env) error {
				return e.carts.Clear(ctx)
			})
		},
	}
}

// cartMutation runs fn and shows the resulting cart. Failures have already
// been reported by the cart notifier.
func cartMutation(cmd *cobra.Command, root *RootOptions, fn func(ctx context.Context, e *env) error) error {
	return withEnv(cmd, root, func(ctx context.Context, e *env) error {
		err := fn(ctx, e)
		switch {
		case errors.Is(err, cartstore.ErrInvalidQuantity):
			return WrapExitError(ExitUsage, err.Error(), err)
		case err != nil:
			return apiError(err, true)
		}
		return showCart(e)
	})
}

func showCart(e *env) error {
	if e.json() {
		return RenderCartJSON(e.out, e.carts.Cart(), e.carts.Totals())
	}
	return RenderCart(e.out, e.carts.Cart(), e.carts.Totals())
}
