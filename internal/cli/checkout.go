package cli

import (
	"context"

	"github.com/go-faster/jx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/checkout"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/wire"
)

// NewCheckoutCommand places an order from the current cart.
func NewCheckoutCommand(root *RootOptions) *cobra.Command {
	var (
		d   checkout.Details
		key string
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the items in the cart",
		Long: `Place an order for the items in the cart.

Shipping and payment details are validated locally before the order is sent.
Pass --idempotency-key to safely retry an attempt whose outcome is unknown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := d.Validate(); err != nil {
				_ = RenderValidation(cmd.ErrOrStderr(), err)
				return &ExitError{Code: ExitUsage, Message: "invalid checkout details", Err: err, Reported: true}
			}
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				if err := e.carts.Fetch(ctx); err != nil {
					return apiError(err, true)
				}
				if e.carts.IsEmpty() {
					return NewExitError(ExitUsage, "your cart is empty")
				}

				if key == "" {
					key = checkout.NewIdempotencyKey()
				}
				e.lg.Debug("Placing order", zap.String("idempotency_key", key))

				o, err := e.checkout.PlaceOrder(ctx, key)
				if err != nil {
					return apiError(err, true)
				}
				return showOrder(e, o)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&d.Email, "email", "", "Contact email")
	f.StringVar(&d.FirstName, "first-name", "", "First name")
	f.StringVar(&d.LastName, "last-name", "", "Last name")
	f.StringVar(&d.Address, "address", "", "Street address")
	f.StringVar(&d.City, "city", "", "City")
	f.StringVar(&d.State, "state-code", "", "State or region")
	f.StringVar(&d.ZipCode, "zip", "", "ZIP or postal code")
	f.StringVar(&d.CardNumber, "card-number", "", "Card number")
	f.StringVar(&d.ExpiryDate, "expiry", "", "Card expiry date (MM/YY)")
	f.StringVar(&d.CVV, "cvv", "", "Card security code")
	f.StringVar(&d.NameOnCard, "name-on-card", "", "Name on card")
	f.StringVar(&key, "idempotency-key", "", "Reuse the key of a previous attempt")
	return cmd
}

// NewOrdersCommand lists the orders placed from this client.
func NewOrdersCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List orders placed from this client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				orders, err := e.checkout.Orders(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "load orders", err)
				}
				if e.json() {
					return writeJSON(e.out, func(enc *jx.Encoder) {
						enc.Arr(func(enc *jx.Encoder) {
							for _, o := range orders {
								wire.EncodeOrder(enc, o, "")
							}
						})
					})
				}
				return RenderOrders(e.out, orders)
			})
		},
	}
}

// NewOrderCommand shows one order.
func NewOrderCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "order <id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "order id")
			if err != nil {
				return err
			}
			return withEnv(cmd, root, func(ctx context.Context, e *env) error {
				o, err := e.checkout.Order(ctx, id)
				if err != nil {
					return apiError(err, false)
				}
				return showOrder(e, o)
			})
		},
	}
}

func showOrder(e *env, o *order.Order) error {
	if e.json() {
		return writeJSON(e.out, func(enc *jx.Encoder) { wire.EncodeOrder(enc, o, "") })
	}
	return RenderOrder(e.out, o)
}
