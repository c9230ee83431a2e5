// Package cli implements the storefront terminal client: catalog browsing,
// the session cart, checkout and order history.
package cli

import (
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL  string
	State   string
	Format  string // "json" | "text"
	Timeout time.Duration
	Verbose bool

	// cfg is the effective configuration, resolved before any command runs.
	cfg Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the storefront CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Browse the catalog, manage your cart and place orders",
		Long: `storefront is a terminal client for the storefront API.

Your session and cart are kept in a local state store, so the cart survives
between invocations. Totals are computed locally with the same rules the
server applies at checkout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return WrapExitError(ExitUsage, "invalid configuration", err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.APIURL, "api-url", "http://localhost:8080/api", "storefront API base URL")
	flags.StringVar(&opts.State, "state", "", "state store DSN (memory:, file:PATH, sqlite:PATH, redis://HOST)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "request timeout")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewCategoriesCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
