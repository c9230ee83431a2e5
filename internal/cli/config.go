package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/kart-storefront/internal/domain/pricing"
)

// Config holds the CLI configuration, loadable from environment variables
// (STOREFRONT_ prefix) or YAML config files. Command-line flags override it.
type Config struct {
	APIURL  string        `default:"http://localhost:8080/api" usage:"Storefront API base URL" env:"API_URL" yaml:"api_url"`
	State   string        `default:"" usage:"Client state store DSN (memory:, file:, sqlite:, redis://)" env:"STATE" yaml:"state"`
	Format  string        `default:"text" usage:"Output format (text|json)" env:"FORMAT" yaml:"format"`
	Timeout time.Duration `default:"30s" usage:"Request timeout" env:"TIMEOUT" yaml:"timeout"`
	Verbose bool          `default:"false" usage:"Verbose logging" env:"VERBOSE" yaml:"verbose"`
	Pricing PricingConfig `env:"PRICING" yaml:"pricing"`
}

// PricingConfig sets the rules used for locally computed totals. They should
// match the server's.
type PricingConfig struct {
	TaxRate          string `default:"0.10" env:"TAX_RATE" yaml:"tax_rate"`
	FreeShippingOver string `default:"100" env:"FREE_SHIPPING_OVER" yaml:"free_shipping_over"`
	ShippingFee      string `default:"9.99" env:"SHIPPING_FEE" yaml:"shipping_fee"`
}

// Rules parses the configured amounts.
func (c PricingConfig) Rules() (pricing.Rules, error) {
	return pricing.ParseRules(c.TaxRate, c.FreeShippingOver, c.ShippingFee)
}

// configFiles lists the YAML files consulted, in order. Missing files are
// skipped.
func configFiles() []string {
	files := []string{"storefront.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, ".config", "storefront", "config.yaml"))
	}
	return files
}

// defaultState is a JSON file in the user config directory.
func defaultState() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return "file:" + filepath.Join(dir, "storefront", "state.json")
}

// loadConfig reads env and files into a Config, then applies the flags set
// on cmd.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "STOREFRONT",
		Files:     configFiles(),
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return cfg, errors.Wrap(err, "load config")
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = opts.APIURL
	}
	if flags.Changed("state") {
		cfg.State = opts.State
	}
	if flags.Changed("format") {
		cfg.Format = opts.Format
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.Timeout
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.Verbose
	}
	if cfg.State == "" {
		cfg.State = defaultState()
	}
	if _, err := cfg.Pricing.Rules(); err != nil {
		return cfg, errors.Wrap(err, "pricing")
	}
	if cfg.Timeout <= 0 {
		return cfg, errors.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if !isValidFormat(cfg.Format) {
		return cfg, errors.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	return cfg, nil
}
