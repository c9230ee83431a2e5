package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config is the storefront API server configuration. Values come from KART_
// environment variables, flags and config.yaml.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"Listen address"`
	DatabaseURL  string `usage:"PostgreSQL URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `usage:"Prefix for relative product image paths" flag:"image-base-url"`
	Pricing      PricingConfig
	Orders       OrdersConfig
	Health       HealthConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig sets tax and shipping for cart totals and orders. Amounts are
// decimal strings so they never pass through float64.
type PricingConfig struct {
	TaxRate          string `default:"0.10" usage:"Tax rate applied to the subtotal" flag:"tax-rate"`
	FreeShippingOver string `default:"100"  usage:"Subtotal above which shipping is free" flag:"free-shipping-over"`
	ShippingFee      string `default:"9.99" usage:"Flat shipping fee below the threshold" flag:"shipping-fee"`
}

// Rules parses the configured amounts.
func (c PricingConfig) Rules() (pricing.Rules, error) {
	return pricing.ParseRules(c.TaxRate, c.FreeShippingOver, c.ShippingFee)
}

// OrdersConfig sizes the idempotency key filter of the order service.
type OrdersConfig struct {
	KeyFilterCapacity uint    `default:"1000000" usage:"Expected number of idempotency keys" flag:"key-filter-capacity"`
	KeyFilterFPR      float64 `default:"0.001" usage:"Idempotency key filter false positive rate" flag:"key-filter-fpr"`
}

// HealthConfig controls background probes.
type HealthConfig struct {
	Interval      time.Duration `default:"10s" usage:"Probe interval" flag:"health-interval"`
	Timeout       time.Duration `default:"5s" usage:"Readiness probe timeout" flag:"health-timeout"`
	MaxGoroutines int           `default:"10000" usage:"Liveness fails above this many goroutines" flag:"health-max-goroutines"`
	MaxGCPause    time.Duration `default:"1s" usage:"Liveness fails above this GC pause" flag:"health-max-gc-pause"`
}

// RateLimitConfig sets the per-session token bucket: Max requests of burst,
// refilled over Window.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Requests allowed per window"`
	Window time.Duration `default:"1m"  usage:"Time to refill the bucket"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentialed requests" flag:"cors-credentials"`
	MaxAge           int      `default:"86400" usage:"Preflight cache lifetime in seconds" flag:"cors-max-age"`
}

// GracefulConfig controls shutdown.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay between readiness=false and shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Pricing.Rules(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	if c.Orders.KeyFilterFPR <= 0 || c.Orders.KeyFilterFPR >= 1 {
		return errors.Errorf("key filter false positive rate %v out of (0, 1)", c.Orders.KeyFilterFPR)
	}
	if c.Health.Interval <= 0 {
		return errors.Errorf("health interval must be positive, got %s", c.Health.Interval)
	}
	return nil
}

// orderOptions maps the configuration onto order service options.
func (c *Config) orderOptions() []order.Option {
	return []order.Option{order.WithKeyFilter(c.Orders.KeyFilterCapacity, c.Orders.KeyFilterFPR)}
}

// applyPlatformDefaults honours DATABASE_URL and PORT as set by hosting
// platforms when the KART_ equivalents are absent.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
