package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront-pricing/pkg/httpmiddleware"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PRICING_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PRICING_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Catalog     CatalogConfig
	Orders      OrdersConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// CatalogConfig controls the per-store discount catalog cache.
type CatalogConfig struct {
	CacheTTL time.Duration `default:"30s" usage:"How long a store catalog is cached, 0 disables caching" flag:"catalog-cache-ttl"`
}

// OrdersConfig controls checkout.
type OrdersConfig struct {
	RedeemRetries int `default:"3" usage:"Retries of a checkout transaction on serialization failure" flag:"redeem-retries"`
}

// RateLimitConfig controls the per-client token bucket rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`

	// TrustProxy keys clients by X-Forwarded-For. Enable only behind a
	// proxy that overwrites the header.
	TrustProxy bool `default:"false" usage:"Key rate limits by X-Forwarded-For" flag:"rate-limit-trust-proxy"`
}

func (c RateLimitConfig) middlewareConfig() httpmiddleware.RateLimitConfig {
	keyFunc := httpmiddleware.ClientIP
	if c.TrustProxy {
		keyFunc = httpmiddleware.ForwardedClientIP
	}
	return httpmiddleware.RateLimitConfig{
		Max:     c.Max,
		Window:  c.Window,
		KeyFunc: keyFunc,
	}
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "PRICING",
		Files:     []string{"config.yaml", "/etc/pricing/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration errors that defaults cannot fix.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set PRICING_DATABASE_URL or DATABASE_URL")
	case c.RateLimit.Max <= 0:
		return errors.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max)
	case c.RateLimit.Window <= 0:
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	case c.Orders.RedeemRetries < 0:
		return errors.Errorf("redeem retries must not be negative, got %d", c.Orders.RedeemRetries)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT onto the PRICING_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
