package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultAPIAddr     = "0.0.0.0:8080"
	defaultConsoleAddr = "0.0.0.0:8090"
)

// SalesAPIConfig holds the sales API configuration, loadable from environment
// variables (SALESDESK_API_ prefix), flags, or YAML config files.
type SalesAPIConfig struct {
	Addr        string        `default:"0.0.0.0:8080" usage:"Sales API listen address"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (SALESDESK_API_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string        `usage:"HMAC secret used to sign access tokens" flag:"jwt-secret"`
	TokenTTL    time.Duration `default:"24h" usage:"Access token lifetime" flag:"token-ttl"`
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// ConsoleConfig holds the operator console configuration, loadable from
// environment variables (SALESDESK_CONSOLE_ prefix), flags, or YAML files.
type ConsoleConfig struct {
	Addr       string `default:"0.0.0.0:8090" usage:"Console listen address"`
	BackendURL string `default:"http://localhost:8080/api" usage:"Base URL of the sales API" flag:"backend-url"`
	TaxRate    string `default:"0.18" usage:"Tax rate applied to draft subtotals" flag:"tax-rate"`
	Session    SessionConfig
	Catalog    CatalogConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Graceful   GracefulConfig
}

// SessionConfig bounds operator sessions.
type SessionConfig struct {
	IdleTTL       time.Duration `default:"30m" usage:"Idle time after which a session and its draft are dropped" flag:"session-idle-ttl"`
	MaxSessions   int           `default:"1024" usage:"Maximum number of concurrent sessions" flag:"session-max"`
	SubmitTimeout time.Duration `default:"15s" usage:"Deadline for a draft submission" flag:"submit-timeout"`
}

// CatalogConfig controls the product cache.
type CatalogConfig struct {
	Size int           `default:"4096" usage:"Maximum cached products" flag:"catalog-size"`
	TTL  time.Duration `default:"5m" usage:"Product cache lifetime" flag:"catalog-ttl"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

func load(dst any, prefix string, files ...string) error {
	loader := aconfig.LoaderFor(dst, aconfig.Config{
		EnvPrefix: prefix,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	return errors.Wrap(loader.Load(), "load config")
}

// LoadSalesAPIConfig loads the sales API configuration and applies
// platform-specific defaults.
func LoadSalesAPIConfig() (*SalesAPIConfig, error) {
	var cfg SalesAPIConfig
	if err := load(&cfg, "SALESDESK_API", "sales-api.yaml", "/etc/salesdesk/sales-api.yaml"); err != nil {
		return nil, err
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's prefixed configuration.
func (c *SalesAPIConfig) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	c.Addr = portOverride(c.Addr, defaultAPIAddr)
}

func (c *SalesAPIConfig) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SALESDESK_API_DATABASE_URL or DATABASE_URL")
	case len(c.JWTSecret) < 16:
		return errors.New("jwt secret must be at least 16 bytes: set SALESDESK_API_JWT_SECRET")
	case c.TokenTTL <= 0:
		return errors.New("token ttl must be positive")
	}
	return nil
}

// LoadConsoleConfig loads the console configuration and applies
// platform-specific defaults.
func LoadConsoleConfig() (*ConsoleConfig, error) {
	var cfg ConsoleConfig
	if err := load(&cfg, "SALESDESK_CONSOLE", "console.yaml", "/etc/salesdesk/console.yaml"); err != nil {
		return nil, err
	}
	cfg.Addr = portOverride(cfg.Addr, defaultConsoleAddr)
	if _, err := cfg.taxRate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ConsoleConfig) taxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, errors.Errorf("tax rate %s must be in [0, 1)", rate)
	}
	return rate, nil
}

func portOverride(addr, def string) string {
	if port := os.Getenv("PORT"); port != "" && addr == def {
		return "0.0.0.0:" + port
	}
	return addr
}
