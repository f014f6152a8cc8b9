package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/pizzeria/internal/domain/order"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PIZZA_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PIZZA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	MenuFile    string `default:"" usage:"YAML menu fixture applied at startup" flag:"menu-file"`
	Order       OrderConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// OrderConfig controls order composition.
type OrderConfig struct {
	Address         string `default:"" usage:"Delivery address used when a request names none"`
	Cutoff          string `default:"19:30:00" usage:"Daily cutoff (HH:MM or HH:MM:SS) for in-time orders"`
	CutoffInclusive bool   `default:"true" usage:"Whether an order created exactly at the cutoff is in time" flag:"cutoff-inclusive"`
	Timezone        string `default:"UTC" usage:"IANA time zone the cutoff is evaluated in"`
}

// Window builds the acceptance window described by c.
func (c OrderConfig) Window() (order.Window, error) {
	cutoff, err := order.ParseCutoff(c.Cutoff)
	if err != nil {
		return order.Window{}, err
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return order.Window{}, errors.Wrapf(err, "timezone %q", c.Timezone)
	}
	return order.Window{Cutoff: cutoff, Inclusive: c.CutoffInclusive, Location: loc}, nil
}

// RateLimitConfig limits order writes per client.
type RateLimitConfig struct {
	Max    int           `default:"60" usage:"Max order writes per client per window, 0 disables"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:], []string{"config.yaml", "/etc/pizzeria/config.yaml"})
}

// loadConfig skips flag parsing when args is nil.
func loadConfig(args, files []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PIZZA",
		SkipFlags: args == nil,
		Args:      args,
		Files:     files,
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
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set PIZZA_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q", c.Storage)
	}
	if _, err := c.Order.Window(); err != nil {
		return errors.Wrap(err, "order window")
	}
	return nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL and PORT variables
// set by hosting platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
