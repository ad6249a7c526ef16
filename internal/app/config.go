package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (BAZAAR_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Search    SearchConfig
	MQTT      MQTTConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and configures the shop store.
type StorageConfig struct {
	Driver       string        `default:"postgres" usage:"Storage driver: postgres or sqlite"`
	DatabaseURL  string        `usage:"PostgreSQL connection URL (BAZAAR_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SQLitePath   string        `default:"bazaar.db" usage:"SQLite database file" flag:"sqlite-path"`
	QueryTimeout time.Duration `default:"5s" usage:"Upper bound for a single store call" flag:"query-timeout"`
}

// SearchConfig bounds map queries.
type SearchConfig struct {
	DefaultRadiusKm float64 `default:"5" usage:"Radius used when a query has none"`
	MaxRadiusKm     float64 `default:"0" usage:"Largest accepted radius, 0 for unlimited"`
}

// MQTTConfig configures price-change notifications. An empty BrokerURL
// disables them.
type MQTTConfig struct {
	BrokerURL      string        `usage:"MQTT broker, e.g. tcp://localhost:1883" flag:"mqtt-broker"`
	ClientID       string        `default:"bazaar-api" usage:"MQTT client id"`
	TopicPrefix    string        `default:"bazaar" usage:"Prefix of published topics"`
	PublishTimeout time.Duration `default:"2s" usage:"Upper bound for one publish"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	RPS   float64 `default:"10" usage:"Sustained requests per second per client, 0 disables"`
	Burst int     `default:"40" usage:"Burst size per client"`
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

// LoadConfig loads configuration from environment variables and YAML files,
// applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BAZAAR",
		Files:     []string{"config.yaml", "/etc/bazaar/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables that hosting platforms
// set (DATABASE_URL, PORT, CORS_ORIGIN, FRONTEND_URL) onto the config.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = getenv("DATABASE_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}

	var origins []string
	for _, key := range []string{"CORS_ORIGIN", "FRONTEND_URL"} {
		for _, o := range strings.Split(getenv(key), ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	if len(origins) > 0 && (len(c.CORS.Origins) == 0 || (len(c.CORS.Origins) == 1 && c.CORS.Origins[0] == "*")) {
		c.CORS.Origins = origins
	}
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set BAZAAR_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("sqlite path is required")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Search.DefaultRadiusKm <= 0 {
		return errors.New("default search radius must be positive")
	}
	if c.Search.MaxRadiusKm < 0 {
		return errors.New("max search radius must not be negative")
	}
	if c.Search.MaxRadiusKm > 0 && c.Search.DefaultRadiusKm > c.Search.MaxRadiusKm {
		return errors.Errorf("default search radius %g exceeds max %g",
			c.Search.DefaultRadiusKm, c.Search.MaxRadiusKm)
	}
	return nil
}
