package app

import (
	"testing"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Addr: defaultAddr,
		Storage: StorageConfig{
			Driver:      DriverPostgres,
			DatabaseURL: "postgres://localhost/bazaar",
			SQLitePath:  "bazaar.db",
		},
		Search: SearchConfig{DefaultRadiusKm: 5, MaxRadiusKm: 50},
		CORS:   CORSConfig{Origins: []string{"*"}},
	}
}

// defaultConfig loads the struct tag defaults only.
func defaultConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFiles: true,
		SkipEnv:   true,
		SkipFlags: true,
	})
	require.NoError(t, loader.Load())
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig(t)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5.0, cfg.Search.DefaultRadiusKm)
	assert.Zero(t, cfg.Search.MaxRadiusKm, "any positive radius is accepted")
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)

	cfg.Storage.DatabaseURL = "postgres://localhost/bazaar"
	require.NoError(t, cfg.Validate())
}

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestApplyPlatformDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DatabaseURL = ""
	cfg.applyPlatformDefaults(env(map[string]string{
		"DATABASE_URL": "postgres://railway/db",
		"PORT":         "3000",
		"CORS_ORIGIN":  "https://a.example, https://b.example",
		"FRONTEND_URL": "https://app.example",
	}))

	assert.Equal(t, "postgres://railway/db", cfg.Storage.DatabaseURL)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example", "https://app.example"}, cfg.CORS.Origins)
}

func TestApplyPlatformDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := validConfig()
	cfg.Addr = "127.0.0.1:9000"
	cfg.CORS.Origins = []string{"https://configured.example"}
	cfg.applyPlatformDefaults(env(map[string]string{
		"DATABASE_URL": "postgres://other/db",
		"PORT":         "3000",
		"CORS_ORIGIN":  "https://a.example",
	}))

	assert.Equal(t, "postgres://localhost/bazaar", cfg.Storage.DatabaseURL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, []string{"https://configured.example"}, cfg.CORS.Origins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid postgres", func(*Config) {}, ""},
		{"valid sqlite without url", func(c *Config) {
			c.Storage.Driver = DriverSQLite
			c.Storage.DatabaseURL = ""
		}, ""},
		{"unlimited radius", func(c *Config) { c.Search.MaxRadiusKm = 0 }, ""},
		{"postgres without url", func(c *Config) { c.Storage.DatabaseURL = "" }, "database URL is required"},
		{"sqlite without path", func(c *Config) {
			c.Storage.Driver = DriverSQLite
			c.Storage.SQLitePath = ""
		}, "sqlite path"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, `unknown storage driver "mongo"`},
		{"zero default radius", func(c *Config) { c.Search.DefaultRadiusKm = 0 }, "must be positive"},
		{"negative max radius", func(c *Config) { c.Search.MaxRadiusKm = -1 }, "must not be negative"},
		{"default above max", func(c *Config) { c.Search.DefaultRadiusKm = 80 }, "exceeds max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
