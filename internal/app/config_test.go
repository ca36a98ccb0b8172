package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xenax33/fbr-invoice-frontend-sub001/internal/fbr"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, StorePostgres, cfg.CatalogStore)
	assert.Equal(t, 10, cfg.ReconcileMaxPages)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, uint64(3), cfg.FBRRetry().MaxRetries)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CATALOG_STORE", "memory")
	t.Setenv("FBR_SANDBOX_TOKEN", "sbx")
	t.Setenv("FBR_PRODUCTION_TOKEN", "prod")
	t.Setenv("FBR_PRODUCTION_ENABLED", "true")
	t.Setenv("FBR_CACHE_TTL", "15m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.CatalogStore)
	assert.Equal(t, "15m0s", cfg.FBRCacheTTL.String())

	cred, err := fbr.SelectCredential(fbr.Account(cfg.FBRAccount()))
	require.NoError(t, err)
	assert.Equal(t, fbr.EnvProduction, cred.Environment)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			CatalogStore:      StorePostgres,
			CatalogAPIURL:     "http://127.0.0.1:8081",
			FBRAPIURL:         "https://fbr.example.test",
			ReconcileMaxPages: 10,
		}
	}
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown store", func(c *Config) { c.CatalogStore = "sqlite" }, "CATALOG_STORE"},
		{"relative catalog url", func(c *Config) { c.CatalogAPIURL = "/v1" }, "CATALOG_API_URL"},
		{"bad fbr url", func(c *Config) { c.FBRAPIURL = "::" }, "FBR_API_URL"},
		{"production without token", func(c *Config) { c.FBRProductionEnabled = true }, "FBR_PRODUCTION_TOKEN"},
		{"negative rate", func(c *Config) { c.FBRRateLimit = -1 }, "FBR_RATE_LIMIT"},
		{"zero pages", func(c *Config) { c.ReconcileMaxPages = 0 }, "RECONCILE_MAX_PAGES"},
		{"production needs catalog token", func(c *Config) { c.AppEnv = "production" }, "CATALOG_API_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
