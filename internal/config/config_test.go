package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onronder/p-958660-sub000/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
database:
  host: "localhost"
  user: "extractor"
  dbname: "extractor"
`

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := config.Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8070, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "2023-10", cfg.Shopify.APIVersion)
	assert.InDelta(t, 4.0, cfg.Shopify.RateLimit, 0)
	assert.Equal(t, 8, cfg.Shopify.RateBurst)
	assert.Equal(t, 5, cfg.Shopify.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.Shopify.BreakerTimeout)
	assert.Equal(t, 30*time.Second, cfg.Extraction.FullTimeout)
	assert.Equal(t, 15*time.Second, cfg.Extraction.PreviewTimeout)
	assert.Equal(t, 5*time.Second, cfg.Extraction.ConnectionTimeout)
	assert.Equal(t, 1<<20, cfg.Extraction.MaxPreviewBytes)
	assert.Equal(t, 5, cfg.Extraction.DependentConcurrency)
	assert.Equal(t, 4, cfg.Extraction.Workers)
	assert.Equal(t, 256, cfg.Extraction.QueueSize)
	assert.Equal(t, time.Hour, cfg.Preview.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Preview.TemplateCacheTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SHOPIFY_API_VERSION", "2024-04")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EXTRACTION_PREVIEW_TIMEOUT", "3s")

	cfg, err := config.Load(writeConfig(t, minimal+`
shopify:
  api_version: "2023-07"
`))
	require.NoError(t, err)

	assert.Equal(t, "2024-04", cfg.Shopify.APIVersion)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Extraction.PreviewTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing database host", "database:\n  user: u\n  dbname: d\n", "database.host"},
		{"missing database user", "database:\n  host: h\n  dbname: d\n", "database.user"},
		{"bad port", minimal + "server:\n  port: 70000\n", "server.port"},
		{"negative workers", minimal + "extraction:\n  workers: -1\n", "extraction.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	d := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "x", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=x sslmode=disable", d.DSN())
}
