package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"SERVER_ADDR":        ":9090",
		"DATABASE_URL":       "postgres://localhost/intro",
		"KAFKA_BROKERS":      "a:9092, b:9092,",
		"RECONCILE_INTERVAL": "1m",
		"DOMAIN_MATCH_MODE":  "publicsuffix",
		"DB_AUTO_MIGRATE":    "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/intro", cfg.Database.URL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Minute, cfg.Reconcile.Interval)
	assert.Equal(t, DomainMatchPublicSuffix, cfg.DomainMatch.Mode)
	assert.False(t, cfg.Database.AutoMigrate)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvCollectsParseErrors(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"RECONCILE_INTERVAL":   "soon",
		"RECONCILE_BATCH_SIZE": "many",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECONCILE_INTERVAL")
	assert.Contains(t, err.Error(), "RECONCILE_BATCH_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown domain mode", func(c *Config) { c.DomainMatch.Mode = "exact" }, "DOMAIN_MATCH_MODE"},
		{"oversized batch", func(c *Config) { c.Reconcile.BatchSize = 5000 }, "RECONCILE_BATCH_SIZE"},
		{"production with default key", func(c *Config) {
			c.Server.Environment = "production"
			c.Auth.AdminToken = "x"
		}, "overridden in production"},
		{"kafka without database", func(c *Config) { c.Kafka.Brokers = []string{"a:9092"} }, "requires DATABASE_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMergeYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7070"
reconcile:
  interval: 30s
  batch_size: 250
`), 0o600))

	cfg := Default()
	require.NoError(t, cfg.mergeYAML(path))
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Reconcile.Interval)
	assert.Equal(t, 250, cfg.Reconcile.BatchSize)
	assert.Equal(t, DomainMatchLastTwoLabels, cfg.DomainMatch.Mode)
}
