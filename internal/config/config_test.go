package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultsValidateInScanMode(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "USDT", cfg.Engine.QuoteAsset)
	assert.Equal(t, 5*time.Second, cfg.Engine.Interval.Duration)
}

func TestValidateTradeModeRequiresKeys(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key and secret_key are required")

	cfg.Binance.ApiKey = "k"
	cfg.Binance.SecretKey = "s"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Engine.Profitability = 0.99
	cfg.Engine.Amount = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "bogus"`)
	assert.Contains(t, err.Error(), "profitability must be > 1.0")
	assert.Contains(t, err.Error(), "amount must be > 0")
}

func TestValidateS3RequiresPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires postgres.enabled")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "trade"

[binance]
api_key = "file-key"
secret_key = "file-secret"

[engine]
quote_asset = "BTC"
profitability = 1.005
interval = "2s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "trade", cfg.Mode)
	assert.Equal(t, "BTC", cfg.Engine.QuoteAsset)
	assert.Equal(t, 1.005, cfg.Engine.Profitability)
	assert.Equal(t, 2*time.Second, cfg.Engine.Interval.Duration)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100.0, cfg.Engine.Amount)
	assert.Equal(t, "https://api.binance.com", cfg.Binance.BaseURL)
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := writeTOML(t, `
[engine]
quote_asset = "BTC"
`)

	t.Setenv("TRIARB_ENGINE_QUOTE_ASSET", "BUSD")
	t.Setenv("TRIARB_ENGINE_PROFITABILITY", "1.01")
	t.Setenv("TRIARB_MODE", "scan")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "BUSD", cfg.Engine.QuoteAsset)
	assert.Equal(t, 1.01, cfg.Engine.Profitability)
	assert.Equal(t, "scan", cfg.Mode)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Binance.ApiKey = "key"
	cfg.Binance.SecretKey = "secret"
	cfg.Postgres.Password = "pw"
	cfg.Notify.TelegramToken = "token"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Binance.ApiKey)
	assert.Equal(t, "***", red.Binance.SecretKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Originals stay intact.
	assert.Equal(t, "key", cfg.Binance.ApiKey)
	// Empty secrets stay empty rather than becoming placeholders.
	assert.Empty(t, red.Redis.Password)
}
