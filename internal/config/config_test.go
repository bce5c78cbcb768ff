package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_DefaultsFillMissingKeys(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
business:
  hold_duration: 120h
withholding:
  rates:
    ID: "0.20"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 120*time.Hour, cfg.Business.HoldDuration)
	assert.Equal(t, 60*time.Second, cfg.Business.SweepInterval)
	assert.Equal(t, int64(1000), cfg.Business.MinDeposit)
	assert.Equal(t, int64(100000000), cfg.Business.MaxDeposit)
	assert.Equal(t, int64(5000), cfg.Business.MinWithdraw)
	assert.False(t, cfg.Business.ReleaseSlotOnReject)
	assert.Equal(t, 100*time.Millisecond, cfg.Lock.RetryInterval)
	assert.Equal(t, "0.10", cfg.Pricing.PlatformFeeRate)

	// viper lower-cases map keys
	assert.Equal(t, "0.20", cfg.Withholding.Rates["id"])
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "mysql:\n  password: from-file\n")
	t.Setenv("CAMPAIGNLEDGER_MYSQL_PASSWORD", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.MySQL.Password)
}

func TestLoadConfig_RejectsInvalidDepositRange(t *testing.T) {
	path := writeConfig(t, "business:\n  min_deposit: 5000\n  max_deposit: 100\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deposit range")
}

func TestValidate_RequiresPositiveLimits(t *testing.T) {
	cases := map[string]func(*Config){
		"business.max_retry_count": func(c *Config) { c.Business.MaxRetryCount = 0 },
		"business.cas_max_retries": func(c *Config) { c.Business.CASMaxRetries = -1 },
		"business.deposit_timeout": func(c *Config) { c.Business.DepositTimeout = 0 },
	}
	for key, mutate := range cases {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadConfig_RejectsZeroMaxRetryCount(t *testing.T) {
	path := writeConfig(t, "business:\n  max_retry_count: 0\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_retry_count")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 72*time.Hour, cfg.Business.HoldDuration)
	assert.Equal(t, "USD", cfg.Business.Currency)
}

func TestMySQLConfig_DSN(t *testing.T) {
	c := MySQLConfig{User: "u", Password: "p", Host: "db", Port: 3306, Database: "ledger"}
	assert.Equal(t, "u:p@tcp(db:3306)/ledger?charset=utf8mb4&parseTime=True&loc=UTC", c.DSN())
}
