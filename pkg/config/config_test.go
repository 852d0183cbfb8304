package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, int64(1000), cfg.Tron.BandwidthPrice)
	assert.Equal(t, int64(1100000), cfg.Tron.ActivationFee)
	assert.Equal(t, 30*time.Second, cfg.Hardware.DiscoveryTimeout)
	assert.Equal(t, 1, cfg.Hardware.UsbOpenRetries)
	assert.True(t, cfg.Chains["eth"].Enabled)
	assert.Equal(t, "none", cfg.MQ.Type)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRON_ENERGY_PRICE", "210")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(210), cfg.Tron.EnergyPrice)
	assert.Equal(t, "production", cfg.App.Env)
}
