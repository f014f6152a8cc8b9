package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PIZZA_DATABASE_URL", "postgres://localhost/pizzeria")

	cfg, err := loadConfig(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "postgres://localhost/pizzeria", cfg.DatabaseURL)
	assert.Equal(t, "19:30:00", cfg.Order.Cutoff)
	assert.True(t, cfg.Order.CutoffInclusive)
	assert.Equal(t, "UTC", cfg.Order.Timezone)
	assert.Equal(t, 60, cfg.RateLimit.Max)
	assert.Equal(t, 3*time.Second, cfg.Graceful.ReadinessDelay)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)

	w, err := cfg.Order.Window()
	require.NoError(t, err)
	assert.Equal(t, 19*time.Hour+30*time.Minute, w.Cutoff)
	assert.True(t, w.Inclusive)
	assert.Equal(t, time.UTC, w.Location)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")

	cfg, err := loadConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(name, []byte(`
storage: memory
order:
  address: Main street 1
  cutoff: "21:00"
  cutoff_inclusive: false
  timezone: Europe/Berlin
`), 0o600))

	cfg, err := loadConfig(nil, []string{name})
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "Main street 1", cfg.Order.Address)

	w, err := cfg.Order.Window()
	require.NoError(t, err)
	assert.Equal(t, 21*time.Hour, w.Cutoff)
	assert.False(t, w.Inclusive)
	assert.Equal(t, "Europe/Berlin", w.Location.String())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"DATABASE_URL": ""}},
		{name: "unknown storage", env: map[string]string{"PIZZA_STORAGE": "redis"}},
		{name: "bad cutoff", env: map[string]string{"PIZZA_STORAGE": "memory", "PIZZA_ORDER_CUTOFF": "late"}},
		{name: "bad timezone", env: map[string]string{"PIZZA_STORAGE": "memory", "PIZZA_ORDER_TIMEZONE": "Mars/Olympus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(nil, nil)
			require.Error(t, err)
		})
	}
}
