package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader(WithConfigPaths("nonexistent.yaml")).Load()
	require.NoError(t, err)

	assert.Equal(t, "freightwatch", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "freight-delay-queue", cfg.Workflow.TaskQueue)
	assert.Equal(t, 1.0, cfg.Workflow.CutoffHours)
	assert.Equal(t, 30, cfg.Workflow.DefaultThresholdMinutes)
	assert.Equal(t, 30*time.Second, cfg.Workflow.ActivityTimeout)
	assert.Equal(t, 3, cfg.Workflow.ActivityMaxAttempts)
	assert.Equal(t, 1000, cfg.Sweep.MaxRoutes)
	assert.Equal(t, 160, cfg.Notifications.SMSMaxLen)
	assert.False(t, cfg.Providers.ForceMock)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  environment: staging
http:
  port: 9090
workflow:
  cutoff_hours: 2.5
cron:
  secret: test-secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := NewLoader(WithConfigPaths(path)).Load()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 2.5, cfg.Workflow.CutoffHours)
	assert.Equal(t, "test-secret", cfg.Cron.Secret)
	// Значения по умолчанию сохраняются
	assert.Equal(t, "freight-delay-queue", cfg.Workflow.TaskQueue)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FREIGHT_HTTP_PORT", "7070")
	t.Setenv("FREIGHT_DATABASE_HOST", "db.internal")
	t.Setenv("FREIGHT_PROVIDERS_GOOGLE_MAPS_API_KEY", "maps-key")
	t.Setenv("FREIGHT_RATE_LIMIT_REQUESTS", "120")

	cfg, err := NewLoader(WithConfigPaths("nonexistent.yaml")).Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "maps-key", cfg.Providers.GoogleMaps.APIKey)
	assert.Equal(t, 120, cfg.RateLimit.Requests)
}

func TestLoad_BareEnvAliases(t *testing.T) {
	t.Setenv("CRON_SECRET", "bare-secret")
	t.Setenv("TEMPORAL_TASK_QUEUE", "custom-queue")
	t.Setenv("WORKFLOW_DEFAULT_THRESHOLD_MINUTES", "45")
	t.Setenv("FORCE_NOTIFICATION_MOCK_ADAPTER", "true")

	cfg, err := NewLoader(WithConfigPaths("nonexistent.yaml")).Load()
	require.NoError(t, err)

	assert.Equal(t, "bare-secret", cfg.Cron.Secret)
	assert.Equal(t, "custom-queue", cfg.Workflow.TaskQueue)
	assert.Equal(t, 45, cfg.Workflow.DefaultThresholdMinutes)
	assert.True(t, cfg.Providers.ForceMock)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := NewLoader(WithConfigPaths("nonexistent.yaml")).Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: "invalid http port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "negative cutoff",
			mutate:  func(c *Config) { c.Workflow.CutoffHours = -1 },
			wantErr: "cutoff_hours",
		},
		{
			name:    "zero threshold",
			mutate:  func(c *Config) { c.Workflow.DefaultThresholdMinutes = 0 },
			wantErr: "default_threshold_minutes",
		},
		{
			name:    "production without cron secret",
			mutate:  func(c *Config) { c.App.Environment = "production"; c.Cron.Secret = "" },
			wantErr: "cron.secret",
		},
		{
			name:    "redis cache without host",
			mutate:  func(c *Config) { c.Cache.Driver = "redis"; c.Cache.Host = "" },
			wantErr: "cache.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432,
		Database: "freightwatch", Username: "app", Password: "pw",
		SSLMode: "disable",
	}
	assert.Equal(t, "postgres://app:pw@localhost:5432/freightwatch?sslmode=disable", d.DSN())
}

func TestAppConfig_IsProduction(t *testing.T) {
	assert.True(t, AppConfig{Environment: "Production"}.IsProduction())
	assert.False(t, AppConfig{Environment: "development"}.IsProduction())
}

func TestCacheConfig_Address(t *testing.T) {
	c := CacheConfig{Host: "redis.internal", Port: 6380}
	assert.Equal(t, "redis.internal:6380", c.Address())
}
