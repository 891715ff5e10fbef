// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "FREIGHT_"
	configEnvVar = "CONFIG_PATH"
)

// Loader загружает конфигурацию из разных источников
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader создаёт новый загрузчик конфигурации
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/freightwatch/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption - опция для конфигурации загрузчика
type LoaderOption func(*Loader)

// WithConfigPaths устанавливает пути поиска конфигурации
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix устанавливает префикс переменных окружения
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load загружает конфигурацию с приоритетом:
// 1. Defaults (самый низкий)
// 2. Config file (yaml)
// 3. Environment variables (самый высокий)
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Файл не обязателен
	if err := l.loadConfigFile(); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	if err := l.loadBareEnv(); err != nil {
		return nil, fmt.Errorf("failed to load bare env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults загружает значения по умолчанию
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "freightwatch",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// HTTP
		"http.port":             8080,
		"http.read_timeout":     15 * time.Second,
		"http.write_timeout":    30 * time.Second,
		"http.idle_timeout":     60 * time.Second,
		"http.shutdown_timeout": 15 * time.Second,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     28,
		"log.compress":    true,

		// Database
		"database.host":               "localhost",
		"database.port":               5432,
		"database.database":           "freightwatch",
		"database.username":           "freightwatch",
		"database.password":           "",
		"database.ssl_mode":           "disable",
		"database.max_open_conns":     20,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  30 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.auto_migrate":       true,

		// Cache
		"cache.enabled":     true,
		"cache.driver":      "memory",
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.db":          0,
		"cache.default_ttl": 5 * time.Minute,
		"cache.traffic_ttl": 2 * time.Minute,
		"cache.max_entries": 10000,

		// Metrics
		"metrics.enabled":   true,
		"metrics.path":      "/metrics",
		"metrics.namespace": "freightwatch",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "freightwatch",
		"tracing.sample_rate":  1.0,

		// Rate limit
		"rate_limit.enabled":          true,
		"rate_limit.requests":         60,
		"rate_limit.window":           time.Minute,
		"rate_limit.backend":          "memory",
		"rate_limit.cleanup_interval": 5 * time.Minute,

		// Workflow
		"workflow.task_queue":                "freight-delay-queue",
		"workflow.cutoff_hours":              1.0,
		"workflow.default_threshold_minutes": 30,
		"workflow.activity_timeout":          30 * time.Second,
		"workflow.activity_max_attempts":     3,
		"workflow.retry_base":                1 * time.Second,
		"workflow.retry_cap":                 30 * time.Second,

		// Cron
		"cron.secret": "",

		// Sweep
		"sweep.max_routes":  1000,
		"sweep.concurrency": 8,

		// Providers
		"providers.force_mock":           false,
		"providers.google_maps.timeout":  10 * time.Second,
		"providers.anthropic.model":      "claude-sonnet-4-20250514",
		"providers.anthropic.max_tokens": 512,
		"providers.openai.model":         "gpt-4o-mini",
		"providers.smtp.port":            587,
		"providers.smtp.use_tls":         true,

		// Notifications
		"notifications.sms_max_len": 160,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile загружает из файла конфигурации
func (l *Loader) loadConfigFile() error {
	// Явный путь через переменную окружения имеет приоритет
	if path := os.Getenv(configEnvVar); path != "" {
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		return nil
	}

	for _, path := range l.configPaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		return nil
	}

	return fmt.Errorf("no config file found in %v", l.configPaths)
}

// loadEnv загружает из переменных окружения.
// FREIGHT_DATABASE_HOST -> database.host
// FREIGHT_PROVIDERS_GOOGLE_MAPS_API_KEY -> providers.google_maps.api_key
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))

		// Составные ключи с подчёркиваниями внутри секций
		replacements := []struct{ from, to string }{
			{"google_maps_api_key", "google_maps.api_key"},
			{"google_maps_timeout", "google_maps.timeout"},
			{"anthropic_api_key", "anthropic.api_key"},
			{"anthropic_model", "anthropic.model"},
			{"anthropic_max_tokens", "anthropic.max_tokens"},
			{"openai_api_key", "openai.api_key"},
			{"openai_model", "openai.model"},
			{"sendgrid_api_key", "sendgrid.api_key"},
			{"sendgrid_from_email", "sendgrid.from_email"},
			{"sendgrid_from_name", "sendgrid.from_name"},
			{"smtp_host", "smtp.host"},
			{"smtp_port", "smtp.port"},
			{"smtp_username", "smtp.username"},
			{"smtp_password", "smtp.password"},
			{"smtp_from", "smtp.from"},
			{"smtp_use_tls", "smtp.use_tls"},
			{"twilio_account_sid", "twilio.account_sid"},
			{"twilio_auth_token", "twilio.auth_token"},
			{"twilio_from_number", "twilio.from_number"},
			{"force_mock", "force_mock"},
		}

		parts := strings.SplitN(key, "_", 2)
		if len(parts) != 2 {
			return key
		}
		section, rest := parts[0], parts[1]

		if section == "providers" {
			for _, r := range replacements {
				if rest == r.from {
					return "providers." + r.to
				}
			}
		}
		if section == "rate" {
			// rate_limit_* -> rate_limit.*
			if after, ok := strings.CutPrefix(rest, "limit_"); ok {
				return "rate_limit." + after
			}
		}

		return section + "." + strings.ReplaceAll(rest, "__", ".")
	}), nil)
}

// loadBareEnv поддерживает короткие имена переменных без префикса,
// под которые настроены деплой и cron.
func (l *Loader) loadBareEnv() error {
	aliases := map[string]string{
		"CRON_SECRET":                        "cron.secret",
		"WORKFLOW_CUTOFF_HOURS":              "workflow.cutoff_hours",
		"WORKFLOW_DEFAULT_THRESHOLD_MINUTES": "workflow.default_threshold_minutes",
		"TEMPORAL_TASK_QUEUE":                "workflow.task_queue",
		"FORCE_NOTIFICATION_MOCK_ADAPTER":    "providers.force_mock",
		"GOOGLE_MAPS_API_KEY":                "providers.google_maps.api_key",
		"ANTHROPIC_API_KEY":                  "providers.anthropic.api_key",
		"OPENAI_API_KEY":                     "providers.openai.api_key",
		"SENDGRID_API_KEY":                   "providers.sendgrid.api_key",
		"TWILIO_ACCOUNT_SID":                 "providers.twilio.account_sid",
		"TWILIO_AUTH_TOKEN":                  "providers.twilio.auth_token",
		"TWILIO_FROM_NUMBER":                 "providers.twilio.from_number",
	}

	values := map[string]any{}
	for name, key := range aliases {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			values[key] = v
		}
	}

	if len(values) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(values, "."), nil)
}

// MustLoad загружает конфигурацию или паникует
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
