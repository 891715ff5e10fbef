// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config - главная структура конфигурации
type Config struct {
	App           AppConfig           `koanf:"app"`
	HTTP          HTTPConfig          `koanf:"http"`
	Log           LogConfig           `koanf:"log"`
	Database      DatabaseConfig      `koanf:"database"`
	Cache         CacheConfig         `koanf:"cache"`
	Metrics       MetricsConfig       `koanf:"metrics"`
	Tracing       TracingConfig       `koanf:"tracing"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	Workflow      WorkflowConfig      `koanf:"workflow"`
	Cron          CronConfig          `koanf:"cron"`
	Providers     ProvidersConfig     `koanf:"providers"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Sweep         SweepConfig         `koanf:"sweep"`
}

// AppConfig - общие настройки приложения
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// IsProduction проверяет production окружение
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Environment, "production")
}

// HTTPConfig - настройки HTTP сервера
type HTTPConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level      string `koanf:"level"`  // debug, info, warn, error
	Format     string `koanf:"format"` // json, text
	Output     string `koanf:"output"` // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"` // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"` // дней
	Compress   bool   `koanf:"compress"`
}

// DatabaseConfig - настройки базы данных
type DatabaseConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Database        string        `koanf:"database"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	SSLMode         string        `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// DSN возвращает строку подключения
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// CacheConfig - настройки кэширования
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Driver     string        `koanf:"driver"` // redis, memory
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	TrafficTTL time.Duration `koanf:"traffic_ttl"` // TTL для кэша трафика по маршруту
	MaxEntries int           `koanf:"max_entries"`
}

// Address возвращает адрес Redis
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsConfig - настройки Prometheus метрик
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
}

// TracingConfig - настройки OpenTelemetry
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// RateLimitConfig - настройки rate limiting
type RateLimitConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Requests        int           `koanf:"requests"`
	Window          time.Duration `koanf:"window"`
	Backend         string        `koanf:"backend"` // memory, redis
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	RedisAddr       string        `koanf:"redis_addr"`
}

// WorkflowConfig - настройки workflow движка
type WorkflowConfig struct {
	TaskQueue               string        `koanf:"task_queue"`
	CutoffHours             float64       `koanf:"cutoff_hours"`
	DefaultThresholdMinutes int           `koanf:"default_threshold_minutes"`
	ActivityTimeout         time.Duration `koanf:"activity_timeout"`
	ActivityMaxAttempts     int           `koanf:"activity_max_attempts"`
	RetryBase               time.Duration `koanf:"retry_base"`
	RetryCap                time.Duration `koanf:"retry_cap"`
}

// CronConfig - настройки cron endpoint
type CronConfig struct {
	Secret string `koanf:"secret"`
}

// SweepConfig - настройки fleet sweep
type SweepConfig struct {
	MaxRoutes   int `koanf:"max_routes"`
	Concurrency int `koanf:"concurrency"`
}

// ProvidersConfig - настройки внешних провайдеров
type ProvidersConfig struct {
	ForceMock  bool             `koanf:"force_mock"` // только mock адаптеры
	GoogleMaps GoogleMapsConfig `koanf:"google_maps"`
	Anthropic  AnthropicConfig  `koanf:"anthropic"`
	OpenAI     OpenAIConfig     `koanf:"openai"`
	SendGrid   SendGridConfig   `koanf:"sendgrid"`
	SMTP       SMTPConfig       `koanf:"smtp"`
	Twilio     TwilioConfig     `koanf:"twilio"`
}

// GoogleMapsConfig - провайдер трафика и геокодинга
type GoogleMapsConfig struct {
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// AnthropicConfig - основной AI провайдер
type AnthropicConfig struct {
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
}

// OpenAIConfig - резервный AI провайдер
type OpenAIConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// SendGridConfig - email провайдер
type SendGridConfig struct {
	APIKey    string `koanf:"api_key"`
	FromEmail string `koanf:"from_email"`
	FromName  string `koanf:"from_name"`
}

// SMTPConfig - резервный email провайдер
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	UseTLS   bool   `koanf:"use_tls"`
}

// TwilioConfig - SMS провайдер
type TwilioConfig struct {
	AccountSID string `koanf:"account_sid"`
	AuthToken  string `koanf:"auth_token"`
	FromNumber string `koanf:"from_number"`
}

// NotificationsConfig - настройки нотификаций
type NotificationsConfig struct {
	Blacklist []string `koanf:"blacklist"`
	SMSMaxLen int      `koanf:"sms_max_len"`
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}

	if c.Workflow.CutoffHours < 0 {
		return fmt.Errorf("workflow cutoff_hours must be non-negative, got %v", c.Workflow.CutoffHours)
	}
	if c.Workflow.DefaultThresholdMinutes <= 0 {
		return fmt.Errorf("workflow default_threshold_minutes must be positive, got %d", c.Workflow.DefaultThresholdMinutes)
	}
	if c.Workflow.ActivityMaxAttempts <= 0 {
		return fmt.Errorf("workflow activity_max_attempts must be positive, got %d", c.Workflow.ActivityMaxAttempts)
	}

	if c.Sweep.MaxRoutes <= 0 {
		return fmt.Errorf("sweep max_routes must be positive, got %d", c.Sweep.MaxRoutes)
	}
	if c.Sweep.Concurrency <= 0 {
		return fmt.Errorf("sweep concurrency must be positive, got %d", c.Sweep.Concurrency)
	}

	// В production секрет cron обязателен
	if c.App.IsProduction() && c.Cron.Secret == "" {
		return fmt.Errorf("cron.secret is required in production")
	}

	if c.Cache.Enabled && c.Cache.Driver == "redis" && c.Cache.Host == "" {
		return fmt.Errorf("cache.host is required for redis driver")
	}

	return nil
}
