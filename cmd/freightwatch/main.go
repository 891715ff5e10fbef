// cmd/freightwatch/main.go
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"freightwatch/internal/adapters/ai"
	"freightwatch/internal/adapters/email"
	"freightwatch/internal/adapters/geocode"
	"freightwatch/internal/adapters/sms"
	"freightwatch/internal/adapters/traffic"
	"freightwatch/internal/migrations"
	"freightwatch/internal/notify"
	"freightwatch/internal/pipeline"
	"freightwatch/internal/report"
	"freightwatch/internal/repository"
	"freightwatch/internal/server"
	"freightwatch/internal/sweep"
	"freightwatch/internal/threshold"
	"freightwatch/internal/workflows"
	"freightwatch/pkg/cache"
	"freightwatch/pkg/config"
	"freightwatch/pkg/database"
	"freightwatch/pkg/logger"
	"freightwatch/pkg/metrics"
	"freightwatch/pkg/ratelimit"
	"freightwatch/pkg/telemetry"
	"freightwatch/pkg/workflow"
)

func main() {
	// .env удобен в dev окружении, в проде конфигурация приходит из env
	_ = godotenv.Load()

	cfg, err := config.NewLoader().Load()
	if err != nil {
		logger.Init("info")
		logger.Fatal("Failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	logger.Info("Starting freightwatch",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("Service failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Телеметрия
	telemetryProvider, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryProvider.Shutdown(shutdownCtx)
	}()

	// Метрики
	m := metrics.Init(cfg.Metrics.Namespace)
	m.ServiceInfo.WithLabelValues(cfg.App.Version, cfg.App.Environment).Set(1)

	// База данных
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.FS, migrations.Dir); err != nil {
		return err
	}

	repos := repository.NewPostgres(db)

	// Кэш замеров трафика
	var trafficCache cache.Cache
	if cfg.Cache.Enabled {
		trafficCache, err = cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Warn("Failed to create cache, continuing without it", "error", err)
			trafficCache = nil
		} else {
			defer trafficCache.Close()
		}
	}

	// Адаптеры провайдеров
	aiChain, notifier := buildProviders(cfg)
	trafficChain := traffic.NewChain(trafficProviders(cfg), trafficCache, cfg.Cache.TrafficTTL)

	// Геокодер собирается для потребителей создания доставок;
	// цепочка проверок работает по сохранённым координатам
	_ = geocode.NewChain(buildGeocoders(cfg))

	resolver := threshold.NewResolver(repos.Thresholds, cfg.Workflow.DefaultThresholdMinutes)

	p := pipeline.New(repos, trafficChain, aiChain, notifier, resolver)

	// Движок workflow
	engine := workflow.NewLocalEngine(cfg.Workflow.TaskQueue,
		workflow.WithActivityPolicy(workflow.ActivityPolicy{
			Timeout:     cfg.Workflow.ActivityTimeout,
			MaxAttempts: cfg.Workflow.ActivityMaxAttempts,
			RetryBase:   cfg.Workflow.RetryBase,
			RetryCap:    cfg.Workflow.RetryCap,
		}),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = engine.Shutdown(shutdownCtx)
	}()

	workflowService := workflows.NewService(engine, repos, p, cfg.Workflow)

	// Восстановление после рестарта: осиротевшие записи закрываются,
	// recurring проверки перезапускаются
	if err := workflowService.RecoverInterrupted(ctx); err != nil {
		logger.Warn("Failed to recover interrupted workflows", "error", err)
	}

	// Fleet sweep
	sweeper := sweep.New(repos, trafficChain, cfg.Sweep.MaxRoutes, cfg.Sweep.Concurrency)

	// Rate limiter для endpoint'а запуска workflow
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(&ratelimit.Config{
			Requests:        cfg.RateLimit.Requests,
			Window:          cfg.RateLimit.Window,
			Backend:         cfg.RateLimit.Backend,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			RedisAddr:       cfg.RateLimit.RedisAddr,
		})
		if err != nil {
			logger.Warn("Failed to create rate limiter, continuing without it", "error", err)
			limiter = nil
		} else {
			defer limiter.Close()
		}
	}

	// HTTP сервер
	handlers := server.NewHandlers(
		workflowService,
		sweeper,
		report.NewService(repos),
		db,
		limiter,
		cfg.Cron.Secret,
		cfg.App.Version,
	)

	httpServer := server.New(&cfg.HTTP, handlers.Router(cfg.Metrics.Path))

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// trafficProviders собирает провайдеров трафика в порядке приоритета
func trafficProviders(cfg *config.Config) []traffic.Provider {
	if cfg.Providers.ForceMock {
		return []traffic.Provider{traffic.NewMock()}
	}
	return []traffic.Provider{
		traffic.NewGoogleMaps(cfg.Providers.GoogleMaps),
		traffic.NewMock(),
	}
}

// buildGeocoders собирает геокодеров
func buildGeocoders(cfg *config.Config) []geocode.Geocoder {
	if cfg.Providers.ForceMock {
		return []geocode.Geocoder{geocode.NewMock()}
	}
	return []geocode.Geocoder{
		geocode.NewGoogleMaps(cfg.Providers.GoogleMaps),
		geocode.NewMock(),
	}
}

// buildProviders собирает цепочки адаптеров из конфигурации.
// Mock адаптеры всегда замыкают цепочки, поэтому система никогда не
// остаётся без провайдера.
func buildProviders(cfg *config.Config) (*ai.Chain, *notify.Service) {
	var aiGenerators []ai.Generator
	var emailProviders []email.Notifier
	var smsProviders []sms.Notifier

	if cfg.Providers.ForceMock {
		aiGenerators = []ai.Generator{ai.NewMock()}
		emailProviders = []email.Notifier{email.NewMock()}
		smsProviders = []sms.Notifier{sms.NewMock()}
	} else {
		aiGenerators = []ai.Generator{
			ai.NewAnthropic(cfg.Providers.Anthropic),
			ai.NewOpenAI(cfg.Providers.OpenAI),
			ai.NewMock(),
		}
		emailProviders = []email.Notifier{
			email.NewSendGrid(cfg.Providers.SendGrid),
			email.NewSMTP(cfg.Providers.SMTP),
			email.NewMock(),
		}
		smsProviders = []sms.Notifier{
			sms.NewTwilio(cfg.Providers.Twilio),
			sms.NewMock(),
		}
	}

	aiChain := ai.NewChain(aiGenerators)
	notifier := notify.NewService(emailProviders, smsProviders, cfg.Notifications.Blacklist)

	return aiChain, notifier
}
