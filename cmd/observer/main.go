// Package main - точка входа для процесса XP Observer.
//
// Observer слушает события хост-платформы из Redis Pub/Sub, фильтрует их и
// передаёт подходящие в поток block_xp:captured, откуда их забирает XP-движок.
// При удалении курса он удаляет данные плагина этого курса.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alem-hub/xp-observer/config"
	"github.com/alem-hub/xp-observer/internal/application/observer"
	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
	"github.com/alem-hub/xp-observer/internal/infrastructure/messaging"
	"github.com/alem-hub/xp-observer/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/xp-observer/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/xp-observer/internal/infrastructure/service"
	httpapi "github.com/alem-hub/xp-observer/internal/interface/http"
	"github.com/alem-hub/xp-observer/pkg/circuitbreaker"
	"github.com/alem-hub/xp-observer/pkg/logger"
	"github.com/alem-hub/xp-observer/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting XP observer",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"plugin_context", cfg.Observer.PluginContext,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	var dbConn *postgres.Connection
	err = retry.StartupRetrier(cfg.App.ConnectAttempts, onRetry(log, "postgres")).
		Do(ctx, func(ctx context.Context) error {
			conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, poolConfig(cfg.Database))
			if errors.Is(err, postgres.ErrInvalidDatabaseURL) {
				return retry.Permanent(err)
			}
			if err != nil {
				return err
			}
			dbConn = conn
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	applied, err := postgres.NewMigrator(dbConn).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date", "applied", applied)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОДКЛЮЧЕНИЕ К REDIS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	var redisClient *goredis.Client
	err = retry.StartupRetrier(cfg.App.ConnectAttempts, onRetry(log, "redis")).
		Do(ctx, func(ctx context.Context) error {
			client, err := redis.NewClient(ctx, redisConfig(cfg.Redis))
			if err != nil {
				return err
			}
			redisClient = client
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		log.Info("closing Redis connection...")
		_ = redisClient.Close()
	}()
	log.Info("Redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 6. СБОРКА OBSERVER
	// ─────────────────────────────────────────────────────────────────────────
	var capabilities platform.CapabilityChecker = postgres.NewCapabilityRepository(dbConn)
	if cfg.Observer.CapabilityCacheTTL > 0 {
		capabilities = redis.NewCachedCapabilityChecker(
			capabilities, redis.NewCache(redisClient), cfg.Observer.CapabilityCacheTTL, log,
		)
	}

	managers := xp.NewRegistry(xp.Guard(
		redis.StreamManagerFactory(redisClient, cfg.Observer.CaptureStream, cfg.Observer.CaptureStreamMaxLen),
		captureBreaker(cfg.Observer, log),
	))

	obs, err := observer.New(observer.Dependencies{
		Records:      postgres.NewCourseDataRepository(dbConn),
		Files:        postgres.NewFileRepository(dbConn),
		Users:        service.NewSiteUsers(cfg.Observer.GuestID, cfg.Observer.Admins),
		Capabilities: capabilities,
		Managers:     managers,
	}, observer.NewAllowedContexts(platform.ContextLevel(cfg.Observer.PluginContext)).
		WithSiteCourse(cfg.Observer.SiteCourseID), log)
	if err != nil {
		return err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("subscribing to host events...", "channel", cfg.Observer.EventsChannel)
	pubsub := redis.NewPubSubClient(redisClient)
	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         pubsub,
		ChannelName:    cfg.Observer.EventsChannel,
		LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	if err := obs.Register(bus); err != nil {
		_ = bus.Close()
		return fmt.Errorf("failed to register observer: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH & METRICS
	// ─────────────────────────────────────────────────────────────────────────
	var opsServer *httpapi.Server
	if cfg.Observability.HealthAddr != "" {
		health := httpapi.NewCompositeHealthChecker(cfg.App.Version)
		health.AddCheck("postgres", httpapi.PingCheck(dbConn))
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		httpCfg := httpapi.DefaultConfig()
		httpCfg.Addr = cfg.Observability.HealthAddr
		opsServer = httpapi.NewServer(httpCfg, health, bus.Metrics, log)
		opsServer.Start()
	}

	log.Info("XP observer is running",
		"allowed_contexts", fmt.Sprint(obs.AllowedContexts().Levels()),
		"capture_stream", cfg.Observer.CaptureStream,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("failed to stop http server", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pubsub.Close()
		_ = bus.Close()
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out, pending events are dropped")
	}

	if m := bus.Metrics(); m != nil {
		s := m.Snapshot()
		log.Info("event bus totals",
			"published", s.TotalPublished,
			"handler_executions", s.TotalHandlerExecs,
			"handler_failures", s.HandlerFailures,
			"avg_handler_duration", s.AverageHandlerDuration.String(),
		)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	format := cfg.Observability.LogFormat
	if cfg.IsDevelopment() {
		format = "text"
	}

	log := logger.New(logger.Options{
		Level:  cfg.Observability.LogLevel,
		Format: format,
	})
	slog.SetDefault(log)

	return log
}

// captureBreaker pauses capturing while the capture stream keeps failing.
func captureBreaker(cfg config.ObserverConfig, log *slog.Logger) *circuitbreaker.CircuitBreaker {
	if cfg.CaptureBreakerThreshold == 0 {
		return nil
	}
	return circuitbreaker.New("xp-capture",
		circuitbreaker.WithFailureThreshold(cfg.CaptureBreakerThreshold),
		circuitbreaker.WithTimeout(cfg.CaptureBreakerTimeout),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	)
}

func onRetry(log *slog.Logger, target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn("connection attempt failed",
			"target", target,
			"attempt", attempt,
			"retry_in", delay.String(),
			"error", err,
		)
	}
}

func poolConfig(db config.DatabaseConfig) postgres.PoolConfig {
	pc := postgres.DefaultPoolConfig()
	pc.MaxConns = int32(db.MaxConns)
	pc.MinConns = int32(db.MinConns)
	pc.MaxConnLifetime = db.ConnMaxLifetime
	pc.MaxConnIdleTime = db.ConnMaxIdleTime
	return pc
}

func redisConfig(r config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = r.Host
	rc.Port = r.Port
	rc.Password = r.Password
	rc.DB = r.DB
	rc.PoolSize = r.PoolSize
	rc.MinIdleConns = r.MinIdleConns
	rc.DialTimeout = r.DialTimeout
	rc.ReadTimeout = r.ReadTimeout
	rc.WriteTimeout = r.WriteTimeout
	return rc
}
