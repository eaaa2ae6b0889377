// Package main - точка входа фонового процесса (Worker) Urok Hub.
//
// Worker отвечает за обслуживание жизненного цикла сущностей:
// - Применение миграций схемы
// - Доставку доменных событий подписчикам (инвалидация кешей)
// - Периодическую сверку указателей текущего статуса с историями
//
// История статусов авторитетна; Worker следит за тем, чтобы
// денормализованные указатели и кеши не расходились с ней надолго.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/urok-hub/urok-marketplace/config"
	"github.com/urok-hub/urok-marketplace/internal/application/eventhandler"
	"github.com/urok-hub/urok-marketplace/internal/application/query"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/messaging"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/persistence/postgres"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/persistence/redis"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/scheduler"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/scheduler/jobs"
)

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
	// 1. КОНФИГУРАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────

	// .env опционален: в production переменные приходят из окружения.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Urok Hub worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.MigrateOnStart {
		log.Info("checking database migrations")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to redis")
		redisCache, err = redis.NewCache(redisConfigFrom(cfg.Redis))
		if err != nil {
			// Кеш и Pub/Sub не являются источником истины; без Redis
			// worker продолжает работать в деградированном режиме.
			log.Warn("failed to connect to redis, caching disabled", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS И ДИСПЕТЧЕР
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus")

	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	busConfig.AsyncMode = cfg.Features.IsEnabled(config.FeatureEventsAsyncDispatch, nil)

	var eventBus shared.EventBus
	var closeBus func() error

	if redisCache != nil && cfg.Features.IsEnabled(config.FeatureEventsRedisBus, nil) {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewCacheRedisClient(redisCache),
			ChannelName:    redis.PubSubChannel("events"),
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		eventBus = redisBus
		closeBus = redisBus.Close
	} else {
		localBus := messaging.NewInMemoryEventBus(busConfig)
		eventBus = localBus
		closeBus = localBus.Close
	}
	defer func() {
		log.Info("closing event bus")
		_ = closeBus()
	}()

	dispatcherConfig := messaging.DefaultDispatcherConfig(eventBus)
	dispatcherConfig.Logger = log
	dispatcher := messaging.NewDispatcher(dispatcherConfig)
	dispatcher.Use(messaging.RecoveryMiddleware(log))
	dispatcher.Use(messaging.LoggingMiddleware(log))
	defer func() { _ = dispatcher.Stop() }()

	if redisCache != nil {
		if err := registerCacheInvalidation(dispatcher, redisCache, log); err != nil {
			return fmt.Errorf("failed to register event handlers: %w", err)
		}
	}

	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК И ДЖОБЫ
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && cfg.Features.IsEnabled(config.FeatureLifecycleSelfHeal, nil) {
		log.Info("initializing scheduler")

		schedConfig := scheduler.DefaultSchedulerConfig()
		schedConfig.Logger = log
		schedConfig.Timezone = cfg.App.Location
		sched = scheduler.NewScheduler(schedConfig)

		reconcileConfig := jobs.DefaultReconcilePointersConfig()
		reconcileConfig.BatchLimit = cfg.Scheduler.ReconcileBatchLimit
		reconcileConfig.DryRun = cfg.Scheduler.ReconcileDryRun
		reconcileConfig.Timeout = cfg.Scheduler.JobTimeout

		reconcileJob := jobs.NewReconcilePointersJob(
			postgres.NewStatusStore(dbConn),
			eventBus,
			log,
			reconcileConfig,
		)
		if redisCache != nil {
			// Несколько инстансов worker'а не должны чинить одни и те же
			// указатели одновременно.
			reconcileJob.WithRunLock(redisCache)
		}

		// Cron-выражение имеет приоритет над интервалом.
		var reconcileSchedule scheduler.Schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.ReconcileInterval)
		if cfg.Scheduler.ReconcileCron != "" {
			cronSchedule, err := scheduler.ParseCronExpression(cfg.Scheduler.ReconcileCron)
			if err != nil {
				return fmt.Errorf("invalid SCHEDULER_RECONCILE_CRON: %w", err)
			}
			reconcileSchedule = cronSchedule
		}

		if err := sched.Register(reconcileJob, reconcileSchedule); err != nil {
			return fmt.Errorf("failed to register reconcile job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler")
			_ = sched.Stop()
		}()
	} else {
		log.Info("scheduler disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("Urok Hub worker is running", "timezone", cfg.App.Timezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// registerCacheInvalidation подписывает обработчики инвалидации кеша на
// события смены статусов и починки указателей.
func registerCacheInvalidation(dispatcher *messaging.Dispatcher, cache query.Cache, log *slog.Logger) error {
	statusHandler := eventhandler.NewOnStatusChangedHandler(cache, log)
	repairHandler := eventhandler.NewOnPointerRepairedHandler(cache, log)

	statusEvents := []shared.EventType{
		shared.EventLessonStatusChanged,
		shared.EventPlanStatusChanged,
		shared.EventMilestoneStatusChanged,
		shared.EventGoalStatusChanged,
	}
	for _, eventType := range statusEvents {
		if err := dispatcher.Register(eventType, "invalidate_cache", statusHandler.Handle); err != nil {
			return err
		}
	}

	return dispatcher.Register(shared.EventPointerRepaired, "invalidate_cache_after_repair", repairHandler.Handle)
}

// redisConfigFrom переводит конфигурацию приложения в настройки клиента.
func redisConfigFrom(rc config.RedisConfig) redis.Config {
	cfg := redis.DefaultConfig()
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	cfg.PoolSize = rc.PoolSize
	cfg.MinIdleConns = rc.MinIdleConns
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout

	// REDIS_URL имеет приоритет над отдельными полями.
	if rc.URL != "" {
		if u, err := url.Parse(rc.URL); err == nil && u.Host != "" {
			cfg.Host = u.Hostname()
			if p, err := strconv.Atoi(u.Port()); err == nil {
				cfg.Port = p
			}
			if pass, ok := u.User.Password(); ok {
				cfg.Password = pass
			}
			if db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/")); err == nil {
				cfg.DB = db
			}
		}
	}

	return cfg
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		// Текстовый формат удобнее читать в development.
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON для production: лучше для агрегаторов логов.
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
