package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reminder-service/internal/config"
	"reminder-service/internal/domain/repository"
	"reminder-service/internal/domain/service"
	cronpkg "reminder-service/internal/infrastructure/cron"
	infradb "reminder-service/internal/infrastructure/db"
	"reminder-service/internal/infrastructure/kafka"
	"reminder-service/internal/infrastructure/memory"
	"reminder-service/internal/infrastructure/postgres"
	redisinfra "reminder-service/internal/infrastructure/redis"
	"reminder-service/internal/infrastructure/smtp"
	"reminder-service/internal/infrastructure/sqlite"
	"reminder-service/internal/infrastructure/telegram"
	"reminder-service/internal/lifecycle"
	"reminder-service/internal/logger"
	"reminder-service/internal/report"
	reminder "reminder-service/internal/service"
	"reminder-service/internal/transport/grpc"
	httptransport "reminder-service/internal/transport/http"

	goredis "github.com/redis/go-redis/v9"
)

const shutdownTimeout = 30 * time.Second

type taskStore interface {
	repository.TaskRepository
	repository.EventRepository
}

// App represents the application
type App struct {
	config      *config.Config
	log         *slog.Logger
	httpServer  *httptransport.Server
	grpcServer  *grpc.Server
	rateLimiter *httptransport.RateLimiter
	scheduler   *cronpkg.Scheduler
	timers      *cronpkg.Timers
	producer    *kafka.Producer
	redis       *goredis.Client
	closeStore  func()
}

// New creates a new application
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(&cfg.Logging, cfg.Service.Name)
	log.Info("configuration loaded", "environment", cfg.Service.Environment, "timezone", cfg.Timezone)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, log: log}

	ctx := context.Background()
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	// Task lock and callback dedupe: Redis when enabled, in-process otherwise
	var locker lifecycle.Locker = lifecycle.NewMemoryLocker()
	var dedup service.Deduplicator = memory.NewCallbackDeduplicator(cfg.Redis.DedupTTL, time.Now)
	if cfg.Redis.Enabled {
		client, err := redisinfra.NewRedisClient(&cfg.Redis)
		if err != nil {
			a.closeStore()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.redis = client
		locker = redisinfra.NewTaskLocker(client, cfg.Redis.LockTTL, log.With("component", "task_lock"))
		dedup = redisinfra.NewCallbackDeduplicator(client, cfg.Redis.DedupTTL)
		log.Info("connected to Redis", "addr", cfg.Redis.Addr)
	}

	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		a.producer = kafka.NewProducer(&cfg.Kafka)
		publisher = a.producer
		log.Info("Kafka producer initialized", "topic", cfg.Kafka.Topic)
	}

	var mailer service.ReportMailer
	if cfg.SMTP.Enabled {
		smtpClient, err := smtp.NewClient(&cfg.SMTP)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to initialize SMTP client: %w", err)
		}
		mailer = smtpClient
		log.Info("SMTP mailer initialized", "host", cfg.SMTP.Host)
	}

	notifier := telegram.NewClient(&cfg.Telegram)

	policy := lifecycle.Policy{
		TimeoutWindow:   cfg.Reminders.TimeoutWindow(),
		SnoozeDuration:  cfg.Reminders.SnoozeDuration(),
		NotifyOnTimeout: cfg.Reminders.NotifyOnTimeout,
	}
	engine := lifecycle.NewEngine(policy, store, locker)

	slots := cfg.SlotIndex()
	a.timers = cronpkg.NewTimers()
	dispatcher := reminder.NewDispatcher(notifier, publisher, a.timers, store, slots, policy, log.With("component", "dispatcher"))

	reminderService := reminder.NewReminderService(reminder.Deps{
		Engine:     engine,
		Tasks:      store,
		Events:     store,
		Reports:    report.NewGenerator(store, store, loc),
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Dedup:      dedup,
		Mailer:     mailer,
		Users:      cfg.Users(),
		Slots:      slots,
		Location:   loc,
		Log:        log.With("component", "reminder_service"),
	})
	log.Info("services initialized", "users", len(cfg.Telegram.Users), "slots", len(slots))

	if cfg.Scheduler.Enabled {
		rotation, err := cfg.RotationEntries()
		if err != nil {
			a.close()
			return nil, err
		}

		var weeklySpec string
		if cfg.WeeklyReport.Enabled {
			if weeklySpec, err = cfg.WeeklyReportSpec(); err != nil {
				a.close()
				return nil, err
			}
		}

		a.scheduler = cronpkg.NewScheduler(reminderService, cronpkg.Options{
			Location:         loc,
			Rotation:         rotation,
			SweepInterval:    cfg.Scheduler.SweepInterval,
			WeeklyReportSpec: weeklySpec,
		}, log.With("component", "scheduler"))
	} else {
		log.Info("scheduler is disabled in configuration")
	}

	handler := httptransport.NewHandler(reminderService, cfg.Telegram.WebhookSecret, cfg.HTTP.CallbackTimeout(), loc, log)
	trustedProxies, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		a.close()
		return nil, err
	}
	a.rateLimiter = httptransport.NewRateLimiter(cfg.HTTP.RateLimitPerMinute, trustedProxies)
	router := httptransport.NewRouter(handler, a.rateLimiter, cfg.HTTP.AllowedOrigins, log)
	a.httpServer = httptransport.NewServer(&cfg.HTTP, router.Setup(), log)

	if cfg.GRPC.Enabled {
		a.grpcServer = grpc.NewServer(cfg.GRPC.Port, log)
	}

	return a, nil
}

// openStore connects the configured task store and creates its schema
func (a *App) openStore(ctx context.Context) (taskStore, error) {
	cfg := a.config

	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := infradb.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		repo := postgres.NewTaskRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			infradb.Close(pool)
			return nil, err
		}
		a.closeStore = func() { infradb.Close(pool) }
		a.log.Info("connected to PostgreSQL", "host", cfg.Database.Host, "database", cfg.Database.Database)
		return repo, nil

	case "sqlite":
		db, err := infradb.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := sqlite.NewTaskRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.closeStore = func() {
			if err := db.Close(); err != nil {
				a.log.Error("failed to close SQLite", "error", err)
			}
		}
		a.log.Info("opened SQLite store", "path", cfg.Storage.SQLitePath)
		return repo, nil

	case "memory":
		a.closeStore = func() {}
		a.log.Warn("using in-memory store, tasks are lost on restart")
		return memory.NewTaskRepository(), nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Run starts the application and blocks until SIGINT or SIGTERM
func (a *App) Run() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go a.rateLimiter.Cleanup(cleanupCtx, 5*time.Minute, 5*time.Minute)

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("HTTP server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	if a.grpcServer != nil {
		go func() {
			if err := a.grpcServer.Start(); err != nil {
				a.log.Error("gRPC server failed", "error", err)
				quit <- syscall.SIGTERM
			}
		}()
	}

	a.log.Info("service started", "name", a.config.Service.Name, "http_port", a.config.HTTP.Port)

	<-quit
	a.log.Info("shutting down")

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("HTTP server shutdown error", "error", err)
	}

	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}

	a.close()

	a.log.Info("shutdown complete")
	return nil
}

// close releases timers and connections. Safe on a partially built App.
func (a *App) close() {
	if a.timers != nil {
		a.timers.Stop()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Error("failed to close Kafka producer", "error", err)
		}
	}
	if a.redis != nil {
		if err := redisinfra.Close(a.redis); err != nil {
			a.log.Error("failed to close Redis", "error", err)
		}
	}
	if a.closeStore != nil {
		a.closeStore()
	}
}
