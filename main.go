package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"task-staking-system/blob"
	"task-staking-system/config"
	"task-staking-system/events"
	"task-staking-system/handlers"
	"task-staking-system/ledger"
	"task-staking-system/logger"
	"task-staking-system/metrics"
	"task-staking-system/middleware"
	"task-staking-system/services"
	"task-staking-system/storage"
)

func main() {
	foundEnv := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New("task-staking-api", cfg.LogLevel, cfg.LogFormat)
	if !foundEnv {
		log.Info("⚠️  No .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, err := openStore(cfg, m, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer store.Close()

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize blob store")
	}

	var ledgerClient ledger.Client
	if cfg.Ledger.Enabled() {
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		eth, err := ledger.Dial(dialCtx, cfg.Ledger, log)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("failed to connect to ledger")
		}
		defer eth.Close()
		ledgerClient = eth
		log.WithField("rpc", cfg.Ledger.RPCURL).Info("✅ ledger staking enabled")
	} else {
		log.Warn("LEDGER_RPC_URL not set, tasks are recorded off-chain only")
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.RedisURL != "" {
		rp, err := events.NewRedisPublisher(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		publisher = rp
	}
	defer publisher.Close()

	badges := services.NewBadgeService(log)
	users := services.NewUserService(store, log)
	tasks := services.NewTaskService(services.TaskDeps{
		Store:     store,
		Blobs:     blobs,
		Ledger:    ledgerClient,
		Publisher: publisher,
		Badges:    badges,
		Metrics:   m,
		Log:       log,
	})

	sweeper := services.NewStreakSweeper(store, m, log)
	sched, err := services.StartStreakScheduler(ctx, sweeper, cfg.StreakSweepInterval)
	if err != nil {
		log.WithError(err).Fatal("failed to start scheduler")
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.MaxUploadBytes) + 1<<20,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))
	app.Use(middleware.RequestLogger(log))
	app.Use(m.Middleware())

	handlers.SetupRoutes(app, handlers.NewHandler(users, tasks, blobs, log), m, cfg.OperatorToken)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("server error")
			stop()
		}
	}()

	log.WithFields(logrus.Fields{
		"port":  cfg.Port,
		"store": cfg.StoreDriver,
		"blobs": cfg.BlobBackend,
	}).Info("✅ server running")
	log.Infof("✅ CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Info("shutting down server...")

	if err := sched.Shutdown(); err != nil {
		log.WithError(err).Warn("scheduler shutdown")
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
}

func openStore(cfg *config.Config, m *metrics.Metrics, log *logrus.Entry) (storage.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	}

	gs, err := storage.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gs.SQLDB()
	if err != nil {
		gs.Close()
		return nil, err
	}
	if err := storage.Migrate(sqlDB); err != nil {
		gs.Close()
		return nil, err
	}
	m.WatchDB(sqlDB, "postgres")
	return gs, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	if cfg.BlobBackend == config.BlobBackendR2 {
		return blob.NewR2Store(ctx, cfg.R2, cfg.MaxUploadBytes)
	}
	return blob.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes)
}
