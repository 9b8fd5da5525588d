package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dealerlink/lead-recovery/internal/chat"
	"github.com/dealerlink/lead-recovery/internal/config"
	"github.com/dealerlink/lead-recovery/internal/dealer"
	"github.com/dealerlink/lead-recovery/internal/domain"
	"github.com/dealerlink/lead-recovery/internal/handler"
	"github.com/dealerlink/lead-recovery/internal/infra/postgresql"
	"github.com/dealerlink/lead-recovery/internal/infra/postgresql/migrations"
	infraredis "github.com/dealerlink/lead-recovery/internal/infra/redis"
	"github.com/dealerlink/lead-recovery/internal/marketplace"
	"github.com/dealerlink/lead-recovery/internal/notify"
	"github.com/dealerlink/lead-recovery/internal/observability"
	"github.com/dealerlink/lead-recovery/internal/repository"
	"github.com/dealerlink/lead-recovery/internal/service"
	"github.com/dealerlink/lead-recovery/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	metrics := observability.NewMetrics()

	limiter, err := infraredis.NewDispatchLimiter(rdb, cfg.DispatchRatePerSec)
	if err != nil {
		logger.Fatal("dispatch limiter init failed", zap.Error(err))
	}

	sessions, err := chat.NewRedisStore(rdb, cfg.ReturnTokenTTL())
	if err != nil {
		logger.Fatal("chat store init failed", zap.Error(err))
	}

	notifier, err := notify.NewWebhookNotifier(cfg.SMSWebhookURL, cfg.EmailWebhookURL, observability.ComponentLogger(logger, "notify"))
	if err != nil {
		logger.Fatal("notifier init failed", zap.Error(err))
	}

	marketplaceClient := marketplace.NewClient(cfg.BoberdooURL, cfg.BoberdooVendorID, cfg.BoberdooVendorPassword)
	if !marketplaceClient.Configured() {
		logger.Warn("marketplace credentials missing, submissions will fall through to the dealer webhook")
	}

	dealerCRM, err := dealer.NewWebhookClient(cfg.DealerWebhookURL, observability.ComponentLogger(logger, "dealer"))
	if err != nil {
		logger.Fatal("dealer client init failed", zap.Error(err))
	}

	visitors := repository.NewGormVisitorRepo(db)
	attempts := repository.NewGormOutreachRepo(db)
	leads := repository.NewGormLeadRepo(db)
	activities := repository.NewGormActivityRepo(db)

	detector, err := service.NewDetectorService(
		visitors,
		activities,
		cfg.AbandonThreshold(),
		cfg.ReturnTokenTTL(),
		cfg.ScanLimit,
		observability.ComponentLogger(logger, "detector"),
	)
	if err != nil {
		logger.Fatal("detector init failed", zap.Error(err))
	}
	detector.SetMetrics(metrics)

	outreach, err := service.NewOutreachService(
		visitors,
		attempts,
		activities,
		notifier,
		limiter,
		sessions,
		cfg.ReturnBaseURL,
		cfg.ScanLimit,
		observability.ComponentLogger(logger, "outreach"),
	)
	if err != nil {
		logger.Fatal("outreach init failed", zap.Error(err))
	}
	outreach.SetMetrics(metrics)

	submission, err := service.NewSubmissionService(
		marketplaceClient,
		cfg.SubmitMaxAttempts,
		observability.ComponentLogger(logger, "submission"),
	)
	if err != nil {
		logger.Fatal("submission init failed", zap.Error(err))
	}
	submission.SetMetrics(metrics)

	packager, err := service.NewPackagerService(
		visitors,
		leads,
		attempts,
		activities,
		sessions,
		submission,
		dealerCRM,
		observability.ComponentLogger(logger, "packager"),
	)
	if err != nil {
		logger.Fatal("packager init failed", zap.Error(err))
	}

	detectorRunner, err := service.NewRunner("detector", cfg.DetectInterval(), func(ctx context.Context) error {
		_, err := detector.Detect(ctx)
		if errors.Is(err, domain.ErrAlreadyRunning) {
			return nil
		}
		return err
	}, logger)
	if err != nil {
		logger.Fatal("detector runner init failed", zap.Error(err))
	}

	outreachRunner, err := service.NewRunner("outreach", cfg.OutreachInterval(), func(ctx context.Context) error {
		_, err := outreach.ProcessQueue(ctx)
		if errors.Is(err, domain.ErrAlreadyRunning) {
			return nil
		}
		return err
	}, logger)
	if err != nil {
		logger.Fatal("outreach runner init failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "lead-recovery",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterOpsRoutes(app, detector, outreach, submission, packager, leads); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return detectorRunner.Start(gctx)
	})
	g.Go(func() error {
		return outreachRunner.Start(gctx)
	})
	g.Go(func() error {
		logger.Info("lead-recovery api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("engine exited with error", zap.Error(err))
	}
	logger.Info("engine stopped")
}
