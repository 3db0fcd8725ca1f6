package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alaska-tech/veciapp-backend/internal/archive"
	"github.com/alaska-tech/veciapp-backend/internal/config"
	"github.com/alaska-tech/veciapp-backend/internal/database"
	"github.com/alaska-tech/veciapp-backend/internal/gateway/wompi"
	apphttp "github.com/alaska-tech/veciapp-backend/internal/http"
	"github.com/alaska-tech/veciapp-backend/internal/http/handlers"
	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
	"github.com/alaska-tech/veciapp-backend/internal/shared/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get database handle: %v", err)
	}
	defer sqlDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	arch, err := archive.FromConfig(ctx, cfg.Archive())
	if err != nil {
		log.Fatalf("archive: %v", err)
	}

	gw := wompi.NewClient(cfg.Wompi(), nil)
	repo := payments.NewRepo(db)

	svc := payments.NewService(repo, gw, payments.NewReferenceGenerator(), cfg.Currency)
	svc.SetLogger(logger)

	applier := payments.NewApplier(repo, gw.MapStatus, retry.Policy{
		MaxAttempts: payments.DefaultUpdateAttempts,
		Backoff:     retry.Linear(cfg.UpdateRetryBase),
	})
	applier.SetLogger(logger)

	webhooks := payments.NewWebhookService(repo, repo, gw, applier, cfg.WompiWebhookSecret)
	webhooks.SetLogger(logger)

	syncer := payments.NewSyncService(repo, gw, applier)
	syncer.SetLogger(logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := apphttp.NewRouter(apphttp.Deps{
		Logger:    logger,
		JWTSecret: []byte(cfg.JWTSecret),
		DB:        sqlDB,
		Payments:  handlers.NewPaymentHandler(logger, svc, repo, syncer),
		Webhooks:  handlers.NewWebhookHandler(logger, webhooks, arch),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr, "db_driver", cfg.DBDriver, "archive", cfg.ArchiveDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
}
