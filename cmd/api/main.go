package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/project-collab/config"
	"github.com/GoSim-25-26J-441/project-collab/internal/bootstrap"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/repository"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/service"
	"github.com/GoSim-25-26J-441/project-collab/internal/logging"
)

const (
	serviceName     = "project-collab"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.App)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap.SetGinMode(cfg.App.Environment)

	conn, err := bootstrap.OpenDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	store := repository.NewPostgresStore(conn.Pool)

	broker, closeBroker, err := bootstrap.OpenBroker(ctx, cfg.Notify, logger)
	if err != nil {
		return err
	}
	defer closeBroker()

	identity, err := bootstrap.BuildIdentity(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	svc := service.New(store, store, identity.Provider, broker, logger)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Config:      cfg,
		Service:     svc,
		Auth:        identity.Middleware,
		DB:          store,
		Notify:      broker,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// no WriteTimeout: event streams stay open
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("auth", cfg.Auth.Mode),
			zap.String("notify", broker.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
