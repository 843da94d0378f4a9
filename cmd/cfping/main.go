package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charleshuang3/cf-ping/internal/app"
	"github.com/charleshuang3/cf-ping/internal/config"
	"github.com/charleshuang3/cf-ping/internal/logging"
	"github.com/charleshuang3/cf-ping/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", "", "address for the web server (overrides server.addr)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info").Error("load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger := logging.New(cfg.LogLevel)
	logger.Info("loaded config", "path", *configPath, "entities", len(cfg.Entities),
		"store", cfg.Store.Backend, "notifier", cfg.Notifier.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("initialise", "error", err)
		os.Exit(1)
	}

	a.Monitor.Start()

	srv := server.New(server.Options{
		Addr:           cfg.Server.Addr,
		Token:          cfg.Token,
		MaxConnections: cfg.Server.MaxConnections,
		StatusPush:     time.Duration(cfg.Server.StatusPushSeconds) * time.Second,
		Telegram: server.TelegramOptions{
			Secret: cfg.Notifier.Telegram.WebhookSecret,
			ChatID: cfg.Notifier.Telegram.ChatID,
		},
	}, a.Monitor, a.Store, a.Dispatcher, a.Metrics, logger)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutting down")
		a.Monitor.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
	}()

	logger.Info("cfping listening", "addr", cfg.Server.Addr,
		"interval_seconds", cfg.Sweep.IntervalSeconds, "threshold_seconds", cfg.Sweep.ThresholdSeconds)
	if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		a.Monitor.Stop()
		os.Exit(1)
	}

	// Shutdown returns once in-flight handlers are done; then wait for
	// their notifications.
	<-shutdownDone
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(drainCtx); err != nil {
		logger.Warn("pending notifications dropped", "error", err)
	}
	logger.Info("bye")
}
