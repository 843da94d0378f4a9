// Package app wires configuration into the monitor and its collaborators.
// Both the daemon and the scheduled sweep function start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charleshuang3/cf-ping/internal/config"
	"github.com/charleshuang3/cf-ping/internal/metrics"
	"github.com/charleshuang3/cf-ping/internal/monitor"
	"github.com/charleshuang3/cf-ping/internal/notify"
	"github.com/charleshuang3/cf-ping/internal/storage"
)

// App bundles the long-lived components built from one configuration.
type App struct {
	Config     config.Config
	Store      storage.Store
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Collector
	Monitor    *monitor.Monitor
}

// Build constructs the store, notifier and monitor described by cfg.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	sender, err := NewSender(cfg.Notifier, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	dispatcher := notify.NewDispatcher(sender, logger,
		time.Duration(cfg.Notifier.TimeoutSeconds)*time.Second,
		notify.WithResultHook(collector.ObserveNotification))

	mon := monitor.New(monitor.Options{
		Entities:        cfg.Entities,
		Interval:        time.Duration(cfg.Sweep.IntervalSeconds) * time.Second,
		Threshold:       time.Duration(cfg.Sweep.ThresholdSeconds) * time.Second,
		EntityTimeout:   time.Duration(cfg.Sweep.EntityTimeoutSeconds) * time.Second,
		MaxConcurrency:  cfg.Sweep.MaxConcurrency,
		ConflictRetries: cfg.Store.ConflictRetries,
	}, store, dispatcher, logger, collector)

	return &App{
		Config:     cfg,
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    collector,
		Monitor:    mon,
	}, nil
}

// NewStore opens the configured record store backend.
func NewStore(ctx context.Context, cfg config.Store) (storage.Store, error) {
	switch cfg.Backend {
	case config.StoreBackendFile:
		store, err := storage.NewFileStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nil
	case config.StoreBackendDynamoDB:
		client, err := storage.NewDynamoClient(ctx, cfg.Region)
		if err != nil {
			return nil, err
		}
		store, err := storage.NewDynamoStore(client, cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("open dynamodb store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// NewSender returns the notification channel for cfg.
func NewSender(cfg config.Notifier, logger *slog.Logger) (notify.Sender, error) {
	switch cfg.Backend {
	case config.NotifierBackendTelegram:
		sender := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err := sender.Validate(); err != nil {
			return nil, err
		}
		return sender, nil
	case config.NotifierBackendLog:
		return notify.LogSender{Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown notifier backend %q", cfg.Backend)
	}
}

// Close waits for queued notifications until ctx ends.
func (a *App) Close(ctx context.Context) error {
	return a.Dispatcher.Drain(ctx)
}
