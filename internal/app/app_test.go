package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charleshuang3/cf-ping/internal/config"
	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/logging"
	"github.com/charleshuang3/cf-ping/internal/notify"
	"github.com/charleshuang3/cf-ping/internal/status"
	"github.com/charleshuang3/cf-ping/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Token = "s3cret"
	cfg.Entities = []string{"db1"}
	cfg.Store.Path = filepath.Join(t.TempDir(), "status.json")
	cfg.Notifier.Backend = config.NotifierBackendLog
	return cfg
}

func TestBuildWiresFileStoreAndLogNotifier(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), logging.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := a.Store.(*storage.FileStore); !ok {
		t.Fatalf("expected file store, got %T", a.Store)
	}

	res, err := a.Monitor.Ping(context.Background(), "db1")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !res.Created() {
		t.Fatalf("expected created, got %s", res.Outcome)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := a.Metrics.Transitions(engine.OutcomeCreated); got != 1 {
		t.Fatalf("expected one created transition, got %d", got)
	}
	var out strings.Builder
	if err := a.Metrics.WritePrometheus(&out, status.Report{}); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	if !strings.Contains(out.String(), `cfping_notifications_total{result="sent"} 1`) {
		t.Fatalf("notification result hook not wired:\n%s", out.String())
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweep.ThresholdSeconds = cfg.Sweep.IntervalSeconds
	if _, err := Build(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewSender(t *testing.T) {
	sender, err := NewSender(config.Notifier{
		Backend:  config.NotifierBackendTelegram,
		Telegram: config.Telegram{Token: "t", ChatID: "42"},
	}, logging.Discard())
	if err != nil {
		t.Fatalf("telegram sender: %v", err)
	}
	if tg, ok := sender.(*notify.TelegramSender); !ok || tg.ChatID() != "42" {
		t.Fatalf("unexpected sender %T", sender)
	}

	if _, err := NewSender(config.Notifier{Backend: config.NotifierBackendTelegram}, logging.Discard()); err == nil {
		t.Fatal("expected error for telegram without credentials")
	}
	if _, err := NewSender(config.Notifier{Backend: "pigeon"}, logging.Discard()); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestNewStoreUnknownBackend(t *testing.T) {
	if _, err := NewStore(context.Background(), config.Store{Backend: "floppy"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
