// Command cfping-sweep runs one sweep pass per invocation. It is meant to be
// deployed as a Lambda function behind an EventBridge schedule, sharing the
// DynamoDB record store with the ping ingress.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/charleshuang3/cf-ping/internal/app"
	"github.com/charleshuang3/cf-ping/internal/config"
	"github.com/charleshuang3/cf-ping/internal/logging"
	"github.com/charleshuang3/cf-ping/internal/monitor"
)

const envConfigPath = "CFPING_CONFIG"

var (
	log     *slog.Logger
	service *app.App
)

func init() {
	path := os.Getenv(envConfigPath)
	if path == "" {
		path = "config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}
	log = logging.New(cfg.LogLevel)
	log.Info("cfping-sweep: cold start", "entities", len(cfg.Entities), "store", cfg.Store.Backend)

	service, err = app.Build(context.Background(), cfg, log)
	if err != nil {
		panic(fmt.Errorf("initialise: %w", err))
	}
}

// handle runs a sweep and waits for its notifications before the
// invocation is frozen. After the first drain, sends happen inline.
func handle(ctx context.Context, event events.CloudWatchEvent) (monitor.SweepReport, error) {
	log.Info("scheduled sweep", "event_id", event.ID, "time", event.Time)

	report := service.Monitor.Sweep(ctx)
	if err := service.Close(ctx); err != nil {
		log.Warn("pending notifications dropped", "sweep_id", report.ID, "error", err)
	}
	if report.Failures > 0 {
		return report, fmt.Errorf("sweep %s: %d of %d entities failed", report.ID, report.Failures, len(report.Results))
	}
	return report, nil
}

func main() {
	lambda.Start(handle)
}
