// Command cfpingctl prints the monitor status, or watches it live.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charleshuang3/cf-ping/internal/config"
	"github.com/charleshuang3/cf-ping/internal/tui"
)

func main() {
	var (
		addr    = flag.String("addr", "http://localhost:8080", "base URL of the cfping server")
		token   = flag.String("token", os.Getenv(config.EnvToken), "bearer token (defaults to $"+config.EnvToken+")")
		watch   = flag.Bool("watch", false, "stream status updates in a terminal UI")
		timeout = flag.Duration("timeout", 10*time.Second, "request timeout for one-shot queries")
	)
	flag.Parse()

	if err := run(*addr, *token, *watch, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "cfpingctl:", err)
		os.Exit(1)
	}
}

func run(addr, token string, watch bool, timeout time.Duration) error {
	if token == "" {
		return fmt.Errorf("a token is required (-token or $%s)", config.EnvToken)
	}
	c, err := newClient(addr, token, timeout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !watch {
		report, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		fmt.Print(report.Render())
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	updates := make(chan tui.Update, 1)
	go c.watch(ctx, updates)

	err = tui.New(c.base.String()).Run(ctx, updates)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
