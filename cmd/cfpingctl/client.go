package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleshuang3/cf-ping/internal/status"
	"github.com/charleshuang3/cf-ping/internal/tui"
)

const reconnectDelay = 3 * time.Second

type client struct {
	base  *url.URL
	token string
	http  *http.Client
}

func newClient(rawBase, token string, timeout time.Duration) (*client, error) {
	if !strings.Contains(rawBase, "://") {
		rawBase = "http://" + rawBase
	}
	base, err := url.Parse(strings.TrimSuffix(rawBase, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse address: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", base.Scheme)
	}
	return &client{base: base, token: token, http: &http.Client{Timeout: timeout}}, nil
}

func (c *client) authHeader() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	return header
}

// fetch returns the current status report.
func (c *client) fetch(ctx context.Context) (status.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/api/status", nil)
	if err != nil {
		return status.Report{}, err
	}
	req.Header = c.authHeader()

	resp, err := c.http.Do(req)
	if err != nil {
		return status.Report{}, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return status.Report{}, fmt.Errorf("get status: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var report status.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return status.Report{}, fmt.Errorf("decode status: %w", err)
	}
	return report, nil
}

func (c *client) streamURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/status/ws"
	return u.String()
}

// watch streams reports into updates, reconnecting after failures, until
// ctx ends. It closes updates on return.
func (c *client) watch(ctx context.Context, updates chan<- tui.Update) {
	defer close(updates)
	for {
		err := c.streamOnce(ctx, updates)
		if ctx.Err() != nil {
			return
		}
		select {
		case updates <- tui.Update{Err: err}:
		case <-ctx.Done():
			return
		}
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *client) streamOnce(ctx context.Context, updates chan<- tui.Update) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL(), c.authHeader())
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial status stream: %s", resp.Status)
		}
		return fmt.Errorf("dial status stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var report status.Report
		if err := conn.ReadJSON(&report); err != nil {
			return fmt.Errorf("read status stream: %w", err)
		}
		select {
		case updates <- tui.Update{Report: report}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
