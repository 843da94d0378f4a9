package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/metrics"
	"github.com/charleshuang3/cf-ping/internal/monitor"
	"github.com/charleshuang3/cf-ping/internal/status"
)

// Options configures the HTTP surface.
type Options struct {
	Addr           string
	Token          string
	MaxConnections int
	StatusPush     time.Duration
	Telegram       TelegramOptions
}

// Server wraps HTTP serving of the ping ingress and the status API.
type Server struct {
	httpServer *http.Server
	opts       Options
	monitor    *monitor.Monitor
	store      status.Reader
	metrics    *metrics.Collector
	dispatcher monitor.Dispatcher
	logger     *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a configured HTTP server for the monitor.
func New(opts Options, mon *monitor.Monitor, store status.Reader, dispatcher monitor.Dispatcher, collector *metrics.Collector, logger *slog.Logger) *Server {
	if opts.StatusPush <= 0 {
		opts.StatusPush = 15 * time.Second
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		opts:       opts,
		monitor:    mon,
		store:      store,
		metrics:    collector,
		dispatcher: dispatcher,
		logger:     logger,
		closing:    make(chan struct{}),
	}
	s.registerRoutes(mux)
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and blocks serving HTTP traffic.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln, capping concurrent connections when configured.
func (s *Server) Serve(ln net.Listener) error {
	if s.opts.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConnections)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts the server down and ends status streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.closing) })
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	mux.Handle("POST /hello", s.requireToken(http.HandlerFunc(s.handleHello)))
	mux.Handle("GET /api/status", s.requireToken(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /api/status/ws", s.requireToken(http.HandlerFunc(s.handleStatusWS)))
	mux.Handle("GET /metrics", s.requireToken(http.HandlerFunc(s.handleMetrics)))
	if s.opts.Telegram.enabled() {
		mux.HandleFunc("POST /telegram/webhook", s.handleTelegram)
	}
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validBearer(r.Header.Get("Authorization"), s.opts.Token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="cfping"`)
			writeText(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validBearer(header, token string) bool {
	if token == "" {
		return false
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(value)), []byte(token)) == 1
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeText(w, http.StatusBadRequest, "name is required")
		return
	}
	if !s.monitor.Allowed(name) {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("unknown entity %q", name))
		return
	}

	res, err := s.monitor.Ping(r.Context(), name)
	if errors.Is(err, monitor.ErrUnknownEntity) {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeText(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch res.Outcome {
	case engine.OutcomeCreated:
		writeText(w, http.StatusCreated, fmt.Sprintf("hello %s, registered", name))
	case engine.OutcomeRecovered:
		writeText(w, http.StatusOK, fmt.Sprintf("hello %s, welcome back after %s", name, engine.HumanDuration(res.Downtime)))
	default:
		writeText(w, http.StatusOK, fmt.Sprintf("hello %s", name))
	}
}

func (s *Server) buildReport(ctx context.Context) status.Report {
	return status.Build(ctx, s.store, s.monitor.Entities(), s.monitor.Now(), s.monitor.Threshold())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report := s.buildReport(r.Context())
	if r.URL.Query().Get("format") == "text" {
		writeText(w, http.StatusOK, report.Render())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	report := s.buildReport(r.Context())
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := s.metrics.WritePrometheus(w, report); err != nil {
		s.logger.Warn("write metrics", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
	if !strings.HasSuffix(body, "\n") {
		_, _ = w.Write([]byte("\n"))
	}
}
