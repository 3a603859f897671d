// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/compllama/internal/completion"
	"github.com/jeranaias/compllama/internal/logging"
	"github.com/jeranaias/compllama/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr matches the default client endpoints.
	DefaultAddr = "127.0.0.1:8000"

	// maxRequestBytes bounds the request body.
	maxRequestBytes = 64 << 10

	// shutdownTimeout bounds graceful shutdown.
	shutdownTimeout = 5 * time.Second

	// Banner is served at GET /.
	Banner = "CompLlama stub server"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

// Config configures the stub.
type Config struct {
	// Addr is the listen address (default: DefaultAddr)
	Addr string

	// Script is the reply, one NDJSON line per entry. Empty echoes the
	// question.
	Script []string

	// ChunkDelay is the pause between lines.
	ChunkDelay time.Duration

	// RatePerSecond limits requests per client IP; zero disables limiting.
	RatePerSecond float64
	Burst         int

	// AllowedOrigins for CORS (default: any origin)
	AllowedOrigins []string

	Logger *zap.Logger
}

// ============================================================================
// STATS
// ============================================================================

// Stats counts served traffic.
type Stats struct {
	Requests int64 `json:"requests"`
	Streams  int64 `json:"streams"`
	Lines    int64 `json:"lines"`
	Rejected int64 `json:"rejected"`
}

type counters struct {
	requests atomic.Int64
	streams  atomic.Int64
	lines    atomic.Int64
	rejected atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Requests: c.requests.Load(),
		Streams:  c.streams.Load(),
		Lines:    c.lines.Load(),
		Rejected: c.rejected.Load(),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the stub HTTP server.
type Server struct {
	cfg    Config
	router *http.ServeMux
	log    *zap.Logger
	stats  counters
	start  time.Time
	script atomic.Pointer[[]string]
}

// New creates a stub server.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		cfg:    cfg,
		router: http.NewServeMux(),
		log:    logging.OrNop(cfg.Logger).With(zap.String("component", "stub")),
		start:  time.Now(),
	}
	s.SetScript(cfg.Script)
	s.setupRoutes()
	return s
}

// SetScript replaces the reply script. Requests already streaming keep the
// script they started with; nil switches to echo replies.
func (s *Server) SetScript(lines []string) {
	lines = append([]string(nil), lines...)
	s.script.Store(&lines)
}

// Script returns the current reply script.
func (s *Server) Script() []string {
	if p := s.script.Load(); p != nil {
		return *p
	}
	return nil
}

// Stats returns the traffic counters.
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST /chat", s.handleChat)
	s.router.HandleFunc("POST /chat-stream", s.handleChat)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, Banner)
	})
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		CORSMiddleware(&CORSConfig{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         86400,
		}),
	}
	if s.cfg.RatePerSecond > 0 {
		limiter := NewRateLimiter(s.cfg.RatePerSecond, s.cfg.Burst)
		middlewares = append(middlewares, RateLimitMiddleware(limiter, &s.stats.rejected))
	}
	return Chain(middlewares...)(s.router)
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.stats.requests.Add(1)

	var req completion.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	lines := s.render(req)
	s.stats.streams.Add(1)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for i, line := range lines {
		if i > 0 && s.cfg.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				s.log.Debug("client went away", zap.Int("sent", i))
				return
			case <-time.After(s.cfg.ChunkDelay):
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return
		}
		flusher.Flush()
		s.stats.lines.Add(1)
	}
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status     string `json:"status"`
	UptimeSecs int64  `json:"uptime_secs"`
	Scripted   bool   `json:"scripted"`
	Stats
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		UptimeSecs: int64(time.Since(s.start).Seconds()),
		Scripted:   len(s.Script()) > 0,
		Stats:      s.stats.snapshot(),
	})
}

// ============================================================================
// REPLY SCRIPT
// ============================================================================

// render expands the script for req, or builds the echo reply.
func (s *Server) render(req completion.Request) []string {
	script := s.Script()
	if len(script) == 0 {
		return echoScript(req)
	}
	r := strings.NewReplacer(
		"{message}", jsonEscape(req.Message),
		"{state}", jsonEscape(req.State),
		"{city}", jsonEscape(req.City),
	)
	out := make([]string, len(script))
	for i, line := range script {
		out[i] = r.Replace(line)
	}
	return out
}

// echoScript streams the question back one word per line, after the
// role preamble.
func echoScript(req completion.Request) []string {
	text := "You asked: " + req.Message
	if loc := (session.Location{State: req.State, City: req.City}).String(); loc != "" {
		text = "In " + loc + ", you asked: " + req.Message
	}
	words := strings.Fields(text)

	lines := make([]string, 0, len(words)+1)
	lines = append(lines, contentLine("Assistant> "))
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		lines = append(lines, contentLine(word))
	}
	return lines
}

func contentLine(s string) string {
	b, _ := json.Marshal(map[string]string{"content": s})
	return string(b)
}

// jsonEscape returns s escaped for use inside a JSON string literal.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return string(b[1 : len(b)-1])
}

// LoadScript reads a script file: one NDJSON line per non-blank line.
func LoadScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("script %s is empty", path)
	}
	return lines, nil
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return ln, nil
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("stub server started", zap.String("addr", ln.Addr().String()), zap.Int("script_lines", len(s.Script())))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	stats := s.stats.snapshot()
	s.log.Info("stub server stopped",
		zap.Int64("requests", stats.Requests),
		zap.Int64("streams", stats.Streams),
		zap.Int64("rejected", stats.Rejected),
	)
	return err
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}
