// Package httpapi implements the admin HTTP API: history inspection,
// store statistics, health, and Prometheus metrics.
//
// Security:
//   - API key authentication on /v1 (constant-time comparison)
//   - Read-mostly surface; the only mutation is clearing the history
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkaninda/amri/internal/gateway"
	"github.com/jkaninda/amri/internal/logstore"
	"github.com/jkaninda/okapi"
)

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the admin API server.
type Config struct {
	ListenAddr string // e.g., ":8399"
	EnableDocs bool
	APIKeys    []string // Accepted bearer tokens. Empty = /v1 disabled.

	// Observability
	MetricsRegistry *prometheus.Registry // Custom Prometheus registry for /metrics.
	MetricsPath     string               // Path for metrics endpoint. Default: "/metrics".
}

// Server is the admin HTTP server.
type Server struct {
	config Config
	gw     *gateway.Gateway
	logger *slog.Logger
	server *http.Server
	okapi  *okapi.Okapi
	group  *okapi.Group
}

// NewServer creates an admin API server over a gateway.
func NewServer(cfg Config, gw *gateway.Gateway, logger *slog.Logger) *Server {
	return &Server{
		config: cfg,
		gw:     gw,
		logger: logger,
		okapi:  okapi.New(),
	}
}

// WithOpenAPIDocs enables the generated OpenAPI documentation endpoint.
func (s *Server) WithOpenAPIDocs() *Server {
	s.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "Amri Admin API",
			Version: "v0.0.1",
		},
	)
	return s
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	// Authenticated /v1 group. Without configured keys the group is not
	// mounted at all.
	if len(s.config.APIKeys) > 0 {
		s.group = s.okapi.Group("/v1", s.authenticate)

		s.group.Get("/history", s.handleHistoryList,
			okapi.DocSummary("List stored execution records, newest first"),
			okapi.DocTags("History"),
			okapi.DocResponse([]HistoryEntry{}),
			okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		)
		s.group.Get("/history/{id}", s.handleHistoryGet,
			okapi.DocSummary("Get one execution record, including its full output"),
			okapi.DocTags("History"),
			okapi.DocPathParam("id", "string", "Execution record ID"),
			okapi.DocResponse(HistoryDetail{}),
			okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		)
		s.group.Delete("/history", s.handleHistoryClear,
			okapi.DocSummary("Clear the in-memory history"),
			okapi.DocTags("History"),
			okapi.DocResponse(map[string]string{}),
		)
		s.group.Get("/stats", s.handleStats,
			okapi.DocSummary("Log store statistics"),
			okapi.DocTags("History"),
			okapi.DocResponse(StatsResponse{}),
		)
	}

	// Observability endpoints (unauthenticated).
	s.okapi.Get("/healthz", s.handleHealth)

	if s.config.MetricsRegistry != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.okapi.HandleStd("GET", path, promhttp.HandlerFor(s.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if s.config.EnableDocs {
		s.WithOpenAPIDocs()
	}

	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("admin api starting", slog.String("addr", s.config.ListenAddr))
	return s.okapi.StartServer(s.server)
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(_ context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("admin api stopping")
	return s.okapi.Shutdown(s.server)
}

// --- Handlers ---

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// HistoryEntry is one record in the GET /v1/history listing. Output is
// omitted; fetch a single record for it.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Shell      string    `json:"shell"`
	Command    string    `json:"command"`
	WorkingDir string    `json:"working_dir"`
	ExitCode   int       `json:"exit_code"`
	TotalLines int       `json:"total_lines"`
	Size       int64     `json:"size"`
	FilePath   string    `json:"file_path,omitempty"`
}

// HistoryDetail is a full record, output included.
type HistoryDetail struct {
	HistoryEntry
	Output string `json:"output"`
}

func (s *Server) handleHistoryList(c *okapi.Context) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.AbortBadRequest("limit must be a non-negative integer")
		}
		limit = n
	}
	entries := s.gw.Store().List(limit)
	resp := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		resp[i] = historyEntry(e)
	}
	return c.OK(resp)
}

func (s *Server) handleHistoryGet(c *okapi.Context) error {
	id := c.Param("id")
	entry, ok := s.gw.Store().Get(id)
	if !ok {
		return c.JSON(http.StatusNotFound, okapi.M{"error": "record not found"})
	}
	return c.OK(HistoryDetail{
		HistoryEntry: historyEntry(entry),
		Output:       entry.CombinedOutput,
	})
}

func (s *Server) handleHistoryClear(c *okapi.Context) error {
	s.gw.Store().Clear()
	s.logger.Info("history cleared")
	return c.OK(map[string]string{"status": "cleared"})
}

// StatsResponse is the JSON response for GET /v1/stats.
type StatsResponse struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}

func (s *Server) handleStats(c *okapi.Context) error {
	count, size := s.gw.Store().Stats()
	return c.OK(StatsResponse{Entries: count, TotalBytes: size})
}

func historyEntry(e logstore.Entry) HistoryEntry {
	return HistoryEntry{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Shell:      e.Shell,
		Command:    e.Command,
		WorkingDir: e.WorkingDirectory,
		ExitCode:   e.ExitCode,
		TotalLines: e.TotalLines,
		Size:       e.Size,
		FilePath:   e.FilePath,
	}
}

// --- Authentication ---

// authenticate validates the bearer token against the configured API keys.
func (s *Server) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		ok := false
		for _, key := range s.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1 {
				ok = true
			}
		}
		if !ok {
			return c.AbortUnauthorized("invalid API key")
		}
		return next(c)
	}
}
