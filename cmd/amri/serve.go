package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/amri/internal/config"
	"github.com/jkaninda/amri/internal/executor"
	"github.com/jkaninda/amri/internal/gateway"
	"github.com/jkaninda/amri/internal/gateway/httpapi"
	"github.com/jkaninda/amri/internal/logstore"
	"github.com/jkaninda/amri/internal/observability"
	"github.com/jkaninda/amri/internal/security"
	goutils "github.com/jkaninda/go-utils"
)

var (
	serveConfigPath string
	serveAdminAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the MCP gateway over stdio (plus the optional admin API)",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `amri --config path` and `amri serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().StringVar(&serveAdminAddr, "admin-addr", "", "override admin API listen address (e.g. :8399)")
	}
}

// runServe starts the MCP stdio server and, when enabled, the admin HTTP
// API. Stdout belongs to the MCP transport, so all logging goes to stderr.
func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(goutils.Env("AMRI_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if serveAdminAddr != "" {
		if cfg.Admin == nil {
			cfg.Admin = &config.AdminConfig{}
		}
		cfg.Admin.Enabled = true
		cfg.Admin.ListenAddr = serveAdminAddr
	}

	logger.Info("starting gateway",
		slog.String("config", serveConfigPath),
		slog.Any("shells", cfg.EnabledShells()),
	)

	// Log store, with the optional disk tier.
	var disk *logstore.DiskTier
	if cfg.History.Disk != nil && cfg.History.Disk.Enabled {
		disk, err = logstore.NewDiskTier(cfg.History.Disk, logger)
		if err != nil {
			return fmt.Errorf("initializing disk log tier: %w", err)
		}
		logger.Debug("disk log tier initialized", slog.String("dir", cfg.History.Disk.Dir))
	}
	store := logstore.New(cfg.History, disk, logger)

	// Audit trail.
	var auditor security.Auditor
	if cfg.Audit != nil && cfg.Audit.Enabled {
		switch cfg.Audit.Backend {
		case "sqlite":
			auditor, err = security.NewSQLiteAuditor(cfg.Audit.Path, logger)
		default:
			auditor, err = security.NewFileAuditor(cfg.Audit.Path, logger)
		}
		if err != nil {
			return fmt.Errorf("initializing audit trail: %w", err)
		}
		logger.Debug("audit trail initialized",
			slog.String("backend", cfg.Audit.Backend),
			slog.String("path", cfg.Audit.Path),
		)
	}

	metrics := observability.NewMetricsCollector()
	gw := gateway.New(cfg, store, executor.New(logger), metrics, auditor, logger)
	defer gw.Close()

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Admin API (optional).
	if cfg.Admin != nil && cfg.Admin.Enabled {
		keys := make([]string, 0, len(cfg.Admin.APIKeys))
		for key := range cfg.Admin.APIKeys {
			keys = append(keys, key)
		}
		admin := httpapi.NewServer(httpapi.Config{
			ListenAddr:      cfg.Admin.ListenAddr,
			EnableDocs:      cfg.Admin.EnableDocs,
			APIKeys:         keys,
			MetricsRegistry: metrics.Registry,
		}, gw, logger)

		go func() {
			if err := admin.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin api failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := admin.Stop(shutdownCtx); err != nil {
				logger.Warn("admin api shutdown", slog.String("error", err.Error()))
			}
		}()
	}

	// MCP over stdio: blocks until the client disconnects or a signal lands.
	mcpServer := gateway.NewMCPServer(gw, version, logger)
	if err := mcpServer.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}
