package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/klockd/klock/internal/config"
	"github.com/klockd/klock/internal/domain/activity"
	"github.com/klockd/klock/internal/domain/kernel"
	"github.com/klockd/klock/internal/mcp"
	"github.com/klockd/klock/internal/memstore"
	"github.com/klockd/klock/internal/repository"
	"github.com/klockd/klock/internal/sqlite"
	"github.com/klockd/klock/internal/transport"
)

const version = "0.1.0"

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		runServe()
	case "check":
		if err := runCheck(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "check error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("klockd %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, check or version)\n", command)
		os.Exit(2)
	}
}

func runServe() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "mcp-stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("KLOCK_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	leases, agents, events, cleanup, err := buildStores(cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	svc := kernel.NewService(leases, agents, logger, kernel.WithEventLog(events))
	eventsSvc := activity.NewService(events, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Eviction.IntervalMs > 0 {
		go runEvictionSweeper(ctx, svc, logger, time.Duration(cfg.Eviction.IntervalMs)*time.Millisecond)
	}

	switch cfg.Transport.Mode {
	case "mcp-stdio":
		runMCPStdio(ctx, cancel, logger, svc)
	case "mcp-http":
		runMCPHTTP(logger, svc, cfg)
	default:
		runHTTP(logger, svc, eventsSvc, cfg)
	}
}

// buildStores selects the store backend: "memory", or a SQLite path.
func buildStores(cfg config.StoreConfig) (repository.LeaseStore, repository.AgentDirectory, activity.Repository, func(), error) {
	if cfg.Backend == "" || cfg.Backend == "memory" {
		return memstore.NewLeaseStore(), memstore.NewAgentDirectory(), memstore.NewEventLog(), func() {}, nil
	}

	db, err := sqlite.New(cfg.Backend)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := db.RunMigrations(); err != nil {
		_ = db.Close()
		return nil, nil, nil, nil, err
	}
	return sqlite.NewLeaseStore(db), sqlite.NewAgentDirectory(db), sqlite.NewEventLog(db), func() { _ = db.Close() }, nil
}

// runEvictionSweeper periodically reclaims expired leases.
func runEvictionSweeper(ctx context.Context, svc *kernel.Service, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.EvictExpired(ctx); err != nil {
				logger.Error("eviction sweep failed", "error", err)
			}
		}
	}
}

func runHTTP(logger *slog.Logger, svc *kernel.Service, events *activity.Service, cfg config.Config) {
	var authMiddleware func(http.Handler) http.Handler
	if cfg.Auth.APIKey != "" {
		authMiddleware = transport.APIKeyMiddleware(cfg.Auth.APIKey)
	}
	router := transport.NewServer(svc, events, authMiddleware)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr, "store", cfg.Store.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func runMCPStdio(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svc *kernel.Service) {
	logger.Info("starting stdio transport", "auth", "disabled")

	mcpServer := mcp.NewServer(mcp.Config{
		Kernel:        svc,
		TransportMode: "stdio",
		Logger:        logger,
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func runMCPHTTP(logger *slog.Logger, svc *kernel.Service, cfg config.Config) {
	mcpServer := mcp.NewServer(mcp.Config{
		Kernel:        svc,
		APIKey:        cfg.Auth.APIKey,
		TransportMode: "http",
		Logger:        logger,
	})

	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			Stateless:      false,
			SessionTimeout: 30 * time.Minute,
		},
	)

	router := http.NewServeMux()
	router.Handle("/mcp", mcpHandler)
	router.Handle("/mcp/", mcpHandler)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("mcp server listening", "addr", addr, "store", cfg.Store.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
