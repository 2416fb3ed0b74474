package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/hatchbench/weavepane/internal/config"
	"github.com/hatchbench/weavepane/internal/controlplane"
	"github.com/hatchbench/weavepane/internal/executor"
	"github.com/hatchbench/weavepane/internal/layout"
	"github.com/hatchbench/weavepane/internal/pty"
	"github.com/hatchbench/weavepane/internal/scheduler"
	"github.com/hatchbench/weavepane/internal/taskgraph"
)

var version = "0.1.0"

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	logger := newLogger()
	slog.SetDefault(logger)

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("weavepane v%s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	poolCfg := pty.DefaultPoolConfig()
	poolCfg.MaxSessions = cfg.MaxSessions
	pool := pty.NewPool(poolCfg, logger)
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warn("failed to close pty pool", "error", err)
		}
	}()

	layoutManager := layout.NewManager()
	loadLayout(layoutManager, cfg.LayoutPath, logger)

	graph := taskgraph.NewGraph()
	schedCfg := scheduler.DefaultConfig()
	schedCfg.MaxConcurrent = cfg.MaxConcurrentTasks
	sched := scheduler.New(graph, schedCfg)

	execCfg := executor.DefaultConfig()
	execCfg.MaxConcurrent = cfg.MaxConcurrentTasks
	execCfg.WorkingDir = cfg.WorkDir
	exec := executor.New(sched, pool, execCfg)

	stop := make(chan struct{})
	go runTaskLoop(exec, logger, stop)
	defer close(stop)

	cp := controlplane.New(pool, logger)

	if cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/", cp.ServeWebSocket)
		srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
		go func() {
			logger.Info("control plane websocket listening", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("websocket server error", "error", err)
			}
		}()
		defer srv.Close()
	}

	printStartupBanner(cfg)

	if err := cp.Serve(os.Stdin, os.Stdout); err != nil {
		logger.Error("control plane stopped", "error", err)
		os.Exit(1)
	}

	if err := saveLayout(layoutManager, cfg.LayoutPath, logger); err != nil {
		logger.Warn("failed to save layout", "error", err)
	}
}

// runTaskLoop reaps exited task PTYs and re-dispatches newly ready
// tasks until stop is closed. The scheduler/executor pair is an
// independent subsystem from the control plane: both share the same
// pool, but nothing currently feeds the graph from outside the
// process, so this loop idles harmlessly until a future caller
// populates one.
func runTaskLoop(exec *executor.Executor, logger *slog.Logger, stop <-chan struct{}) {
	if _, err := exec.Start(); err != nil {
		logger.Error("failed to start task executor", "error", err)
	}
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := exec.ReapExited(); err != nil {
				logger.Warn("task reap error", "error", err)
			}
			exec.Poll()
		}
	}
}

func loadLayout(m *layout.Manager, path string, logger *slog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("failed to open saved layout", "path", path, "error", err)
		}
		return
	}
	defer f.Close()
	if err := m.LoadLayout(f); err != nil {
		logger.Warn("failed to parse saved layout", "path", path, "error", err)
	}
}

func saveLayout(m *layout.Manager, path string, logger *slog.Logger) error {
	if m.IsEmpty() {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.SaveLayout(f)
}

func printStartupBanner(cfg *config.Config) {
	fmt.Fprintf(os.Stderr, "\nweavepane v%s\n", version)
	fmt.Fprintf(os.Stderr, "  control plane: stdio (JSON-RPC, line-delimited)\n")
	if cfg.ListenAddr != "" {
		fmt.Fprintf(os.Stderr, "  websocket:     %s\n", cfg.ListenAddr)
	}
	if cfg.PrintToken {
		fmt.Fprintf(os.Stderr, "  token:         %s\n", cfg.Token)
	}
	fmt.Fprintf(os.Stderr, "  max sessions:  %d\n", cfg.MaxSessions)
	fmt.Fprintf(os.Stderr, "  max tasks:     %d\n\n", cfg.MaxConcurrentTasks)
}
