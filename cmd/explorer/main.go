// Command explorer is a terminal client that browses curated content per
// category and keeps the signed-in user's progress in sync with progressd.
//
// Usage:
//
//	explorer -config explorer.yaml
//	EXPLORER_TOKEN=$(progressd -mint-token dev:alice) explorer
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hazyhaar/progsync/connectivity"
	"github.com/hazyhaar/progsync/content"
	"github.com/hazyhaar/progsync/explorer"
	"github.com/hazyhaar/progsync/progress"
)

func main() {
	configPath := flag.String("config", "", "path to explorer.yaml config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath, os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "explorer: config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "explorer:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config) error {
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	machine, closeFn, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	p := tea.NewProgram(newModel(machine, cfg.AuthBaseURL+"/api/auth/signin"), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// build wires the progress client and the content router into a Machine.
// Unreachable content routes are logged; the affected calls then fail
// individually.
func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*explorer.Machine, func(), error) {
	var opts []progress.ClientOption
	if cfg.Token != "" {
		opts = append(opts, progress.WithToken(cfg.Token))
	}
	pc, err := progress.NewClient(cfg.AuthBaseURL, opts...)
	if err != nil {
		return nil, nil, err
	}

	router := connectivity.New(connectivity.WithLogger(logger))
	router.RegisterTransport("http", connectivity.HTTPFactory())
	router.RegisterTransport("mcp", connectivity.MCPFactory(nil))
	if err := router.Configure(ctx, cfg.Routes()); err != nil {
		logger.Warn("content routes", "error", err)
	}

	m := explorer.New(pc, content.NewClient(router),
		explorer.WithContext(ctx),
		explorer.WithCallTimeout(cfg.CallTimeout),
		explorer.WithLogger(logger),
	)
	return m, func() { router.Close() }, nil
}
