// Command progressd serves the session and progress API.
//
// Usage:
//
//	progressd -config progressd.yaml
//	SESSION_SECRET=... DB_PATH=data/progress.db progressd
//	progressd -config progressd.yaml -mint-token dev:alice   # print a bearer token and exit
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/dbopen"
	"github.com/hazyhaar/progsync/horosafe"
	"github.com/hazyhaar/progsync/observability"
	"github.com/hazyhaar/progsync/progress"
)

func main() {
	configPath := flag.String("config", "", "path to progressd.yaml config file")
	mintFor := flag.String("mint-token", "", "print a session token for this identity and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath, os.Getenv)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

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
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	if *mintFor != "" {
		tok, err := mintToken(cfg, *mintFor)
		if err != nil {
			logger.Error("mint token", "error", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("progressd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *Config) error {
	key, err := horosafe.DeriveKey(cfg.SessionSecret, sessionKeyInfo)
	if err != nil {
		return fmt.Errorf("session key: %w", err)
	}

	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll(), dbopen.WithBusyTimeout(cfg.BusyTimeoutMs))
	if err != nil {
		return fmt.Errorf("progress db: %w", err)
	}
	defer db.Close()

	store, err := progress.NewStore(db)
	if err != nil {
		return err
	}

	eventsDB := db
	if cfg.ObservabilityDB != "" && cfg.ObservabilityDB != cfg.DBPath {
		eventsDB, err = dbopen.Open(cfg.ObservabilityDB, dbopen.WithMkdirAll(), dbopen.WithBusyTimeout(cfg.BusyTimeoutMs), dbopen.WithSynchronous("OFF"))
		if err != nil {
			return fmt.Errorf("observability db: %w", err)
		}
		defer eventsDB.Close()
	}
	events, err := openEvents(eventsDB)
	if err != nil {
		return err
	}

	s := &server{cfg: cfg, key: key, store: store, events: events}
	handler, err := s.routes()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// A listener failure cancels gctx, which stops the cleanup loop and
	// triggers shutdown.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.cleanupEvents(gctx, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("server starting",
			"addr", cfg.Addr,
			"db", cfg.DBPath,
			"origin", cfg.FrontendOrigin,
			"strict_domains", *cfg.StrictDomains,
			"oauth", cfg.OAuth.Google.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// mintToken issues a session token for non-browser clients such as the
// terminal explorer.
func mintToken(cfg *Config, identity string) (string, error) {
	key, err := horosafe.DeriveKey(cfg.SessionSecret, sessionKeyInfo)
	if err != nil {
		return "", err
	}
	return auth.GenerateToken(key, &auth.Claims{
		UserID:       identity,
		Name:         identity,
		AuthProvider: "dev",
	}, cfg.SessionTTL)
}

func openEvents(db *sql.DB) (*observability.EventLogger, error) {
	if err := observability.Init(db); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	return observability.NewEventLogger(db, "progressd"), nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
