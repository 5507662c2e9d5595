package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/observability"
	"github.com/hazyhaar/progsync/progress"
	"github.com/hazyhaar/progsync/shield"
)

// sessionKeyInfo is the HKDF info label of the session signing key.
const sessionKeyInfo = "progsync session v1"

type server struct {
	cfg    *Config
	key    []byte
	store  *progress.Store
	events *observability.EventLogger
}

func (s *server) routes() (http.Handler, error) {
	var domains []progress.Domain
	if *s.cfg.StrictDomains {
		domains = progress.KnownDomains()
	}
	ph, err := progress.NewHandler(progress.Config{Store: s.store, Domains: domains, Events: s.events})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Use(auth.Middleware(s.key))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(shield.CORS(shield.CORSConfig{Origin: s.cfg.FrontendOrigin, Methods: "GET,OPTIONS"}))
		r.Get("/api/session", auth.SessionHandler)
		r.Options("/api/session", noContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(shield.CORS(shield.CORSConfig{Origin: s.cfg.FrontendOrigin, Methods: "GET,POST,OPTIONS"}))
		r.Mount("/api/progress", ph.Routes())
	})

	if s.cfg.OAuth.Google.Enabled() {
		login := &auth.GoogleLogin{
			OAuth:         auth.NewGoogleProvider(s.cfg.OAuth.Google),
			Secret:        s.key,
			Expiry:        s.cfg.SessionTTL,
			CookieDomain:  s.cfg.CookieDomain,
			RedirectAfter: s.cfg.OAuth.RedirectAfter,
			OnSignIn: func(ctx context.Context, c *auth.Claims) {
				s.events.LogEvent(ctx, observability.BusinessEvent{
					EventType:  "sign_in",
					EntityType: "session",
					EntityID:   c.ID,
					UserID:     c.UserID,
					Action:     "oauth_" + strings.ToLower(c.AuthProvider),
					Success:    true,
				})
			},
		}
		r.Mount("/api/auth", login.Handler())
	}

	return r, nil
}

// cleanupEvents prunes business events older than the retention window
// once an hour until ctx is done.
func (s *server) cleanupEvents(ctx context.Context, logger *slog.Logger) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		n, err := s.events.Cleanup(ctx, s.cfg.EventRetention)
		if err != nil {
			logger.Warn("event cleanup failed", "error", err)
		} else if n > 0 {
			logger.Info("event cleanup", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
