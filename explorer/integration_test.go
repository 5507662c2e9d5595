package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/connectivity"
	"github.com/hazyhaar/progsync/content"
	"github.com/hazyhaar/progsync/dbopen"
	"github.com/hazyhaar/progsync/progress"
)

var integrationSecret = bytes.Repeat([]byte("i"), 32)

func startProgressServer(t *testing.T) string {
	t.Helper()
	store, err := progress.NewStore(dbopen.OpenMemory(t))
	if err != nil {
		t.Fatal(err)
	}
	h, err := progress.NewHandler(progress.Config{Store: store, Domains: progress.KnownDomains()})
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	r.Use(auth.Middleware(integrationSecret))
	r.Get("/api/session", auth.SessionHandler)
	r.Mount("/api/progress", h.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newProgressClient(t *testing.T, base, user string) *progress.Client {
	t.Helper()
	tr := &http.Transport{}
	t.Cleanup(tr.CloseIdleConnections)
	opts := []progress.ClientOption{progress.WithHTTPClient(&http.Client{Transport: tr})}
	if user != "" {
		tok, err := auth.GenerateToken(integrationSecret, &auth.Claims{UserID: user, Name: user}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		opts = append(opts, progress.WithToken(tok))
	}
	c, err := progress.NewClient(base, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func localContent() *content.Client {
	r := connectivity.New()
	r.RegisterLocal(content.ServiceDiscovery, func(_ context.Context, payload []byte) ([]byte, error) {
		var req content.DiscoveryRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		score := 0.9
		return json.Marshal(content.DiscoveryResponse{
			Domain:  req.Domain,
			Summary: "S",
			Items:   []progress.Insight{{ID: "1", Title: "T", Description: "D", Score: &score}},
		})
	})
	return content.NewClient(r)
}

func TestIntegration_ResumeAcrossClients(t *testing.T) {
	base := startProgressServer(t)

	// First device: discover while signed in.
	first := New(newProgressClient(t, base, "u1"), localContent())
	drive(first, first.InitAuth())
	first.SetPrompt("remote golang")
	drive(first, first.TriggerDiscovery(nil))
	if s := first.State(); s.Persist.Phase != PhaseOK {
		t.Fatalf("persist = %+v", s.Persist)
	}

	// Second device: a fresh client resumes the same view.
	second := New(newProgressClient(t, base, "u1"), localContent())
	drive(second, second.InitAuth())
	s := second.State()
	if s.Summary != "S" || s.Prompt != "remote golang" || len(s.Insights) != 1 || *s.Insights[0].Score != 0.9 {
		t.Fatalf("resumed state = %+v", s)
	}

	// Another user starts from scratch.
	other := New(newProgressClient(t, base, "u2"), localContent())
	drive(other, other.InitAuth())
	if got := other.State().Summary; got != progress.InitialSummary {
		t.Fatalf("u2 summary = %q", got)
	}
}

func TestIntegration_AnonymousNeverPersists(t *testing.T) {
	base := startProgressServer(t)
	m := New(newProgressClient(t, base, ""), localContent())
	drive(m, m.InitAuth())
	drive(m, m.TriggerDiscovery(str("x")))

	s := m.State()
	if s.Session != nil || s.Persist.Phase != PhaseIdle || s.Summary != "S" {
		t.Fatalf("state = %+v", s)
	}
}
