package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/dbopen"
	"github.com/hazyhaar/progsync/horosafe"
	"github.com/hazyhaar/progsync/progress"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", envMap(map[string]string{"SESSION_SECRET": "s3cret"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":3001" || cfg.FrontendOrigin != "http://localhost:5173" || !*cfg.StrictDomains {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.OAuth.RedirectAfter != cfg.FrontendOrigin || cfg.OAuth.Google.Enabled() {
		t.Fatalf("oauth = %+v", cfg.OAuth)
	}
	if cfg.BusyTimeoutMs != 10_000 {
		t.Fatalf("busy timeout = %d", cfg.BusyTimeoutMs)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progressd.yaml")
	yml := `
addr: ":9000"
db_path: /tmp/p.db
session_secret: from-file
session_ttl: 2h
strict_domains: false
oauth:
  google:
    client_id: id
    client_secret: secret
    redirect_url: http://localhost:3001/api/auth/callback/google
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path, envMap(map[string]string{
		"PORT":            "8080",
		"FRONTEND_ORIGIN": "https://app.example.com",
		"BUSY_TIMEOUT_MS": "2500",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" || cfg.DBPath != "/tmp/p.db" || cfg.SessionSecret != "from-file" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SessionTTL != 2*time.Hour || *cfg.StrictDomains || !cfg.OAuth.Google.Enabled() {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.OAuth.RedirectAfter != "https://app.example.com" {
		t.Fatalf("redirect after = %q", cfg.OAuth.RedirectAfter)
	}
	if cfg.BusyTimeoutMs != 2500 {
		t.Fatalf("busy timeout = %d", cfg.BusyTimeoutMs)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := loadConfig("", envMap(nil)); err == nil {
		t.Fatal("expected error without session secret")
	}
	if _, err := loadConfig("", envMap(map[string]string{"SESSION_SECRET": "x", "STRICT_DOMAINS": "maybe"})); err == nil {
		t.Fatal("expected error for bad STRICT_DOMAINS")
	}
	if _, err := loadConfig("/does/not/exist.yaml", envMap(nil)); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func newTestServer(t *testing.T, mutate func(*Config)) (*httptest.Server, *Config) {
	t.Helper()
	cfg, err := loadConfig("", envMap(map[string]string{"SESSION_SECRET": "test-secret"}))
	if err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	key, err := horosafe.DeriveKey(cfg.SessionSecret, sessionKeyInfo)
	if err != nil {
		t.Fatal(err)
	}
	db := dbopen.OpenMemory(t)
	store, err := progress.NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	events, err := openEvents(db)
	if err != nil {
		t.Fatal(err)
	}
	s := &server{cfg: cfg, key: key, store: store, events: events}
	h, err := s.routes()
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, cfg
}

func request(t *testing.T, method, url, token, body string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(method, url, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, string(data)
}

func TestRoutes_Healthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, body := request(t, "GET", srv.URL+"/healthz", "", "")
	if resp.StatusCode != 200 || !strings.Contains(body, `"ok"`) {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Trace-ID") == "" || resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("shield headers missing: %v", resp.Header)
	}
}

func TestRoutes_SessionCORS(t *testing.T) {
	srv, cfg := newTestServer(t, nil)

	resp, _ := request(t, "OPTIONS", srv.URL+"/api/session", "", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") != "GET,OPTIONS" ||
		resp.Header.Get("Access-Control-Allow-Origin") != cfg.FrontendOrigin {
		t.Fatalf("headers = %v", resp.Header)
	}

	resp, body := request(t, "GET", srv.URL+"/api/session", "", "")
	if resp.StatusCode != 200 || !strings.Contains(body, `"authenticated":false`) {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestRoutes_ProgressRoundTrip(t *testing.T) {
	srv, cfg := newTestServer(t, nil)
	tok, err := mintToken(cfg, "dev:alice")
	if err != nil {
		t.Fatal(err)
	}

	resp, body := request(t, "GET", srv.URL+"/api/progress?domain=jobs", "", "")
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "Unauthorized") {
		t.Fatalf("anonymous: status=%d body=%s", resp.StatusCode, body)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") != "GET,POST,OPTIONS" {
		t.Fatal("CORS missing on 401")
	}

	resp, body = request(t, "POST", srv.URL+"/api/progress", tok,
		`{"domain":"jobs","prompt":"remote golang","payload":{"summary":"S","items":[]}}`)
	if resp.StatusCode != 200 {
		t.Fatalf("post: status=%d body=%s", resp.StatusCode, body)
	}
	resp, body = request(t, "GET", srv.URL+"/api/progress?domain=jobs", tok, "")
	if resp.StatusCode != 200 || !strings.Contains(body, `"prompt":"remote golang"`) {
		t.Fatalf("get: status=%d body=%s", resp.StatusCode, body)
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Fatalf("progress response cacheable: Cache-Control=%q", resp.Header.Get("Cache-Control"))
	}

	resp, _ = request(t, "POST", srv.URL+"/api/progress", tok, `{"domain":"crypto"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("strict domains: status=%d", resp.StatusCode)
	}
}

func TestRoutes_LenientDomains(t *testing.T) {
	srv, cfg := newTestServer(t, func(c *Config) {
		lenient := false
		c.StrictDomains = &lenient
	})
	tok, _ := mintToken(cfg, "dev:bob")
	resp, body := request(t, "POST", srv.URL+"/api/progress", tok, `{"domain":"crypto"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestRoutes_OAuthMountedOnlyWhenEnabled(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, _ := request(t, "GET", srv.URL+"/api/auth/signin", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("disabled oauth: status=%d", resp.StatusCode)
	}

	srv, _ = newTestServer(t, func(c *Config) {
		c.OAuth.Google = auth.OAuthConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/cb"}
	})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(srv.URL + "/api/auth/signin")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || !strings.Contains(resp.Header.Get("Location"), "accounts.google.com") {
		t.Fatalf("signin: status=%d location=%q", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestMintToken(t *testing.T) {
	cfg, _ := loadConfig("", envMap(map[string]string{"SESSION_SECRET": "s"}))
	tok, err := mintToken(cfg, "dev:carol")
	if err != nil {
		t.Fatal(err)
	}
	key, _ := horosafe.DeriveKey("s", sessionKeyInfo)
	c, err := auth.ValidateToken(key, tok)
	if err != nil || c.UserID != "dev:carol" || c.AuthProvider != "dev" {
		t.Fatalf("claims = %+v, err = %v", c, err)
	}
}

func TestCleanupEvents_StopsOnCancel(t *testing.T) {
	db := dbopen.OpenMemory(t)
	events, err := openEvents(db)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{EventRetention: time.Hour}
	s := &server{cfg: cfg, events: events}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.cleanupEvents(ctx, discardLogger())
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanupEvents did not stop")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRun_OpensDatabaseAndStops(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig("", envMap(map[string]string{
		"SESSION_SECRET": "s3cret",
		"ADDR":           "127.0.0.1:0",
		"DB_PATH":        filepath.Join(dir, "nested", "progress.db"),
	}))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, discardLogger(), cfg) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(cfg.DBPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("database file not created; run returned %v", <-done)
		}
		select {
		case err := <-done:
			t.Fatalf("run exited early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
