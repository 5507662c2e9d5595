package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/connectivity"
	"github.com/hazyhaar/progsync/content"
	"github.com/hazyhaar/progsync/explorer"
	"github.com/hazyhaar/progsync/progress"
)

type anonProgress struct{}

func (anonProgress) Session(context.Context) (*auth.Session, error) { return nil, nil }
func (anonProgress) Load(_ context.Context, d progress.Domain) (progress.Record, error) {
	return progress.Record{Domain: d}, nil
}
func (anonProgress) Save(_ context.Context, d progress.Domain, _ *string, _ progress.Payload) (progress.Record, error) {
	return progress.Record{Domain: d}, nil
}

type stubContent struct {
	discovered []content.DiscoveryRequest
	asked      []content.QueryRequest
}

func (s *stubContent) Discover(_ context.Context, req content.DiscoveryRequest) (content.DiscoveryResponse, error) {
	s.discovered = append(s.discovered, req)
	return content.DiscoveryResponse{
		Domain:  req.Domain,
		Summary: "found for " + req.Prompt,
		Items:   []progress.Insight{{ID: "a", Title: "Result A"}},
	}, nil
}

func (s *stubContent) Ask(_ context.Context, req content.QueryRequest) (content.QueryResponse, error) {
	s.asked = append(s.asked, req)
	return content.QueryResponse{Output: "answer to " + req.Prompt, Model: "stub"}, nil
}

func newTestModel(t *testing.T) (model, *stubContent) {
	t.Helper()
	sc := &stubContent{}
	m := explorer.New(anonProgress{}, sc, explorer.WithContext(context.Background()))
	mdl := newModel(m, "http://localhost:3001/api/auth/signin")
	mdl = feed(t, mdl, m.InitAuth())
	return mdl, sc
}

// feed runs cmd synchronously and delivers its message to the model.
func feed(t *testing.T, mdl model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		return mdl
	}
	next, _ := mdl.Update(cmd())
	return next.(model)
}

func press(t *testing.T, mdl model, key tea.KeyMsg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := mdl.Update(key)
	return next.(model), cmd
}

func typeText(t *testing.T, mdl model, text string) model {
	t.Helper()
	mdl, _ = press(t, mdl, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return mdl
}

func TestModel_TabCyclesDomains(t *testing.T) {
	mdl, _ := newTestModel(t)
	var seen []progress.Domain
	for range progress.KnownDomains() {
		seen = append(seen, mdl.machine.State().Domain)
		mdl, _ = press(t, mdl, tea.KeyMsg{Type: tea.KeyTab})
	}
	if diff := cmp.Diff(progress.KnownDomains(), seen); diff != "" {
		t.Errorf("domain cycle (-want +got):\n%s", diff)
	}
	if got := mdl.machine.State().Domain; got != progress.DefaultDomain {
		t.Errorf("after full cycle: %q, want %q", got, progress.DefaultDomain)
	}

	mdl, _ = press(t, mdl, tea.KeyMsg{Type: tea.KeyShiftTab})
	domains := progress.KnownDomains()
	if got := mdl.machine.State().Domain; got != domains[len(domains)-1] {
		t.Errorf("shift+tab from first: %q, want %q", got, domains[len(domains)-1])
	}
}

func TestModel_EnterDiscovers(t *testing.T) {
	mdl, sc := newTestModel(t)
	mdl = typeText(t, mdl, "remote rust")
	if got := mdl.machine.State().Prompt; got != "remote rust" {
		t.Fatalf("prompt = %q", got)
	}

	mdl, cmd := press(t, mdl, tea.KeyMsg{Type: tea.KeyEnter})
	if !mdl.machine.State().Discovery.Pending() {
		t.Fatal("discovery should be pending after enter")
	}
	mdl = feed(t, mdl, cmd)

	if len(sc.discovered) != 1 || sc.discovered[0].Prompt != "remote rust" {
		t.Fatalf("discover calls: %+v", sc.discovered)
	}
	s := mdl.machine.State()
	if s.Summary != "found for remote rust" || len(s.Insights) != 1 {
		t.Errorf("state after discovery: %+v", s)
	}
	if !strings.Contains(mdl.View(), "Result A") {
		t.Error("view should list the discovered insight")
	}
}

func TestModel_AskMode(t *testing.T) {
	mdl, sc := newTestModel(t)
	mdl = typeText(t, mdl, "kept prompt")
	mdl, _ = press(t, mdl, tea.KeyMsg{Type: tea.KeyCtrlA})
	if mdl.mode != modeAsk || mdl.input.Value() != "" {
		t.Fatalf("mode=%v input=%q", mdl.mode, mdl.input.Value())
	}

	mdl = typeText(t, mdl, "which one pays best?")
	mdl, cmd := press(t, mdl, tea.KeyMsg{Type: tea.KeyEnter})
	mdl = feed(t, mdl, cmd)

	if len(sc.asked) != 1 || sc.asked[0].Prompt != "which one pays best?" {
		t.Fatalf("ask calls: %+v", sc.asked)
	}
	if got := mdl.machine.State().Prompt; got != "kept prompt" {
		t.Errorf("discovery prompt changed by ask: %q", got)
	}
	if got := mdl.machine.State().QueryOutput; got != "answer to which one pays best?" {
		t.Errorf("query output = %q", got)
	}

	mdl, _ = press(t, mdl, tea.KeyMsg{Type: tea.KeyCtrlA})
	if mdl.mode != modeDiscover || mdl.input.Value() != "kept prompt" {
		t.Errorf("back to discover: mode=%v input=%q", mdl.mode, mdl.input.Value())
	}
}

func TestModel_AnonymousView(t *testing.T) {
	mdl, _ := newTestModel(t)
	view := mdl.View()
	if !strings.Contains(view, "not signed in") {
		t.Errorf("view should mention anonymous session:\n%s", view)
	}
	if !strings.Contains(view, "/api/auth/signin") {
		t.Errorf("view should show sign-in URL:\n%s", view)
	}
}

func TestModel_Quit(t *testing.T) {
	mdl, _ := newTestModel(t)
	_, cmd := press(t, mdl, tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("esc should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc should quit")
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", func(string) string { return "" })
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AuthBaseURL != "http://localhost:3001" || cfg.CallTimeout != 30*time.Second {
		t.Errorf("defaults: %+v", cfg)
	}
	want := []connectivity.Route{
		{Service: content.ServiceDiscovery, Strategy: "http", Endpoint: "http://localhost:8000/api/discovery/"},
		{Service: content.ServiceQuery, Strategy: "http", Endpoint: "http://localhost:8000/api/llm/prompt"},
	}
	if diff := cmp.Diff(want, cfg.Routes()); diff != "" {
		t.Errorf("routes (-want +got):\n%s", diff)
	}
}

func TestConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	yml := `auth_base_url: https://progress.example.com
call_timeout: 5s
services:
  discovery:
    strategy: mcp
    endpoint: http://mcp.internal/mcp
    tool_name: discover
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{
		"EXPLORER_TOKEN": "tok",
		"QUERY_ENDPOINT": "http://llm.internal/prompt",
	}
	cfg, err := loadConfig(path, func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AuthBaseURL != "https://progress.example.com" || cfg.Token != "tok" || cfg.CallTimeout != 5*time.Second {
		t.Errorf("config: %+v", cfg)
	}
	want := []connectivity.Route{
		{Service: content.ServiceDiscovery, Strategy: "mcp", Endpoint: "http://mcp.internal/mcp", ToolName: "discover"},
		{Service: content.ServiceQuery, Strategy: "http", Endpoint: "http://llm.internal/prompt"},
	}
	if diff := cmp.Diff(want, cfg.Routes()); diff != "" {
		t.Errorf("routes (-want +got):\n%s", diff)
	}
}

func TestConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), os.Getenv); err == nil {
		t.Error("expected error for missing file")
	}
}
