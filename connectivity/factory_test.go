package connectivity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestHTTPFactory_PostsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	h, closeFn, err := HTTPFactory()(context.Background(), Route{Endpoint: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	resp, err := h(context.Background(), []byte(`{"domain":"jobs"}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != `echo:{"domain":"jobs"}` {
		t.Fatalf("got %q", resp)
	}
}

func TestHTTPFactory_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "model overloaded")
	}))
	defer srv.Close()

	h, _, _ := HTTPFactory()(context.Background(), Route{Endpoint: srv.URL})
	_, err := h(context.Background(), nil)
	var rs *ErrRemoteStatus
	if !errors.As(err, &rs) {
		t.Fatalf("expected ErrRemoteStatus, got %v", err)
	}
	if rs.Status != http.StatusServiceUnavailable || rs.Body != "model overloaded" {
		t.Fatalf("got %+v", rs)
	}
}

func TestHTTPFactory_RejectsEndpoint(t *testing.T) {
	for _, ep := range []string{"", "ftp://x", "not a url", "http://"} {
		if _, _, err := HTTPFactory()(context.Background(), Route{Endpoint: ep}); err == nil {
			t.Errorf("endpoint %q: expected error", ep)
		}
	}
}

var testImpl = &mcp.Implementation{Name: "connectivity-test", Version: "0.1.0"}

func newEchoServer() *mcp.Server {
	srv := mcp.NewServer(testImpl, nil)
	srv.AddTool(&mcp.Tool{
		Name:        "echo",
		Description: "Echo the arguments back as JSON.",
		InputSchema: map[string]any{"type": "object"},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args map[string]any
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		if args["fail"] == true {
			var res mcp.CallToolResult
			res.SetError(errors.New("asked to fail"))
			return &res, nil
		}
		data, _ := json.Marshal(args)
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(data)}}}, nil
	})
	return srv
}

func inMemoryConnector(srv *mcp.Server) MCPConnector {
	return func(ctx context.Context, rt Route) (*mcp.ClientSession, error) {
		serverT, clientT := mcp.NewInMemoryTransports()
		go func() { _ = srv.Run(context.Background(), serverT) }()
		return mcp.NewClient(testImpl, nil).Connect(ctx, clientT, nil)
	}
}

func TestMCPFactory_CallsTool(t *testing.T) {
	h, closeFn, err := MCPFactory(inMemoryConnector(newEchoServer()))(context.Background(), Route{ToolName: "echo"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	resp, err := h(context.Background(), []byte(`{"prompt":"remote golang"}`))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(resp, &got); err != nil {
		t.Fatalf("unmarshal %q: %v", resp, err)
	}
	if got["prompt"] != "remote golang" {
		t.Fatalf("got %v", got)
	}
}

func TestMCPFactory_ToolError(t *testing.T) {
	h, closeFn, err := MCPFactory(inMemoryConnector(newEchoServer()))(context.Background(), Route{ToolName: "echo"})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	_, err = h(context.Background(), []byte(`{"fail":true}`))
	var tf *ErrToolFailed
	if !errors.As(err, &tf) || tf.Tool != "echo" {
		t.Fatalf("expected ErrToolFailed, got %v", err)
	}
}

func TestMCPFactory_RequiresToolName(t *testing.T) {
	if _, _, err := MCPFactory(inMemoryConnector(newEchoServer()))(context.Background(), Route{}); err == nil {
		t.Fatal("expected error without tool_name")
	}
}

func TestMCPFactory_StreamableHTTP(t *testing.T) {
	srv := newEchoServer()
	hs := httptest.NewServer(mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	defer hs.Close()

	r := New()
	r.RegisterTransport("mcp", MCPFactory(nil))
	err := r.Configure(context.Background(), []Route{
		{Service: "query", Strategy: "mcp", Endpoint: hs.URL, ToolName: "echo"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	resp, err := r.Call(context.Background(), "query", []byte(`{"mode":"chat"}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != `{"mode":"chat"}` {
		t.Fatalf("got %q", resp)
	}
}
