package connectivity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var mcpImpl = &mcp.Implementation{Name: "progsync-connectivity", Version: "0.1.0"}

// MCPConnector opens an MCP client session for a route. The default
// connects over streamable HTTP to rt.Endpoint.
type MCPConnector func(ctx context.Context, rt Route) (*mcp.ClientSession, error)

// StreamableConnector connects to an MCP server over streamable HTTP.
func StreamableConnector(hc *http.Client) MCPConnector {
	return func(ctx context.Context, rt Route) (*mcp.ClientSession, error) {
		client := mcp.NewClient(mcpImpl, nil)
		return client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: rt.Endpoint, HTTPClient: hc}, nil)
	}
}

// MCPFactory creates Handlers that invoke rt.ToolName as an MCP tool. The
// payload must be a JSON object; it becomes the tool arguments. The tool's
// text content is returned as the response.
//
// The session is opened eagerly so that Configure fails fast.
//
//	router.RegisterTransport("mcp", connectivity.MCPFactory(nil))
func MCPFactory(connect MCPConnector) TransportFactory {
	if connect == nil {
		connect = StreamableConnector(nil)
	}
	return func(ctx context.Context, rt Route) (Handler, func(), error) {
		if rt.ToolName == "" {
			return nil, nil, fmt.Errorf("connectivity/mcp: tool_name required")
		}
		session, err := connect(ctx, rt)
		if err != nil {
			return nil, nil, fmt.Errorf("connectivity/mcp: connect to %s: %w", rt.Endpoint, err)
		}

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			var args map[string]any
			if len(payload) > 0 {
				if err := json.Unmarshal(payload, &args); err != nil {
					return nil, fmt.Errorf("connectivity/mcp: unmarshal args: %w", err)
				}
			}
			result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: rt.ToolName, Arguments: args})
			if err != nil {
				return nil, fmt.Errorf("connectivity/mcp: call %s: %w", rt.ToolName, err)
			}
			text := resultText(result)
			if result.IsError {
				return nil, &ErrToolFailed{Tool: rt.ToolName, Message: text}
			}
			return []byte(text), nil
		}

		return handler, func() { session.Close() }, nil
	}
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}
