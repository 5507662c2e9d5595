package connectivity

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hazyhaar/progsync/horosafe"
)

// maxHTTPResponseBody caps the amount of response data read from remote
// HTTP endpoints (10 MiB).
const maxHTTPResponseBody int64 = 10 << 20

// HTTPFactory creates Handlers that POST the payload to the route endpoint
// and return the response body. Content-Type defaults to application/json.
//
//	router.RegisterTransport("http", connectivity.HTTPFactory())
func HTTPFactory() TransportFactory {
	return func(_ context.Context, rt Route) (Handler, func(), error) {
		u, err := url.Parse(rt.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, nil, fmt.Errorf("connectivity/http: invalid endpoint %q", rt.Endpoint)
		}

		contentType := "application/json"
		if rt.ContentType != "" {
			contentType = rt.ContentType
		}
		client := &http.Client{Timeout: rt.Timeout()}

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, rt.Endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := horosafe.LimitedReadAll(resp.Body, maxHTTPResponseBody)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &ErrRemoteStatus{Endpoint: rt.Endpoint, Status: resp.StatusCode, Body: string(body)}
			}
			return body, nil
		}

		return handler, client.CloseIdleConnections, nil
	}
}
