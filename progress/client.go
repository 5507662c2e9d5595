package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hazyhaar/progsync/auth"
	"github.com/hazyhaar/progsync/horosafe"
)

// Client calls the progress API and the session endpoint on behalf of a
// signed-in user. Cookies set by the server are kept in a jar; a bearer
// token may be supplied instead for non-browser clients.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken authenticates requests with "Authorization: Bearer <token>".
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client. Its Jar is kept as is.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("progress: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("progress: base url must be http(s): %q", baseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("progress: cookie jar: %w", err)
	}
	c := &Client{
		base: u,
		http: &http.Client{Jar: jar, Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Session returns the caller's session, or nil when the server reports no
// authenticated session.
func (c *Client) Session(ctx context.Context) (*auth.Session, error) {
	var resp struct {
		Authenticated bool          `json:"authenticated"`
		Session       *auth.Session `json:"session"`
	}
	if err := c.do(ctx, "session", http.MethodGet, "/api/session", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Authenticated {
		return nil, nil
	}
	return resp.Session, nil
}

// Load fetches the record for domain. A never-written domain returns a
// Record whose Found() is false.
func (c *Client) Load(ctx context.Context, domain Domain) (Record, error) {
	q := url.Values{"domain": {string(domain)}}
	var rec Record
	if err := c.do(ctx, "load", http.MethodGet, "/api/progress?"+q.Encode(), nil, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Save upserts the record for domain and returns what the server stored.
func (c *Client) Save(ctx context.Context, domain Domain, prompt *string, payload Payload) (Record, error) {
	if payload.Items == nil {
		payload.Items = []Insight{}
	}
	body := struct {
		Domain  Domain  `json:"domain"`
		Prompt  *string `json:"prompt"`
		Payload Payload `json:"payload"`
	}{domain, prompt, payload}
	var rec Record
	if err := c.do(ctx, "save", http.MethodPost, "/api/progress", body, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &RequestError{Op: op, Message: "encode request", Err: err}
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return &RequestError{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Message: "read response", Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from an error body, falling back to
// the raw text.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "API request failed"
}
