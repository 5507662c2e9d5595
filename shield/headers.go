package shield

import "net/http"

// HeaderConfig lists the response headers set on every API response.
// Empty fields are skipped.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string

	// CacheControl keeps per-user session and progress bodies out of
	// shared caches.
	CacheControl string
	// Vary names the request headers that select the caller.
	Vary string
}

// DefaultHeaders returns the header set for a JSON API that answers with
// per-user data and never serves HTML.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
		CacheControl:        "no-store",
		Vary:                "Cookie, Authorization",
	}
}

func (c HeaderConfig) pairs() [][2]string {
	return [][2]string{
		{"Content-Security-Policy", c.CSP},
		{"X-Frame-Options", c.XFrameOptions},
		{"X-Content-Type-Options", c.XContentTypeOptions},
		{"Referrer-Policy", c.ReferrerPolicy},
		{"Cache-Control", c.CacheControl},
	}
}

// SecurityHeaders returns middleware that applies cfg before the handler
// runs, so error responses written by later middleware carry them too.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	pairs := cfg.pairs()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, p := range pairs {
				if p[1] != "" {
					h.Set(p[0], p[1])
				}
			}
			if cfg.Vary != "" {
				h.Add("Vary", cfg.Vary)
			}
			next.ServeHTTP(w, r)
		})
	}
}
