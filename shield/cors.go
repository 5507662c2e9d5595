package shield

import "net/http"

// CORSConfig restricts cross-origin access to a single browser origin.
type CORSConfig struct {
	Origin  string // e.g. "http://localhost:5173"
	Methods string // e.g. "GET,POST,OPTIONS"
	Headers string // defaults to "Content-Type, Authorization"
}

// CORS sets the allow-origin, credentials, headers and methods headers on
// every response, including errors, and answers OPTIONS preflights with an
// empty 204 without calling next.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	headers := cfg.Headers
	if headers == "" {
		headers = "Content-Type, Authorization"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", cfg.Origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", cfg.Methods)
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
