package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hazyhaar/progsync/kit"
)

type claimsKey struct{}

// Middleware extracts a JWT from the "token" cookie (preferred) or the
// Authorization Bearer header. Valid claims are injected into the request
// context together with kit.UserIDKey and kit.SessionIDKey. Invalid or
// missing tokens leave the request anonymous; use RequireSession to enforce.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string
			fromCookie := false

			if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
				tokenStr = c.Value
				fromCookie = true
			}
			if tokenStr == "" {
				if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
					tokenStr = strings.TrimSpace(h[len("Bearer "):])
				}
			}

			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ValidateToken(secret, tokenStr)
			if err != nil {
				if fromCookie {
					http.SetCookie(w, &http.Cookie{Name: CookieName, MaxAge: -1, Path: "/"})
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = kit.WithUserID(ctx, claims.UserID)
			ctx = kit.WithSessionID(ctx, claims.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the Claims from the context, or nil if absent.
func GetClaims(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// Resolve returns the identity of the request's session. ok is false for
// anonymous callers. It has no side effects.
func Resolve(r *http.Request) (identity string, ok bool) {
	id := kit.GetUserID(r.Context())
	return id, id != ""
}

// RequireSession answers 401 {"error":"Unauthorized"} when no identity
// resolves, before the wrapped handler runs.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if kit.Anonymous(r.Context()) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionHandler serves GET /api/session: it reports the caller's own
// session and needs no authentication.
func SessionHandler(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Authenticated bool     `json:"authenticated"`
		Session       *Session `json:"session"`
	}{}
	if c := GetClaims(r.Context()); c != nil {
		resp.Authenticated = true
		resp.Session = c.Session()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
