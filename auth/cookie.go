package auth

import (
	"net/http"
	"time"
)

// CookieName is the session cookie read by Middleware.
const CookieName = "token"

// SetTokenCookie writes the JWT as an HttpOnly cookie. SameSite is Lax: the
// browser must still send it after the top-level redirect back from the
// OAuth provider. A non-empty domain enables cross-subdomain sessions.
func SetTokenCookie(w http.ResponseWriter, token, domain string, maxAge time.Duration, secure bool) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
	if domain != "" {
		c.Domain = domain
	}
	http.SetCookie(w, c)
}

// ClearTokenCookie removes the session cookie, matching the same Domain
// attribute so cross-subdomain cookies are cleared too.
func ClearTokenCookie(w http.ResponseWriter, domain string) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	}
	if domain != "" {
		c.Domain = domain
	}
	http.SetCookie(w, c)
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
