package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload carried by the session cookie. UserID is the
// opaque identity every progress record is keyed by.
type Claims struct {
	jwt.RegisteredClaims
	UserID       string `json:"user_id"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	AuthProvider string `json:"auth_provider,omitempty"` // "google", "dev"
}

// Session is the client-visible form of a resolved session.
type Session struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
}

// SessionUser identifies the signed-in user.
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// Session projects the claims into the shape returned by GET /api/session.
func (c *Claims) Session() *Session {
	s := &Session{User: SessionUser{
		ID:    c.UserID,
		Name:  c.Name,
		Email: c.Email,
		Image: c.AvatarURL,
	}}
	if c.ExpiresAt != nil {
		s.Expires = c.ExpiresAt.Time.UTC()
	}
	return s
}
