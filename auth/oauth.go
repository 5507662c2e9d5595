package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hazyhaar/progsync/horosafe"
	"github.com/hazyhaar/progsync/idgen"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateCookieName   = "oauth_state"
	stateTTL          = 10 * time.Minute
)

// OAuthConfig holds the configuration needed to set up an OAuth2 provider.
type OAuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// Enabled reports whether the provider has credentials.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// OAuthUser represents the normalized user profile returned by an OAuth2 provider.
type OAuthUser struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
}

// NewGoogleProvider returns an oauth2.Config configured for Google login
// with email and profile scopes.
func NewGoogleProvider(cfg OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// FetchGoogleUser exchanges an authorization code and fetches the user's
// Google profile from userInfoURL.
func FetchGoogleUser(ctx context.Context, oauthCfg *oauth2.Config, code, userInfoURL string) (*OAuthUser, error) {
	token, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("oauth exchange: %w", err)
	}

	client := oauthCfg.Client(ctx, token)
	resp, err := client.Get(userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("read google userinfo: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned %d: %s", resp.StatusCode, body)
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode google userinfo: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("google userinfo without id")
	}

	return &OAuthUser{
		ProviderUserID: info.ID,
		Email:          info.Email,
		Name:           info.Name,
		AvatarURL:      info.Picture,
	}, nil
}

// GoogleLogin serves the sign-in round trip and issues the session cookie
// the progress API is gated on.
type GoogleLogin struct {
	OAuth         *oauth2.Config
	Secret        []byte
	Expiry        time.Duration
	CookieDomain  string
	RedirectAfter string // where the browser lands once signed in
	UserInfoURL   string // defaults to Google's userinfo endpoint

	// OnSignIn is called after the session cookie has been issued.
	OnSignIn func(ctx context.Context, c *Claims)
}

// Handler returns the auth routes, to be mounted under /api/auth:
//
//	GET  /signin           redirect to the provider
//	GET  /callback/google  code exchange, session cookie, redirect
//	GET  /signout, POST /signout
func (g *GoogleLogin) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/signin", g.handleSignIn)
	r.Get("/callback/google", g.handleCallback)
	r.Get("/signout", g.handleSignOut)
	r.Post("/signout", g.handleSignOut)
	return r
}

func (g *GoogleLogin) handleSignIn(w http.ResponseWriter, r *http.Request) {
	state := idgen.State()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	http.Redirect(w, r, g.OAuth.AuthCodeURL(state), http.StatusFound)
}

func (g *GoogleLogin) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := r.Cookie(stateCookieName)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid oauth state"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, MaxAge: -1, Path: "/"})

	if e := r.URL.Query().Get("error"); e != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": e})
		return
	}

	userInfoURL := g.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = googleUserInfoURL
	}
	user, err := FetchGoogleUser(ctx, g.OAuth, r.URL.Query().Get("code"), userInfoURL)
	if err != nil {
		slog.WarnContext(ctx, "google sign-in failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "sign-in failed"})
		return
	}

	claims := &Claims{
		UserID:       "google:" + user.ProviderUserID,
		Name:         user.Name,
		Email:        user.Email,
		AvatarURL:    user.AvatarURL,
		AuthProvider: "google",
	}
	token, err := GenerateToken(g.Secret, claims, g.Expiry)
	if err != nil {
		slog.ErrorContext(ctx, "issue session token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	SetTokenCookie(w, token, g.CookieDomain, g.Expiry, isSecure(r))
	slog.InfoContext(ctx, "signed in", "user_id", claims.UserID)
	if g.OnSignIn != nil {
		g.OnSignIn(ctx, claims)
	}

	dest := g.RedirectAfter
	if dest == "" {
		dest = "/"
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func (g *GoogleLogin) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ClearTokenCookie(w, g.CookieDomain)
	if r.Method == http.MethodGet && g.RedirectAfter != "" {
		http.Redirect(w, r, g.RedirectAfter, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
