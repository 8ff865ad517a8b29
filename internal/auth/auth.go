// Package auth issues and checks platform session cookies: password login,
// staff Google SSO, and the middleware that turns a cookie into a
// domain.Actor.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/lapublica/platform/internal/config"
	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/pkg/httpretry"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/pkg/logger"
)

const (
	stateCookie = "oauth_state"
	userinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Users is the account lookup the manager needs.
type Users interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	StaffByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.User, error)
}

// GoogleUserInfo represents the user info returned by Google
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	HD            string `json:"hd"` // Hosted domain (Workspace domain)
}

// Manager handles login, logout and session middleware.
type Manager struct {
	cfg         config.AuthConfig
	store       Store
	users       Users
	oauth       *oauth2.Config
	userinfoURL string
	http        httpretry.Doer
	limiter     *ipLimiter
	baseURL     string
	now         func() time.Time
}

// NewManager creates an authentication manager. baseURL is the public web
// origin that SSO redirects return to.
func NewManager(cfg config.AuthConfig, store Store, users Users, baseURL string) *Manager {
	m := &Manager{
		cfg:         cfg,
		store:       store,
		users:       users,
		userinfoURL: userinfoURL,
		http:        httpretry.New(nil, httpretry.Options{MaxRetries: 2, Timeout: 10 * time.Second}),
		limiter:     newIPLimiter(cfg.LoginPerMinute),
		baseURL:     strings.TrimRight(baseURL, "/"),
		now:         time.Now,
	}
	if cfg.GoogleEnabled() {
		m.oauth = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}
	return m
}

// SweepLimiter drops rate-limit state for IPs idle longer than idle.
func (m *Manager) SweepLimiter(idle time.Duration) { m.limiter.sweep(idle) }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies email and password and issues a session cookie.
func (m *Manager) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !m.limiter.allow(clientIP(r)) {
		httputil.TooManyRequests(w)
		return
	}
	var req loginRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httputil.BadRequest(w, "email and password are required")
		return
	}

	u, err := m.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			httputil.Error(w, http.StatusUnauthorized, apperr.Message(err))
			return
		}
		httputil.FromError(w, err)
		return
	}
	s, err := m.startSession(w, r, u, "password")
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"user": u, "expires_at": s.ExpiresAt})
}

func (m *Manager) startSession(w http.ResponseWriter, r *http.Request, u *domain.User, method string) (*Session, error) {
	s, err := newSession(u, method, m.now().UTC(), m.cfg.SessionTTL())
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	if err := m.store.Save(r.Context(), s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   m.cfg.CookieMaxAge,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	logger.Info("auth: user logged in", "user_id", u.ID, "email", u.Email, "method", method)
	return s, nil
}

// HandleLogout deletes the session and clears the cookie.
func (m *Manager) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		if err := m.store.Delete(r.Context(), c.Value); err != nil {
			logger.Warn("auth: delete session failed", "error", err)
		}
	}
	m.clearCookie(w, m.cfg.CookieName)
	httputil.NoContent(w)
}

// HandleMe returns the current user. Must run behind RequireSession.
func (m *Manager) HandleMe(w http.ResponseWriter, r *http.Request) {
	s := SessionFrom(r.Context())
	if s == nil {
		httputil.Unauthorized(w)
		return
	}
	u, err := m.users.Get(r.Context(), s.Actor(), s.UserID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if !u.Active {
		_ = m.store.Delete(r.Context(), s.ID)
		m.clearCookie(w, m.cfg.CookieName)
		httputil.Unauthorized(w)
		return
	}
	httputil.OK(w, map[string]any{"user": u, "expires_at": s.ExpiresAt})
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// generateState creates a random state string for OAuth
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HandleGoogleLogin initiates the Google OAuth flow for staff.
func (m *Manager) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if m.oauth == nil {
		httputil.NotFound(w, "google sign-in is not configured")
		return
	}
	state, err := generateState()
	if err != nil {
		httputil.InternalError(w, fmt.Errorf("generate state: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// hd narrows the Google account chooser to the allowed domain
	target := m.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("hd", m.cfg.AllowedDomain))
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// HandleGoogleCallback processes the OAuth callback from Google.
func (m *Manager) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if m.oauth == nil {
		httputil.NotFound(w, "google sign-in is not configured")
		return
	}
	q := r.URL.Query()

	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || q.Get("state") != c.Value {
		logger.Warn("auth: oauth state mismatch")
		m.failRedirect(w, r, "invalid_state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/auth/google", MaxAge: -1})

	if e := q.Get("error"); e != "" {
		logger.Warn("auth: google returned error", "error", e)
		m.failRedirect(w, r, "google_denied")
		return
	}

	token, err := m.oauth.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		logger.Warn("auth: code exchange failed", "error", err)
		m.failRedirect(w, r, "exchange_failed")
		return
	}
	info, err := m.userInfo(r.Context(), token.AccessToken)
	if err != nil {
		logger.Warn("auth: userinfo failed", "error", err)
		m.failRedirect(w, r, "userinfo_failed")
		return
	}
	if !info.VerifiedEmail || !m.domainAllowed(info.Email) {
		logger.Warn("auth: domain not allowed", "email", info.Email, "allowed", m.cfg.AllowedDomain)
		m.failRedirect(w, r, "domain_not_allowed")
		return
	}

	u, err := m.users.StaffByEmail(r.Context(), info.Email)
	if err != nil {
		logger.Warn("auth: sso account rejected", "email", info.Email, "error", err)
		m.failRedirect(w, r, "account_not_allowed")
		return
	}
	if _, err := m.startSession(w, r, u, "google"); err != nil {
		logger.Error("auth: start session failed", "error", err)
		m.failRedirect(w, r, "session_failed")
		return
	}
	http.Redirect(w, r, m.baseURL+"/", http.StatusTemporaryRedirect)
}

func (m *Manager) failRedirect(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, m.baseURL+"/login?error="+url.QueryEscape(code), http.StatusTemporaryRedirect)
}

func (m *Manager) domainAllowed(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.EqualFold(email[at+1:], m.cfg.AllowedDomain)
}

// userInfo fetches the user's profile from Google
func (m *Manager) userInfo(ctx context.Context, accessToken string) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read user info: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API error (HTTP %d): %s", resp.StatusCode, body)
	}
	var info GoogleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse user info: %w", err)
	}
	return &info, nil
}

// ValidateCredentials performs a lightweight check against Google's token
// endpoint so rotated OAuth credentials surface at boot rather than at the
// first staff login.
func (m *Manager) ValidateCredentials(ctx context.Context) error {
	if m.oauth == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"validation_probe"},
		"client_id":     {m.oauth.ClientID},
		"client_secret": {m.oauth.ClientSecret},
		"redirect_uri":  {m.oauth.RedirectURL},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("token endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	text := string(body)

	// a bad code with a good client is the expected answer
	if strings.Contains(text, "invalid_grant") || strings.Contains(text, "invalid_request") ||
		strings.Contains(text, "redirect_uri_mismatch") {
		return nil
	}
	if strings.Contains(text, "invalid_client") {
		return errors.New("google OAuth credentials rejected (client_id or client_secret is wrong)")
	}
	return fmt.Errorf("unexpected response from Google token endpoint (HTTP %d): %s", resp.StatusCode, text)
}
