package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/lapublica/platform/internal/config"
	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
)

type fakeUsers struct {
	users map[string]*domain.User // by email
	pw    string
}

func (f *fakeUsers) Authenticate(_ context.Context, email, password string) (*domain.User, error) {
	u, ok := f.users[email]
	if !ok || password != f.pw {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if !u.Active {
		return nil, apperr.Unauthorized("account is disabled")
	}
	return u, nil
}

func (f *fakeUsers) StaffByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if !u.Role.IsStaff() {
		return nil, apperr.ErrForbidden
	}
	return u, nil
}

func (f *fakeUsers) Get(_ context.Context, _ domain.Actor, id string) (*domain.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func testConfig() config.AuthConfig {
	return config.AuthConfig{CookieName: "lp_session", CookieMaxAge: 3600, LoginPerMinute: 5, AllowedDomain: "lapublica.cat"}
}

func newManager(t *testing.T, store Store) (*Manager, *fakeUsers) {
	t.Helper()
	company := "co1"
	users := &fakeUsers{pw: "secret123", users: map[string]*domain.User{
		"anna@lapublica.cat":  {ID: "u-admin", Email: "anna@lapublica.cat", Name: "Anna", Role: domain.RoleAdmin, Active: true},
		"botiga@example.com":  {ID: "u-co", Email: "botiga@example.com", Name: "Botiga", Role: domain.RoleCompany, CompanyID: &company, Active: true},
		"pere@lapublica.cat":  {ID: "u-emp", Email: "pere@lapublica.cat", Name: "Pere", Role: domain.RoleEmployee, Active: true},
		"baixa@lapublica.cat": {ID: "u-off", Email: "baixa@lapublica.cat", Name: "Baixa", Role: domain.RoleGestor, Active: false},
	}}
	return NewManager(testConfig(), store, users, "https://app.lapublica.cat/"), users
}

func login(m *Manager, email, password, ip string) *httptest.ResponseRecorder {
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	m.HandleLogin(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "lp_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestLogin_StoresSessionInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m, _ := newManager(t, NewRedisStore(rdb))

	rec := login(m, "botiga@example.com", "secret123", "10.0.0.1")
	require.Equal(t, http.StatusOK, rec.Code)

	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)

	key := "lp:session:" + c.Value
	require.True(t, mr.Exists(key))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(key).Seconds(), 5)

	var s Session
	raw, err := mr.Get(key)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.Equal(t, "u-co", s.UserID)
	assert.Equal(t, "co1", s.CompanyID)
	assert.Equal(t, domain.RoleCompany, s.Role)
}

func TestLogin_Rejections(t *testing.T) {
	m, _ := newManager(t, NewMemoryStore())

	rec := login(m, "botiga@example.com", "wrong", "10.0.0.2")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")

	rec = login(m, "baixa@lapublica.cat", "secret123", "10.0.0.3")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = login(m, "", "", "10.0.0.4")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_RateLimitedPerIP(t *testing.T) {
	m, _ := newManager(t, NewMemoryStore())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.limiter.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, login(m, "botiga@example.com", "nope", "10.1.1.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, login(m, "botiga@example.com", "secret123", "10.1.1.1").Code)

	// other clients are unaffected
	assert.Equal(t, http.StatusOK, login(m, "botiga@example.com", "secret123", "10.1.1.2").Code)

	// one token refills every 12s
	now = now.Add(13 * time.Second)
	assert.Equal(t, http.StatusOK, login(m, "botiga@example.com", "secret123", "10.1.1.1").Code)
}

func TestLimiterSweep(t *testing.T) {
	l := newIPLimiter(5)
	now := time.Now()
	l.now = func() time.Time { return now }
	l.allow("a")
	now = now.Add(time.Hour)
	l.allow("b")
	l.sweep(10 * time.Minute)
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "b")
}

func protected(m *Manager, mw ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(actor.UserID))
	})
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return m.RequireSession(h)
}

func TestRequireSession(t *testing.T) {
	store := NewMemoryStore()
	m, _ := newManager(t, store)
	h := protected(m)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.AddCookie(&http.Cookie{Name: "lp_session", Value: "forged"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c := sessionCookie(t, login(m, "pere@lapublica.cat", "secret123", "10.2.0.1"))
	req = httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.AddCookie(c)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-emp", rec.Body.String())
}

func TestRequireSession_Expired(t *testing.T) {
	store := NewMemoryStore()
	m, _ := newManager(t, store)
	c := sessionCookie(t, login(m, "pere@lapublica.cat", "secret123", "10.2.0.2"))

	later := time.Now().Add(2 * time.Hour)
	store.now = func() time.Time { return later }

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	protected(m).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, store.Sweep())
}

func TestRequireSession_DisabledUserLosesAccess(t *testing.T) {
	store := NewMemoryStore()
	m, users := newManager(t, store)
	c := sessionCookie(t, login(m, "anna@lapublica.cat", "secret123", "10.2.0.3"))

	users.users["anna@lapublica.cat"].Active = false

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	protected(m).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	_, err := store.Get(context.Background(), c.Value)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRequireSession_DeletedUserLosesAccess(t *testing.T) {
	store := NewMemoryStore()
	m, users := newManager(t, store)
	c := sessionCookie(t, login(m, "pere@lapublica.cat", "secret123", "10.2.0.4"))

	delete(users.users, "pere@lapublica.cat")

	req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	protected(m).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSession_DemotionAppliesImmediately(t *testing.T) {
	store := NewMemoryStore()
	m, users := newManager(t, store)
	c := sessionCookie(t, login(m, "anna@lapublica.cat", "secret123", "10.2.0.5"))
	h := protected(m, RequireRole(domain.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	company := "co9"
	anna := users.users["anna@lapublica.cat"]
	anna.Role = domain.RoleCompany
	anna.CompanyID = &company

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var actor domain.Actor
	inspect := m.RequireSession(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		actor, _ = ActorFrom(r.Context())
	}))
	inspect.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, domain.RoleCompany, actor.Role)
	assert.Equal(t, "co9", actor.CompanyID)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(domain.RoleAdmin, domain.RoleGestor)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		role domain.Role
		want int
	}{
		{domain.RoleAdmin, http.StatusNoContent},
		{domain.RoleSuperAdmin, http.StatusNoContent},
		{domain.RoleGestor, http.StatusNoContent},
		{domain.RoleCompany, http.StatusForbidden},
		{domain.RoleEmployee, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithSession(req.Context(), &Session{UserID: "x", Role: tc.role}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAndMe(t *testing.T) {
	store := NewMemoryStore()
	m, _ := newManager(t, store)
	c := sessionCookie(t, login(m, "anna@lapublica.cat", "secret123", "10.3.0.1"))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	m.RequireSession(http.HandlerFunc(m.HandleMe)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"anna@lapublica.cat"`)
	assert.NotContains(t, rec.Body.String(), "password")

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(c)
	rec = httptest.NewRecorder()
	m.HandleLogout(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, -1, sessionCookie(t, rec).MaxAge)

	_, err := store.Get(context.Background(), c.Value)
	assert.ErrorIs(t, err, ErrNoSession)
}

type googleStub struct {
	*httptest.Server
	email    string
	verified bool
}

func newGoogleStub(t *testing.T, email string) *googleStub {
	g := &googleStub{email: email, verified: true}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(GoogleUserInfo{ID: "g1", Email: g.email, VerifiedEmail: g.verified})
	})
	g.Server = httptest.NewServer(mux)
	t.Cleanup(g.Close)
	return g
}

func withGoogle(m *Manager, g *googleStub) {
	m.oauth = &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://api.lapublica.cat/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: g.URL + "/auth", TokenURL: g.URL + "/token"},
	}
	m.userinfoURL = g.URL + "/userinfo"
}

func callback(m *Manager, state, cookieState string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state="+state, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: cookieState})
	}
	rec := httptest.NewRecorder()
	m.HandleGoogleCallback(rec, req)
	return rec
}

func TestGoogleLogin_RedirectsWithState(t *testing.T) {
	m, _ := newManager(t, NewMemoryStore())
	withGoogle(m, newGoogleStub(t, "anna@lapublica.cat"))

	rec := httptest.NewRecorder()
	m.HandleGoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "hd=lapublica.cat")
	var state string
	for _, c := range rec.Result().Cookies() {
		if c.Name == stateCookie {
			state = c.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Contains(t, loc, "state="+state)
}

func TestGoogleCallback(t *testing.T) {
	t.Run("staff account", func(t *testing.T) {
		store := NewMemoryStore()
		m, _ := newManager(t, store)
		withGoogle(m, newGoogleStub(t, "anna@lapublica.cat"))

		rec := callback(m, "s1", "s1")
		require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
		assert.Equal(t, "https://app.lapublica.cat/", rec.Header().Get("Location"))
		s, err := store.Get(context.Background(), sessionCookie(t, rec).Value)
		require.NoError(t, err)
		assert.Equal(t, "google", s.Method)
		assert.Equal(t, domain.RoleAdmin, s.Role)
	})

	failures := []struct {
		name   string
		email  string
		state  string
		cookie string
		want   string
	}{
		{"state mismatch", "anna@lapublica.cat", "s1", "other", "invalid_state"},
		{"missing state cookie", "anna@lapublica.cat", "s1", "", "invalid_state"},
		{"foreign domain", "anna@gmail.com", "s1", "s1", "domain_not_allowed"},
		{"not staff", "pere@lapublica.cat", "s1", "s1", "account_not_allowed"},
		{"unknown", "ningu@lapublica.cat", "s1", "s1", "account_not_allowed"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newManager(t, NewMemoryStore())
			withGoogle(m, newGoogleStub(t, tc.email))

			rec := callback(m, tc.state, tc.cookie)
			assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Equal(t, "https://app.lapublica.cat/login?error="+tc.want, rec.Header().Get("Location"))
		})
	}
}

func TestGoogleCallback_NotConfigured(t *testing.T) {
	m, _ := newManager(t, NewMemoryStore())
	assert.Equal(t, http.StatusNotFound, callback(m, "s", "s").Code)
}
