package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/pkg/logger"
)

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFrom returns the session attached by RequireSession, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// ActorFrom returns the acting user of the request. ok is false outside
// RequireSession.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	s := SessionFrom(ctx)
	if s == nil {
		return domain.Actor{}, false
	}
	return s.Actor(), true
}

// RequireSession rejects requests without a valid session cookie with 401.
// The account is reloaded on every request: disabled or deleted users lose
// access at once and role or company changes apply to the next request.
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(m.cfg.CookieName)
		if err != nil || c.Value == "" {
			httputil.Unauthorized(w)
			return
		}
		s, err := m.store.Get(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				logger.Error("auth: session lookup failed", "error", err)
			}
			httputil.Unauthorized(w)
			return
		}
		if m.now().After(s.ExpiresAt) {
			_ = m.store.Delete(r.Context(), s.ID)
			httputil.Unauthorized(w)
			return
		}
		if m.users != nil {
			ok, err := m.refresh(r.Context(), s)
			if err != nil {
				httputil.InternalError(w, err)
				return
			}
			if !ok {
				_ = m.store.Delete(r.Context(), s.ID)
				m.clearCookie(w, m.cfg.CookieName)
				httputil.Unauthorized(w)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// refresh copies the current role and company of the session's user onto
// s. It reports false when the account is gone or disabled.
func (m *Manager) refresh(ctx context.Context, s *Session) (bool, error) {
	u, err := m.users.Get(ctx, s.Actor(), s.UserID)
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("reload session user: %w", err)
	case !u.Active:
		logger.Info("auth: session of disabled user rejected", "user_id", u.ID)
		return false, nil
	}
	s.Role = u.Role
	s.Email = u.Email
	s.Name = u.Name
	s.CompanyID = ""
	if u.CompanyID != nil {
		s.CompanyID = *u.CompanyID
	}
	return true, nil
}

// RequireRole allows only the listed roles; SUPER_ADMIN passes wherever
// ADMIN does. Responds 401 without a session and 403 for other roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFrom(r.Context())
			if s == nil {
				httputil.Unauthorized(w)
				return
			}
			for _, role := range roles {
				if s.Role == role || (role == domain.RoleAdmin && s.Role == domain.RoleSuperAdmin) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.Forbidden(w)
		})
	}
}
