package dashboard

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/pkg/logger"
)

// ErrForbidden is returned when the actor may not see a dashboard.
var ErrForbidden = apperr.ErrForbidden

const (
	statsWindow = 30 * 24 * time.Hour
	taskWindow  = 7 * 24 * time.Hour
)

// Service serves cached dashboard figures.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a dashboard service. A nil cache disables caching.
func NewService(repo Repository, cache Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, now: time.Now}
}

// cached loads key from the cache into dest, or computes it with load and
// stores the result. Cache errors fall through to load.
func cached[T any](ctx context.Context, s *Service, key string, load func() (*T, error)) (*T, error) {
	if s.cache != nil && s.ttl > 0 {
		var hit T
		ok, err := s.cache.Get(ctx, key, &hit)
		if err != nil {
			logger.Warn("dashboard: cache read failed", "key", key, "error", err)
		} else if ok {
			return &hit, nil
		}
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
			logger.Warn("dashboard: cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}

// Admin returns the platform overview. Admin only.
func (s *Service) Admin(ctx context.Context, actor domain.Actor) (*AdminStats, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return cached(ctx, s, "dashboard:admin", func() (*AdminStats, error) {
		now := s.now().UTC()
		st, err := s.repo.AdminStats(ctx, now.Add(-statsWindow))
		if err != nil {
			return nil, err
		}
		st.GeneratedAt = now
		return st, nil
	})
}

// Gestor returns a gestor's workload. Gestors see their own; admins may
// pass any gestor.
func (s *Service) Gestor(ctx context.Context, actor domain.Actor, gestorID string) (*GestorStats, error) {
	switch {
	case actor.IsGestor():
		gestorID = actor.UserID
	case actor.IsAdmin() && gestorID != "":
	default:
		return nil, ErrForbidden
	}
	return cached(ctx, s, "dashboard:gestor:"+gestorID, func() (*GestorStats, error) {
		now := s.now().UTC()
		st, err := s.repo.GestorStats(ctx, gestorID, now.Add(taskWindow))
		if err != nil {
			return nil, err
		}
		st.GeneratedAt = now
		return st, nil
	})
}

// Company returns a company's activity to its users and to staff.
func (s *Service) Company(ctx context.Context, actor domain.Actor, companyID string) (*CompanyStats, error) {
	if companyID == "" && actor.Role == domain.RoleCompany {
		companyID = actor.CompanyID
	}
	if companyID == "" || (!actor.IsStaff() && !actor.ActsForCompany(companyID)) {
		return nil, ErrForbidden
	}
	return cached(ctx, s, "dashboard:company:"+companyID, func() (*CompanyStats, error) {
		now := s.now().UTC()
		st, err := s.repo.CompanyStats(ctx, companyID, now.Add(-statsWindow))
		if err != nil {
			return nil, err
		}
		st.GeneratedAt = now
		return st, nil
	})
}
