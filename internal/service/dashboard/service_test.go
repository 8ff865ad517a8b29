package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/platform/internal/domain"
)

type countingRepo struct {
	mu    sync.Mutex
	calls map[string]int
	since time.Time
}

func (r *countingRepo) hit(k string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[k]++
}

func (r *countingRepo) AdminStats(_ context.Context, since time.Time) (*AdminStats, error) {
	r.hit("admin")
	r.since = since
	return &AdminStats{
		UsersByRole:  map[domain.Role]int{domain.RoleEmployee: 120},
		LeadsByStage: map[domain.LeadStage]int{domain.StageNew: 4},
	}, nil
}

func (r *countingRepo) GestorStats(_ context.Context, gestorID string, _ time.Time) (*GestorStats, error) {
	r.hit("gestor:" + gestorID)
	return &GestorStats{Companies: 7}, nil
}

func (r *countingRepo) CompanyStats(_ context.Context, companyID string, _ time.Time) (*CompanyStats, error) {
	r.hit("company:" + companyID)
	return &CompanyStats{ActiveOffers: 2}, nil
}

// jsonCache mimics the Redis cache by round-tripping through JSON.
type jsonCache struct {
	data    map[string][]byte
	failGet bool
}

func (c *jsonCache) Get(_ context.Context, key string, dest any) (bool, error) {
	if c.failGet {
		return false, errors.New("connection refused")
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *jsonCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

var (
	clock   = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	admin   = domain.Actor{UserID: "adm", Role: domain.RoleAdmin}
	gestor  = domain.Actor{UserID: "g1", Role: domain.RoleGestor}
	company = domain.Actor{UserID: "cu", Role: domain.RoleCompany, CompanyID: "c1"}
)

func newTestService(cache Cache) (*Service, *countingRepo) {
	repo := &countingRepo{calls: map[string]int{}}
	svc := NewService(repo, cache, time.Minute)
	svc.now = func() time.Time { return clock }
	return svc, repo
}

func TestAdmin_CachesResult(t *testing.T) {
	svc, repo := newTestService(&jsonCache{data: map[string][]byte{}})
	ctx := context.Background()

	first, err := svc.Admin(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 120, first.UsersByRole[domain.RoleEmployee])
	assert.Equal(t, clock, first.GeneratedAt)
	assert.Equal(t, clock.Add(-30*24*time.Hour), repo.since)

	second, err := svc.Admin(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 4, second.LeadsByStage[domain.StageNew])
	assert.Equal(t, 1, repo.calls["admin"])

	_, err = svc.Admin(ctx, gestor)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCacheFailureFallsThrough(t *testing.T) {
	svc, repo := newTestService(&jsonCache{data: map[string][]byte{}, failGet: true})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := svc.Admin(ctx, admin)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, repo.calls["admin"])
}

func TestGestorScope(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()

	st, err := svc.Gestor(ctx, gestor, "other")
	require.NoError(t, err)
	assert.Equal(t, 7, st.Companies)
	assert.Equal(t, 1, repo.calls["gestor:g1"])
	assert.Zero(t, repo.calls["gestor:other"])

	_, err = svc.Gestor(ctx, admin, "g2")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls["gestor:g2"])

	_, err = svc.Gestor(ctx, admin, "")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Gestor(ctx, company, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCompanyScope(t *testing.T) {
	svc, repo := newTestService(nil)
	ctx := context.Background()

	st, err := svc.Company(ctx, company, "")
	require.NoError(t, err)
	assert.Equal(t, 2, st.ActiveOffers)
	assert.Equal(t, 1, repo.calls["company:c1"])

	_, err = svc.Company(ctx, company, "c2")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Company(ctx, gestor, "c2")
	assert.NoError(t, err)
	_, err = svc.Company(ctx, domain.Actor{UserID: "e", Role: domain.RoleEmployee}, "c1")
	assert.ErrorIs(t, err, ErrForbidden)
}
