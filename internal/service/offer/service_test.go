package offer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/validate"
)

type memRepo struct {
	mu        sync.Mutex
	offers    map[string]*domain.Offer
	limits    map[string]int // company -> plan max_offers
	companies map[string]domain.CompanyStatus
}

func newMemRepo() *memRepo {
	return &memRepo{
		offers:    map[string]*domain.Offer{},
		limits:    map[string]int{"c1": 2, "c2": 5},
		companies: map[string]domain.CompanyStatus{"c1": domain.CompanyActive, "c2": domain.CompanyPending},
	}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.CompanyStatus = m.companies[o.CompanyID]
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]domain.Offer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Offer
	for _, o := range m.offers {
		cp := *o
		cp.CompanyStatus = m.companies[o.CompanyID]
		if f.CompanyID != "" && o.CompanyID != f.CompanyID {
			continue
		}
		if f.PublicOnly && !cp.Public(time.Now()) {
			continue
		}
		out = append(out, cp)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, o *domain.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := 0
	for _, existing := range m.offers {
		if existing.CompanyID == o.CompanyID && existing.Active {
			active++
		}
	}
	if active >= m.limits[o.CompanyID] {
		return ErrOfferLimit
	}
	cp := *o
	m.offers[o.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, u UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return ErrNotFound
	}
	if u.Title != nil {
		o.Title = *u.Title
	}
	return nil
}

func (m *memRepo) Deactivate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return ErrNotFound
	}
	o.Active = false
	return nil
}

var (
	owner    = domain.Actor{UserID: "cu1", Role: domain.RoleCompany, CompanyID: "c1"}
	employee = domain.Actor{UserID: "e1", Role: domain.RoleEmployee}
)

func validInput() CreateInput {
	return CreateInput{Title: "20% en ulleres", Description: "Descompte per a personal públic", DiscountLabel: "-20%"}
}

func TestCreate_DefaultsAndOwnership(t *testing.T) {
	svc := NewService(newMemRepo())
	o, err := svc.Create(context.Background(), owner, validInput())
	require.NoError(t, err)
	assert.Equal(t, "c1", o.CompanyID)
	assert.Equal(t, 30, o.CouponValidityDays)
	assert.True(t, o.Active)

	in := validInput()
	in.CompanyID = "c2"
	_, err = svc.Create(context.Background(), owner, in)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMemRepo())
	past := time.Now().Add(-time.Hour)
	_, err := svc.Create(context.Background(), owner, CreateInput{Title: "x", CouponValidityDays: 400, ExpiresAt: &past})
	var fields validate.Errors
	require.ErrorAs(t, err, &fields)
	for _, f := range []string{"title", "description", "discount_label", "coupon_validity_days", "expires_at"} {
		assert.Contains(t, fields, f)
	}
}

func TestCreate_PlanLimit(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	first, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, validInput())
	require.NoError(t, err)

	_, err = svc.Create(ctx, owner, validInput())
	assert.ErrorIs(t, err, ErrOfferLimit)

	require.NoError(t, svc.Deactivate(ctx, owner, first.ID))
	_, err = svc.Create(ctx, owner, validInput())
	assert.NoError(t, err)
}

func TestVisibilityForEmployees(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()
	admin := domain.Actor{UserID: "a", Role: domain.RoleAdmin}

	visible, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)
	in := validInput()
	in.CompanyID = "c2"
	hidden, err := svc.Create(ctx, admin, in)
	require.NoError(t, err)

	list, _, err := svc.List(ctx, employee, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, visible.ID, list[0].ID)

	_, err = svc.Get(ctx, employee, hidden.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get(ctx, admin, hidden.ID)
	assert.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, owner, visible.ID))
	own, _, err := svc.List(ctx, owner, ListFilter{CompanyID: "c1"})
	require.NoError(t, err)
	assert.Len(t, own, 1, "company sees its inactive offers")
	_, err = svc.Get(ctx, employee, visible.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()
	o, err := svc.Create(ctx, owner, validInput())
	require.NoError(t, err)

	title := "25% en ulleres"
	got, err := svc.Update(ctx, owner, o.ID, UpdateFields{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, got.Title)

	_, err = svc.Update(ctx, employee, o.ID, UpdateFields{Title: &title})
	assert.ErrorIs(t, err, ErrForbidden)

	days := 0
	_, err = svc.Update(ctx, owner, o.ID, UpdateFields{CouponValidityDays: &days})
	var fields validate.Errors
	assert.ErrorAs(t, err, &fields)
}
