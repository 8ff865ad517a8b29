package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound/outboundtest"
)

type memRepo struct {
	mu        sync.Mutex
	plans     map[string]*domain.Plan
	companies map[string]*domain.Company
	events    []domain.BillingEvent
}

func newMemRepo() *memRepo {
	return &memRepo{plans: map[string]*domain.Plan{}, companies: map[string]*domain.Company{}}
}

func (m *memRepo) ListPlans(_ context.Context, includeInactive bool) ([]domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Plan
	for _, p := range m.plans {
		if p.Active || includeInactive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memRepo) GetPlan(_ context.Context, id string) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) CreatePlan(_ context.Context, p *domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *memRepo) UpdatePlan(_ context.Context, id string, u PlanFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return ErrPlanNotFound
	}
	if u.PriceCents != nil {
		p.PriceCents = *u.PriceCents
	}
	if u.Active != nil {
		p.Active = *u.Active
	}
	return nil
}

func (m *memRepo) Company(_ context.Context, id string) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, ErrCompanyNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) ApplyPlanChange(_ context.Context, q domain.PlanQuote, ev *domain.BillingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.companies[q.CompanyID]
	if (c.PlanID == nil) != (q.FromPlanID == nil) || (c.PlanID != nil && *c.PlanID != *q.FromPlanID) {
		return ErrPlanChanged
	}
	to := q.ToPlanID
	start, renews := q.PeriodStart, q.RenewsAt
	c.PlanID, c.PlanStartedAt, c.PlanRenewsAt = &to, &start, &renews
	m.events = append(m.events, *ev)
	return nil
}

func (m *memRepo) Events(_ context.Context, companyID string, _ int) ([]domain.BillingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.BillingEvent
	for _, e := range m.events {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, nil
}

var (
	admin = domain.Actor{UserID: "admin", Role: domain.RoleAdmin}
	clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

func newFixture() (*Service, *memRepo, *outboundtest.Recorder) {
	repo := newMemRepo()
	repo.plans["basic"] = &domain.Plan{ID: "basic", Name: "Bàsic", PriceCents: 3000, PeriodDays: 30, MaxOffers: 3, Active: true}
	repo.plans["pro"] = &domain.Plan{ID: "pro", Name: "Pro", PriceCents: 9000, PeriodDays: 30, MaxOffers: 20, Active: true}
	repo.plans["legacy"] = &domain.Plan{ID: "legacy", Name: "Legacy", PriceCents: 1000, PeriodDays: 30}
	gestor := "g1"
	repo.companies["c1"] = &domain.Company{ID: "c1", Name: "Cafès Roure", GestorID: &gestor}
	rec := outboundtest.New()
	svc := NewService(repo, rec, rec)
	svc.now = func() time.Time { return clock }
	return svc, repo, rec
}

func TestApplyChange_FirstPlanChargesFullPrice(t *testing.T) {
	svc, repo, rec := newFixture()
	owner := domain.Actor{UserID: "cu", Role: domain.RoleCompany, CompanyID: "c1"}

	ev, err := svc.ApplyChange(context.Background(), owner, "c1", "basic")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), ev.AmountCents)
	assert.Nil(t, ev.FromPlanID)

	c := repo.companies["c1"]
	assert.Equal(t, "basic", *c.PlanID)
	assert.Equal(t, clock.AddDate(0, 0, 30), *c.PlanRenewsAt)

	assert.Equal(t, []string{"plan_changed"}, rec.Actions())
	require.Len(t, rec.NotesFor("g1"), 1)
	assert.Equal(t, domain.NotifyPlanChanged, rec.NotesFor("g1")[0].Type)
}

func TestApplyChange_ProratesMidPeriod(t *testing.T) {
	svc, repo, _ := newFixture()
	ctx := context.Background()
	_, err := svc.ApplyChange(ctx, admin, "c1", "basic")
	require.NoError(t, err)

	svc.now = func() time.Time { return clock.AddDate(0, 0, 20) }
	q, err := svc.PreviewChange(ctx, admin, "c1", "pro")
	require.NoError(t, err)
	assert.Equal(t, 10, q.RemainingDays)
	assert.Equal(t, int64(1000), q.CreditCents)
	assert.Equal(t, int64(3000), q.ChargeCents)
	assert.Equal(t, int64(2000), q.AmountDueCents)

	ev, err := svc.ApplyChange(ctx, admin, "c1", "pro")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ev.AmountCents)
	assert.Equal(t, clock.AddDate(0, 0, 30), *repo.companies["c1"].PlanRenewsAt, "renewal date unchanged")

	events, err := svc.Events(ctx, admin, "c1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestPreviewChange_Errors(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()
	_, err := svc.ApplyChange(ctx, admin, "c1", "basic")
	require.NoError(t, err)

	_, err = svc.PreviewChange(ctx, admin, "c1", "basic")
	assert.ErrorIs(t, err, ErrSamePlan)
	_, err = svc.PreviewChange(ctx, admin, "c1", "legacy")
	assert.ErrorIs(t, err, ErrPlanInactive)
	_, err = svc.PreviewChange(ctx, admin, "c1", "gold")
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = svc.PreviewChange(ctx, admin, "nope", "pro")
	assert.ErrorIs(t, err, ErrCompanyNotFound)

	other := domain.Actor{UserID: "x", Role: domain.RoleCompany, CompanyID: "c2"}
	_, err = svc.PreviewChange(ctx, other, "c1", "pro")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.PreviewChange(ctx, domain.Actor{UserID: "g1", Role: domain.RoleGestor}, "c1", "pro")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPlans(t *testing.T) {
	svc, _, _ := newFixture()
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, admin, PlanInput{Name: "Anual", PriceCents: 30000, PeriodDays: 90})
	var fields validate.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "period_days")

	p, err := svc.CreatePlan(ctx, admin, PlanInput{Name: "Anual", PriceCents: 30000, PeriodDays: 365, MaxOffers: 10})
	require.NoError(t, err)
	assert.True(t, p.Active)

	employee := domain.Actor{UserID: "e", Role: domain.RoleEmployee}
	visible, err := svc.ListPlans(ctx, employee)
	require.NoError(t, err)
	assert.Len(t, visible, 3)
	all, err := svc.ListPlans(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	price := int64(-1)
	_, err = svc.UpdatePlan(ctx, admin, p.ID, PlanFields{PriceCents: &price})
	require.ErrorAs(t, err, &fields)

	_, err = svc.CreatePlan(ctx, employee, PlanInput{})
	assert.ErrorIs(t, err, ErrForbidden)
}
