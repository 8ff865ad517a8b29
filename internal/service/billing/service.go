package billing

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound"
)

// Service implements plan management and plan changes.
type Service struct {
	repo     Repository
	notifier outbound.Notifier
	audit    outbound.Auditor
	now      func() time.Time
}

// NewService creates a billing service.
func NewService(repo Repository, notifier outbound.Notifier, audit outbound.Auditor) *Service {
	return &Service{repo: repo, notifier: notifier, audit: audit, now: time.Now}
}

// ListPlans returns active plans; admins also see retired ones.
func (s *Service) ListPlans(ctx context.Context, actor domain.Actor) ([]domain.Plan, error) {
	return s.repo.ListPlans(ctx, actor.IsAdmin())
}

// PlanInput holds the fields for creating a plan.
type PlanInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	PeriodDays  int    `json:"period_days"`
	MaxOffers   int    `json:"max_offers"`
}

// CreatePlan adds a plan. Admin only.
func (s *Service) CreatePlan(ctx context.Context, actor domain.Actor, in PlanInput) (*domain.Plan, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	v := validate.Errors{}
	v.Length("name", in.Name, 2, 80)
	checkPlan(v, in.PriceCents, in.PeriodDays, in.MaxOffers)
	if err := v.Err(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &domain.Plan{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		PeriodDays:  in.PeriodDays,
		MaxOffers:   in.MaxOffers,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreatePlan(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePlan edits a plan. Existing subscriptions keep their renewal date.
func (s *Service) UpdatePlan(ctx context.Context, actor domain.Actor, id string, u PlanFields) (*domain.Plan, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	p, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	price, period, maxOffers := p.PriceCents, p.PeriodDays, p.MaxOffers
	if u.PriceCents != nil {
		price = *u.PriceCents
	}
	if u.PeriodDays != nil {
		period = *u.PeriodDays
	}
	if u.MaxOffers != nil {
		maxOffers = *u.MaxOffers
	}
	v := validate.Errors{}
	if u.Name != nil {
		v.Length("name", *u.Name, 2, 80)
	}
	checkPlan(v, price, period, maxOffers)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePlan(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.GetPlan(ctx, id)
}

func checkPlan(v validate.Errors, price int64, period, maxOffers int) {
	if price < 0 {
		v.Add("price_cents", "must not be negative")
	}
	if !domain.ValidPeriod(period) {
		v.Add("period_days", "must be 30 or 365")
	}
	if maxOffers < 0 {
		v.Add("max_offers", "must not be negative")
	}
}

func (s *Service) authorize(actor domain.Actor, companyID string) error {
	if actor.IsAdmin() || actor.ActsForCompany(companyID) {
		return nil
	}
	return ErrForbidden
}

// PreviewChange prices moving companyID onto planID without applying it.
func (s *Service) PreviewChange(ctx context.Context, actor domain.Actor, companyID, planID string) (domain.PlanQuote, error) {
	if err := s.authorize(actor, companyID); err != nil {
		return domain.PlanQuote{}, err
	}
	return s.quote(ctx, companyID, planID, s.now().UTC())
}

func (s *Service) quote(ctx context.Context, companyID, planID string, now time.Time) (domain.PlanQuote, error) {
	c, err := s.repo.Company(ctx, companyID)
	if err != nil {
		return domain.PlanQuote{}, err
	}
	next, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return domain.PlanQuote{}, err
	}
	if !next.Active {
		return domain.PlanQuote{}, ErrPlanInactive
	}

	var current *domain.Plan
	if c.PlanID != nil {
		if *c.PlanID == planID {
			return domain.PlanQuote{}, ErrSamePlan
		}
		current, err = s.repo.GetPlan(ctx, *c.PlanID)
		if err != nil {
			return domain.PlanQuote{}, err
		}
	}
	return domain.QuotePlanChange(companyID, current, c.PlanStartedAt, c.PlanRenewsAt, *next, now), nil
}

// ApplyChange prices and applies a plan change in one transaction, then
// notifies the company's gestor.
func (s *Service) ApplyChange(ctx context.Context, actor domain.Actor, companyID, planID string) (*domain.BillingEvent, error) {
	if err := s.authorize(actor, companyID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	q, err := s.quote(ctx, companyID, planID, now)
	if err != nil {
		return nil, err
	}

	ev := &domain.BillingEvent{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		FromPlanID:    q.FromPlanID,
		ToPlanID:      q.ToPlanID,
		RemainingDays: q.RemainingDays,
		CreditCents:   q.CreditCents,
		ChargeCents:   q.ChargeCents,
		AmountCents:   q.AmountDueCents,
		ActorID:       actor.UserID,
		CreatedAt:     now,
	}
	if err := s.repo.ApplyPlanChange(ctx, q, ev); err != nil {
		return nil, err
	}

	from := ""
	if q.FromPlanID != nil {
		from = *q.FromPlanID
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityCompany,
		EntityID: companyID,
		Action:   "plan_changed",
		ActorID:  actor.UserID,
		Details: map[string]string{
			"from_plan_id": from,
			"to_plan_id":   planID,
			"amount_cents": strconv.FormatInt(q.AmountDueCents, 10),
		},
	})

	if c, err := s.repo.Company(ctx, companyID); err == nil && c.HasGestor() {
		if err := s.notifier.Notify(ctx, *c.GestorID, outbound.Note{
			Type:     domain.NotifyPlanChanged,
			Title:    c.Name + " ha canviat de pla",
			Link:     "/companies/" + companyID,
			Priority: domain.PriorityNormal,
		}); err != nil {
			logger.Warn("billing: notify gestor failed", "company_id", companyID, "error", err)
		}
	}
	return ev, nil
}

// Events returns the billing history of a company.
func (s *Service) Events(ctx context.Context, actor domain.Actor, companyID string) ([]domain.BillingEvent, error) {
	if err := s.authorize(actor, companyID); err != nil {
		return nil, err
	}
	return s.repo.Events(ctx, companyID, 100)
}
