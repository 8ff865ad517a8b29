package billing

import (
	"context"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for plans and plan changes.
type Repository interface {
	ListPlans(ctx context.Context, includeInactive bool) ([]domain.Plan, error)
	GetPlan(ctx context.Context, id string) (*domain.Plan, error)
	CreatePlan(ctx context.Context, p *domain.Plan) error
	UpdatePlan(ctx context.Context, id string, u PlanFields) error

	// Company returns the billing-relevant company row.
	Company(ctx context.Context, id string) (*domain.Company, error)

	// ApplyPlanChange sets the company's plan and period from q and inserts
	// ev in one transaction. The update is conditional on the company still
	// being on q.FromPlanID; otherwise ErrPlanChanged.
	ApplyPlanChange(ctx context.Context, q domain.PlanQuote, ev *domain.BillingEvent) error

	// Events lists billing events for a company, newest first.
	Events(ctx context.Context, companyID string, limit int) ([]domain.BillingEvent, error)
}

// PlanFields holds the mutable fields for a plan update.
type PlanFields struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	PeriodDays  *int    `json:"period_days"`
	MaxOffers   *int    `json:"max_offers"`
	Active      *bool   `json:"active"`
}
