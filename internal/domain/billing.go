package domain

import "time"

// Plan is a subscription tier for companies.
type Plan struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	PeriodDays  int       `json:"period_days"`
	MaxOffers   int       `json:"max_offers"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidPeriod reports whether days is a supported billing period.
func ValidPeriod(days int) bool { return days == 30 || days == 365 }

// BillingEvent records a plan change and the amount charged or credited.
type BillingEvent struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"company_id"`
	FromPlanID    *string   `json:"from_plan_id,omitempty"`
	ToPlanID      string    `json:"to_plan_id"`
	RemainingDays int       `json:"remaining_days"`
	CreditCents   int64     `json:"credit_cents"`
	ChargeCents   int64     `json:"charge_cents"`
	AmountCents   int64     `json:"amount_cents"`
	ActorID       string    `json:"actor_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// PlanQuote is the result of pricing a plan change.
type PlanQuote struct {
	CompanyID      string    `json:"company_id"`
	FromPlanID     *string   `json:"from_plan_id,omitempty"`
	ToPlanID       string    `json:"to_plan_id"`
	RemainingDays  int       `json:"remaining_days"`
	CreditCents    int64     `json:"credit_cents"`
	ChargeCents    int64     `json:"charge_cents"`
	AmountDueCents int64     `json:"amount_due_cents"`
	PeriodStart    time.Time `json:"period_start"`
	RenewsAt       time.Time `json:"renews_at"`
	FullPeriod     bool      `json:"full_period"`
}

// QuotePlanChange prices moving from current (nil when the company has no
// plan) to next at now. renewsAt is the end of the current period.
//
// With no current plan, or a period that has already ended, the full price
// of next is due and a new period starts now. Otherwise the unused part of
// the current period is credited and the same span of next is charged; the
// renewal date does not move.
func QuotePlanChange(companyID string, current *Plan, periodStart, renewsAt *time.Time, next Plan, now time.Time) PlanQuote {
	q := PlanQuote{CompanyID: companyID, ToPlanID: next.ID}
	if current != nil {
		id := current.ID
		q.FromPlanID = &id
	}

	if current == nil || renewsAt == nil || !renewsAt.After(now) || current.PeriodDays <= 0 {
		q.FullPeriod = true
		q.ChargeCents = next.PriceCents
		q.AmountDueCents = next.PriceCents
		q.PeriodStart = now
		q.RenewsAt = now.AddDate(0, 0, next.PeriodDays)
		q.RemainingDays = next.PeriodDays
		return q
	}

	remaining := ceilDays(renewsAt.Sub(now))
	if remaining > current.PeriodDays {
		remaining = current.PeriodDays
	}
	q.RemainingDays = remaining
	q.CreditCents = prorate(current.PriceCents, remaining, current.PeriodDays)
	q.ChargeCents = prorate(next.PriceCents, remaining, next.PeriodDays)
	q.AmountDueCents = q.ChargeCents - q.CreditCents
	if periodStart != nil {
		q.PeriodStart = *periodStart
	}
	q.RenewsAt = *renewsAt
	return q
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	day := 24 * time.Hour
	n := int(d / day)
	if d%day != 0 {
		n++
	}
	return n
}

// prorate returns price*num/den rounded half away from zero.
func prorate(price int64, num, den int) int64 {
	if den <= 0 {
		return 0
	}
	p := price * int64(num)
	d := int64(den)
	q, r := p/d, p%d
	if r < 0 {
		r = -r
	}
	if 2*r >= d {
		if p < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}
