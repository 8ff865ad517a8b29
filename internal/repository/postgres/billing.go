package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/billing"
)

// BillingRepo implements billing.Repository against PostgreSQL.
type BillingRepo struct{ db *sql.DB }

// NewBillingRepo creates a Postgres-backed plan and billing repository.
func NewBillingRepo(db *sql.DB) *BillingRepo { return &BillingRepo{db: db} }

const planColumns = `id, name, description, price_cents, period_days, max_offers, active, created_at, updated_at`

func scanPlan(s rowScanner) (*domain.Plan, error) {
	var p domain.Plan
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.PeriodDays, &p.MaxOffers,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *BillingRepo) ListPlans(ctx context.Context, includeInactive bool) ([]domain.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM plans`
	if !includeInactive {
		q += ` WHERE active`
	}
	q += ` ORDER BY price_cents, name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *BillingRepo) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	p, err := scanPlan(r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (r *BillingRepo) CreatePlan(ctx context.Context, p *domain.Plan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, description, price_cents, period_days, max_offers, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, p.ID, p.Name, p.Description, p.PriceCents, p.PeriodDays, p.MaxOffers, p.Active, p.CreatedAt)
	if _, ok := uniqueViolation(err); ok {
		return billing.ErrPlanNameTaken
	}
	if err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

func (r *BillingRepo) UpdatePlan(ctx context.Context, id string, f billing.PlanFields) error {
	var u updates
	if f.Name != nil {
		u.add("name", *f.Name)
	}
	if f.Description != nil {
		u.add("description", *f.Description)
	}
	if f.PriceCents != nil {
		u.add("price_cents", *f.PriceCents)
	}
	if f.PeriodDays != nil {
		u.add("period_days", *f.PeriodDays)
	}
	if f.MaxOffers != nil {
		u.add("max_offers", *f.MaxOffers)
	}
	if f.Active != nil {
		u.add("active", *f.Active)
	}
	if u.empty() {
		return nil
	}
	err := u.exec(ctx, r.db, "plans", id, billing.ErrPlanNotFound)
	if _, ok := uniqueViolation(err); ok {
		return billing.ErrPlanNameTaken
	}
	if err != nil && !errors.Is(err, billing.ErrPlanNotFound) {
		return fmt.Errorf("update plan: %w", err)
	}
	return err
}

func (r *BillingRepo) Company(ctx context.Context, id string) (*domain.Company, error) {
	return getCompany(ctx, r.db, id, billing.ErrCompanyNotFound)
}

func (r *BillingRepo) ApplyPlanChange(ctx context.Context, q domain.PlanQuote, ev *domain.BillingEvent) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE companies
			SET plan_id = $1, plan_started_at = $2, plan_renews_at = $3, updated_at = NOW()
			WHERE id = $4 AND plan_id IS NOT DISTINCT FROM $5
		`, q.ToPlanID, q.PeriodStart, q.RenewsAt, q.CompanyID, nullStringPtr(q.FromPlanID))
		if err != nil {
			return fmt.Errorf("update company plan: %w", err)
		}
		if err := affected(res, billing.ErrPlanChanged); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO billing_events
				(id, company_id, from_plan_id, to_plan_id, remaining_days, credit_cents,
				 charge_cents, amount_cents, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, ev.ID, ev.CompanyID, nullStringPtr(ev.FromPlanID), ev.ToPlanID, ev.RemainingDays,
			ev.CreditCents, ev.ChargeCents, ev.AmountCents, ev.ActorID, ev.CreatedAt)
		if err != nil {
			return writeErr("insert billing event", err)
		}
		return nil
	})
}

func (r *BillingRepo) Events(ctx context.Context, companyID string, limit int) ([]domain.BillingEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, from_plan_id, to_plan_id, remaining_days, credit_cents,
		       charge_cents, amount_cents, actor_id, created_at
		FROM billing_events
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, companyID, pageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list billing events: %w", err)
	}
	defer rows.Close()

	var out []domain.BillingEvent
	for rows.Next() {
		var (
			ev   domain.BillingEvent
			from sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.CompanyID, &from, &ev.ToPlanID, &ev.RemainingDays,
			&ev.CreditCents, &ev.ChargeCents, &ev.AmountCents, &ev.ActorID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan billing event: %w", err)
		}
		ev.FromPlanID = strPtr(from)
		out = append(out, ev)
	}
	return out, rows.Err()
}
