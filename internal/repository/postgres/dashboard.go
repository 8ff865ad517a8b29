package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/dashboard"
)

// DashboardRepo implements dashboard.Repository against PostgreSQL.
type DashboardRepo struct{ db *sql.DB }

// NewDashboardRepo creates a Postgres-backed dashboard repository.
func NewDashboardRepo(db *sql.DB) *DashboardRepo { return &DashboardRepo{db: db} }

// countBy runs a two-column (key, count) query into a map.
func countBy[K ~string](ctx context.Context, db *sql.DB, q string, args ...any) (map[K]int, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[K]int)
	for rows.Next() {
		var (
			k K
			n int
		)
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

func (r *DashboardRepo) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

func (r *DashboardRepo) AdminStats(ctx context.Context, since time.Time) (*dashboard.AdminStats, error) {
	var (
		st  dashboard.AdminStats
		err error
	)
	if st.UsersByRole, err = countBy[domain.Role](ctx, r.db,
		`SELECT role, COUNT(*) FROM users WHERE active GROUP BY role`); err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}
	if st.CompaniesByStatus, err = countBy[domain.CompanyStatus](ctx, r.db,
		`SELECT status, COUNT(*) FROM companies GROUP BY status`); err != nil {
		return nil, fmt.Errorf("companies by status: %w", err)
	}
	if st.LeadsByStage, err = countBy[domain.LeadStage](ctx, r.db,
		`SELECT stage, COUNT(*) FROM leads GROUP BY stage`); err != nil {
		return nil, fmt.Errorf("leads by stage: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM group_offer_requests WHERE status IN ('PENDING','IN_REVIEW')),
			(SELECT COUNT(*) FROM content WHERE status = 'PENDING'),
			(SELECT COUNT(*) FROM coupons WHERE created_at >= $1),
			(SELECT COUNT(*) FROM coupons WHERE redeemed_at >= $1)
	`, since).Scan(&st.PendingGroupOffers, &st.PendingContent, &st.CouponsIssued, &st.CouponsRedeemed)
	if err != nil {
		return nil, fmt.Errorf("admin counters: %w", err)
	}
	return &st, nil
}

func (r *DashboardRepo) GestorStats(ctx context.Context, gestorID string, taskHorizon time.Time) (*dashboard.GestorStats, error) {
	var (
		st  dashboard.GestorStats
		err error
	)
	if st.LeadsByStage, err = countBy[domain.LeadStage](ctx, r.db,
		`SELECT stage, COUNT(*) FROM leads WHERE gestor_id = $1 GROUP BY stage`, gestorID); err != nil {
		return nil, fmt.Errorf("gestor leads: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM companies WHERE gestor_id = $1),
			(SELECT COUNT(*) FROM lead_tasks WHERE assignee_id = $1 AND status = 'PENDING' AND due_at <= $2),
			(SELECT COUNT(*) FROM group_offer_requests WHERE gestor_id = $1 AND status IN ('PENDING','IN_REVIEW')),
			(SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL)
	`, gestorID, taskHorizon).Scan(&st.Companies, &st.TasksDueSoon, &st.GroupOffersAwaiting, &st.UnreadNotifications)
	if err != nil {
		return nil, fmt.Errorf("gestor counters: %w", err)
	}
	return &st, nil
}

func (r *DashboardRepo) CompanyStats(ctx context.Context, companyID string, since time.Time) (*dashboard.CompanyStats, error) {
	var (
		st  dashboard.CompanyStats
		err error
	)
	if st.GroupOffersByStatus, err = countBy[domain.GroupOfferStatus](ctx, r.db,
		`SELECT status, COUNT(*) FROM group_offer_requests WHERE company_id = $1 GROUP BY status`, companyID); err != nil {
		return nil, fmt.Errorf("company group offers: %w", err)
	}
	if st.ActiveOffers, err = r.count(ctx, `
		SELECT COUNT(*) FROM offers
		WHERE company_id = $1 AND active AND (expires_at IS NULL OR expires_at > NOW())
	`, companyID); err != nil {
		return nil, fmt.Errorf("company offers: %w", err)
	}
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*) FILTER (WHERE redeemed_at >= $2)
		FROM coupons WHERE company_id = $1
	`, companyID, since).Scan(&st.CouponsIssued, &st.CouponsRedeemed)
	if err != nil {
		return nil, fmt.Errorf("company coupons: %w", err)
	}
	return &st, nil
}
