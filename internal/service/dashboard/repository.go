package dashboard

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository runs the aggregate queries behind each dashboard.
type Repository interface {
	AdminStats(ctx context.Context, since time.Time) (*AdminStats, error)
	GestorStats(ctx context.Context, gestorID string, taskHorizon time.Time) (*GestorStats, error)
	CompanyStats(ctx context.Context, companyID string, since time.Time) (*CompanyStats, error)
}

// Cache stores JSON-encodable values for a short time. Get reports false
// on a miss.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// AdminStats is the platform-wide overview.
type AdminStats struct {
	UsersByRole        map[domain.Role]int          `json:"users_by_role"`
	CompaniesByStatus  map[domain.CompanyStatus]int `json:"companies_by_status"`
	PendingGroupOffers int                          `json:"pending_group_offers"`
	PendingContent     int                          `json:"pending_content"`
	CouponsIssued      int                          `json:"coupons_issued_30d"`
	CouponsRedeemed    int                          `json:"coupons_redeemed_30d"`
	LeadsByStage       map[domain.LeadStage]int     `json:"leads_by_stage"`
	GeneratedAt        time.Time                    `json:"generated_at"`
}

// GestorStats summarizes one gestor's workload.
type GestorStats struct {
	Companies           int                      `json:"companies"`
	LeadsByStage        map[domain.LeadStage]int `json:"leads_by_stage"`
	TasksDueSoon        int                      `json:"tasks_due_7d"`
	GroupOffersAwaiting int                      `json:"group_offers_awaiting"`
	UnreadNotifications int                      `json:"unread_notifications"`
	GeneratedAt         time.Time                `json:"generated_at"`
}

// CompanyStats summarizes one company's activity.
type CompanyStats struct {
	ActiveOffers        int                             `json:"active_offers"`
	CouponsIssued       int                             `json:"coupons_issued_30d"`
	CouponsRedeemed     int                             `json:"coupons_redeemed_30d"`
	GroupOffersByStatus map[domain.GroupOfferStatus]int `json:"group_offers_by_status"`
	GeneratedAt         time.Time                       `json:"generated_at"`
}
