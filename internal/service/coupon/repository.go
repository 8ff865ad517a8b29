package coupon

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for coupons.
type Repository interface {
	// Offer returns the offer joined with its company status.
	Offer(ctx context.Context, offerID string) (*domain.Offer, error)

	// ActiveFor returns the ACTIVE coupon of userID for offerID, expired
	// or not. Returns ErrNotFound if there is none.
	ActiveFor(ctx context.Context, offerID, userID string) (*domain.Coupon, error)

	// Insert stores c. Returns ErrCodeTaken or ErrDuplicateActive on the
	// matching unique index violation.
	Insert(ctx context.Context, c *domain.Coupon) error

	Get(ctx context.Context, id string) (*domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	List(ctx context.Context, f ListFilter) ([]domain.Coupon, int, error)

	// Redeem atomically moves an ACTIVE, unexpired coupon to REDEEMED.
	// Returns ErrNotActive when the condition does not hold.
	Redeem(ctx context.Context, id, redeemedBy string, now time.Time) (*domain.Coupon, error)

	// SetStatus moves an ACTIVE coupon to status. Returns ErrNotActive if
	// it is no longer ACTIVE.
	SetStatus(ctx context.Context, id string, status domain.CouponStatus) error

	// ExpireDue marks every ACTIVE coupon with expires_at <= now as EXPIRED.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Users resolves recipients for the coupon email.
type Users interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// ListFilter controls pagination and filtering for coupon lists.
type ListFilter struct {
	UserID    string
	CompanyID string
	Status    domain.CouponStatus
	Limit     int
	Offset    int
}
