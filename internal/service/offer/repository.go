package offer

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for offers.
type Repository interface {
	// Get returns an offer joined with its company's name and status.
	Get(ctx context.Context, id string) (*domain.Offer, error)

	// List returns offers matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Offer, int, error)

	// Create inserts o only while the company has fewer active offers than
	// its plan allows. Returns ErrOfferLimit otherwise.
	Create(ctx context.Context, o *domain.Offer) error

	// Update applies the non-nil fields.
	Update(ctx context.Context, id string, u UpdateFields) error

	Deactivate(ctx context.Context, id string) error
}

// ListFilter controls pagination and filtering for offer lists.
type ListFilter struct {
	CompanyID string
	Category  string
	Search    string
	// PublicOnly restricts to active, unexpired offers of ACTIVE companies.
	PublicOnly bool
	Limit      int
	Offset     int
}

// UpdateFields holds the mutable fields for an offer update.
type UpdateFields struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	DiscountLabel      *string    `json:"discount_label"`
	Category           *string    `json:"category"`
	CouponValidityDays *int       `json:"coupon_validity_days"`
	ExpiresAt          *time.Time `json:"expires_at"`
}
