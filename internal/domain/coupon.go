package domain

import "time"

// CouponStatus is the lifecycle state of a coupon.
type CouponStatus string

const (
	CouponActive    CouponStatus = "ACTIVE"
	CouponRedeemed  CouponStatus = "REDEEMED"
	CouponExpired   CouponStatus = "EXPIRED"
	CouponCancelled CouponStatus = "CANCELLED"
)

// Coupon is a redemption code issued to one user for one offer.
type Coupon struct {
	ID         string       `json:"id"`
	Code       string       `json:"code"`
	OfferID    string       `json:"offer_id"`
	OfferTitle string       `json:"offer_title,omitempty"`
	UserID     string       `json:"user_id"`
	CompanyID  string       `json:"company_id"`
	Status     CouponStatus `json:"status"`
	ExpiresAt  time.Time    `json:"expires_at"`
	RedeemedAt *time.Time   `json:"redeemed_at,omitempty"`
	RedeemedBy *string      `json:"redeemed_by,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Usable reports whether c can still be redeemed at now.
func (c *Coupon) Usable(now time.Time) bool {
	return c.Status == CouponActive && c.ExpiresAt.After(now)
}
