package domain

import "time"

// DefaultCouponValidityDays applies when an offer does not set one.
const DefaultCouponValidityDays = 30

// Offer is a discount published by a company.
type Offer struct {
	ID                 string        `json:"id"`
	CompanyID          string        `json:"company_id"`
	CompanyName        string        `json:"company_name,omitempty"`
	CompanyStatus      CompanyStatus `json:"company_status,omitempty"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	DiscountLabel      string        `json:"discount_label"`
	Category           string        `json:"category,omitempty"`
	CouponValidityDays int           `json:"coupon_validity_days"`
	ExpiresAt          *time.Time    `json:"expires_at,omitempty"`
	Active             bool          `json:"active"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Available reports whether coupons may be issued for o at now.
func (o *Offer) Available(now time.Time) bool {
	return o.Active && (o.ExpiresAt == nil || o.ExpiresAt.After(now))
}

// Public reports whether employees may see o.
func (o *Offer) Public(now time.Time) bool {
	return o.Available(now) && o.CompanyStatus == CompanyActive
}

// CouponExpiry is min(now + validity, offer expiry).
func (o *Offer) CouponExpiry(now time.Time) time.Time {
	days := o.CouponValidityDays
	if days <= 0 {
		days = DefaultCouponValidityDays
	}
	exp := now.AddDate(0, 0, days)
	if o.ExpiresAt != nil && o.ExpiresAt.Before(exp) {
		exp = *o.ExpiresAt
	}
	return exp
}
