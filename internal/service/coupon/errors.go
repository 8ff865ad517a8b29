package coupon

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the coupon service layer.
var (
	ErrNotFound         = apperr.NotFound("coupon not found")
	ErrOfferNotFound    = apperr.NotFound("offer not found")
	ErrOfferUnavailable = apperr.Conflict("offer is not available")
	ErrAlreadyRedeemed  = apperr.Conflict("coupon already redeemed")
	ErrExpired          = apperr.Conflict("coupon has expired")
	ErrNotActive        = apperr.Conflict("coupon is not active")
	ErrForbidden        = apperr.ErrForbidden

	// Returned by Repository.Insert on the respective unique violation.
	ErrCodeTaken       = apperr.Conflict("coupon code already in use")
	ErrDuplicateActive = apperr.Conflict("user already holds an active coupon for this offer")
)
