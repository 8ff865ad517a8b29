package offer

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the offer service layer.
var (
	ErrNotFound   = apperr.NotFound("offer not found")
	ErrOfferLimit = apperr.Conflict("active offer limit for the company's plan reached")
	ErrForbidden  = apperr.ErrForbidden
)
