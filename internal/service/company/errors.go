package company

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the company service layer.
var (
	ErrNotFound  = apperr.NotFound("company not found")
	ErrCIFTaken  = apperr.Conflict("a company with this CIF already exists")
	ErrNotGestor = apperr.Invalid("target user is not an active gestor")
	ErrBadStatus = apperr.Invalid("status must be PENDING, ACTIVE or SUSPENDED")
	ErrForbidden = apperr.ErrForbidden
)
