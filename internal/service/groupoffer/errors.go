package groupoffer

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the group offer service layer.
var (
	ErrNotFound        = apperr.NotFound("group offer request not found")
	ErrForbidden       = apperr.ErrForbidden
	ErrCompanyInactive = apperr.Conflict("company is not active")
	ErrNotGestor       = apperr.Invalid("target user is not an active gestor")
	ErrNotesRequired   = apperr.Invalid("notes are required when rejecting")

	// ErrInvalidTransition is returned when the request is not in a state
	// that allows the operation, including when a concurrent update won.
	ErrInvalidTransition = apperr.Conflict("request status does not allow this action")
)
