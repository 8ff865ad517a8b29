package user

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the user service layer.
var (
	ErrNotFound        = apperr.NotFound("user not found")
	ErrEmailTaken      = apperr.Conflict("email already registered")
	ErrWrongPassword   = apperr.Invalid("current password is incorrect")
	ErrSelfDeactivate  = apperr.Conflict("cannot deactivate your own account")
	ErrBadCredentials  = apperr.Unauthorized("invalid email or password")
	ErrAccountInactive = apperr.Unauthorized("account is disabled")
	ErrForbidden       = apperr.ErrForbidden
)
