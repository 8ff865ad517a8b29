package lead

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the lead service layer.
var (
	ErrNotFound          = apperr.NotFound("lead not found")
	ErrTaskNotFound      = apperr.NotFound("task not found")
	ErrForbidden         = apperr.ErrForbidden
	ErrInvalidTransition = apperr.Conflict("stage change not allowed")
	ErrLostReason        = apperr.Invalid("a reason is required when marking a lead as lost")
	ErrNotWon            = apperr.Conflict("only won leads can be converted")
	ErrAlreadyConverted  = apperr.Conflict("lead already converted")
	ErrNotGestor         = apperr.Invalid("target user is not an active gestor")
	ErrTaskDone          = apperr.Conflict("task already completed")
)
