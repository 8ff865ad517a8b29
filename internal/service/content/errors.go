package content

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the content service layer.
var (
	ErrNotFound          = apperr.NotFound("content not found")
	ErrForbidden         = apperr.ErrForbidden
	ErrInvalidTransition = apperr.Conflict("content status does not allow this action")
	ErrNotEditable       = apperr.Conflict("content can only be edited while draft or rejected")
	ErrNoteRequired      = apperr.Invalid("a note is required when rejecting")

	// Returned by Repository.Create on the respective unique violation.
	ErrSlugTaken       = apperr.Conflict("slug already in use")
	ErrDuplicateSource = apperr.Conflict("source already imported")
)
