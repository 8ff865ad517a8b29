package conversation

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the conversation service layer.
var (
	ErrNotFound           = apperr.NotFound("conversation not found")
	ErrNotParticipant     = apperr.Forbidden("not a participant of this conversation")
	ErrNoRecipients       = apperr.Invalid("at least one other participant is required")
	ErrInactiveRecipient  = apperr.Invalid("participant is not an active user")
	ErrEmployeeRecipients = apperr.Forbidden("employees may only message staff or companies")

	// Returned by Repository.Create when another request created the
	// same direct conversation first.
	ErrDirectExists = apperr.Conflict("direct conversation already exists")
)
