package notification

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the notification service layer.
var (
	ErrNotFound     = apperr.NotFound("notification not found")
	ErrInvalidRole  = apperr.Invalid("unknown role")
	ErrMissingTitle = apperr.Invalid("notification title is required")
)
