// Package apperr classifies service-layer failures so the HTTP layer can map
// them onto status codes without knowing each service's sentinel errors.
package apperr

import "errors"

// Kind is the category of an application error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalid
	KindUnauthorized
)

// Error is a classified error. Services declare package-level sentinels of
// this type and compare with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// NotFound returns an error of kind KindNotFound.
func NotFound(msg string) error { return &Error{Kind: KindNotFound, Msg: msg} }

// Forbidden returns an error of kind KindForbidden.
func Forbidden(msg string) error { return &Error{Kind: KindForbidden, Msg: msg} }

// Conflict returns an error of kind KindConflict.
func Conflict(msg string) error { return &Error{Kind: KindConflict, Msg: msg} }

// Invalid returns an error of kind KindInvalid.
func Invalid(msg string) error { return &Error{Kind: KindInvalid, Msg: msg} }

// Unauthorized returns an error of kind KindUnauthorized.
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }

// ErrForbidden is the generic authorization failure shared by all services.
var ErrForbidden = Forbidden("forbidden")

// KindOf reports the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the public message of the first classified error in
// err's chain, or "" if there is none.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
