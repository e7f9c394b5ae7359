package app

import "errors"

// Kind classifies a domain failure for the HTTP boundary translator.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindValidation     Kind = "validation"
	KindAccessDenied   Kind = "access_denied"
	KindAuthentication Kind = "authentication"
)

// Error is a typed domain failure. Fields carries field->message details
// for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string { return e.Message }

// AsError unwraps err into a typed domain error when possible.
func AsError(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed.", Fields: fields}
}

var (
	// ErrAccessDenied is returned when an authorization predicate rejects the
	// caller or a refresh token fails validation.
	ErrAccessDenied = &Error{Kind: KindAccessDenied, Message: "Access denied."}

	// ErrAuthenticationFailed is returned on bad login credentials. The
	// message is deliberately uniform to avoid account enumeration.
	ErrAuthenticationFailed = &Error{Kind: KindAuthentication, Message: "Authentication failed."}
)
