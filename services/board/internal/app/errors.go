package app

import "fmt"

// Kind classifies an operation failure.
type Kind int

const (
	// KindValidation is a malformed, missing, or out-of-range field.
	KindValidation Kind = iota
	// KindAuthentication is a missing, invalid, or expired credential.
	KindAuthentication
	// KindAuthorization is an authenticated subject that is not permitted.
	KindAuthorization
	// KindNotFound is a referenced record that does not exist.
	KindNotFound
	// KindDependency is an unreachable identity provider or record store.
	KindDependency
)

// Error is an operation failure classified for the HTTP boundary. Field is
// set only for validation failures.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationErr(field, reason string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: reason}
}

func authzErr(reason string) *Error {
	return &Error{Kind: KindAuthorization, Message: reason}
}

func notFoundErr(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func dependencyErr(message string, err error) *Error {
	return &Error{Kind: KindDependency, Message: message, Err: err}
}
