package entities

import (
	"errors"
	"fmt"
)

// Kind represents the category of an application error
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindAuth
	KindTransport
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a categorized application error.
// Reason carries the provider-specific code of an auth failure (e.g. EMAIL_EXISTS).
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Reason  string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (caused by: %v)", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports input rejected before any external call
func NewValidationError(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: err.Error(), Err: err}
}

// NewNotFoundError reports a missing document
func NewNotFoundError(op, resource, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// NewAuthError reports an identity provider rejection
func NewAuthError(op, reason string, err error) *Error {
	msg := "authentication failed"
	if reason != "" {
		msg = msg + ": " + reason
	}
	return &Error{Kind: KindAuth, Op: op, Message: msg, Reason: reason, Err: err}
}

// NewTransportError reports a backend that could not be reached or failed
func NewTransportError(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: "backend request failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return 0, false
}

func isKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func IsValidation(err error) bool { return isKind(err, KindValidation) }
func IsNotFound(err error) bool   { return isKind(err, KindNotFound) }
func IsAuth(err error) bool       { return isKind(err, KindAuth) }
func IsTransport(err error) bool  { return isKind(err, KindTransport) }
