package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for HTTP status mapping and logging.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindState      ErrorKind = "state"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindBusy       ErrorKind = "busy"
	KindInternal   ErrorKind = "internal"
)

// Error is the typed error every service and store method returns for
// domain-level failures. Handlers map Kind to an HTTP status code and use
// Message/Details as the JSON error envelope's body.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// NewError builds a domain.Error with no wrapped cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a domain.Error wrapping a lower-level cause.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// WithDetails attaches structured detail fields (e.g. validation field
// names) and returns the same *Error for chaining at the call site.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a *Error,
// defaulting to KindInternal otherwise.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Sentinel errors retained for errors.Is comparisons at call sites that only
// care about identity, not Kind/Details (store layer, lock manager).
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")
	ErrContextDone   = errors.New("context cancelled")

	ErrAuctionNotActive       = errors.New("auction is not active")
	ErrAuctionNotPending      = errors.New("auction is not pending")
	ErrAuctionAlreadyEnded    = errors.New("auction already ended")
	ErrBidTooLow              = errors.New("bid is below the minimum next bid")
	ErrSellerCannotBid        = errors.New("seller cannot bid on their own auction")
	ErrRetractionWindowClosed = errors.New("retraction window has closed")
	ErrAlreadyRetracted       = errors.New("bid already retracted")
	ErrNotBidOwner            = errors.New("user does not own this bid")
)
