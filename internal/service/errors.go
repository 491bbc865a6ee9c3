// Package service holds the reservation, ticket and settlement workflows.
// Every state transition goes through a single-row compare-and-set in the
// repository layer; nothing here takes an in-process lock, so any number of
// server instances can run the same code against one database.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for transport mapping.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindForbidden
	KindConflict
	KindInternal
)

// Error is the error type returned by every service method.  Code is a
// stable machine-readable identifier; Message is safe to show to users.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Detail  map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so sentinels compare equal to copies carrying detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// with returns a copy of e carrying detail.
func (e *Error) with(detail map[string]any) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

var (
	ErrListingNotFound    = &Error{Kind: KindNotFound, Code: "listing_not_found", Message: "Food listing not found"}
	ErrCollectionNotFound = &Error{Kind: KindNotFound, Code: "collection_not_found", Message: "Collection not found"}
	ErrTicketNotFound     = &Error{Kind: KindNotFound, Code: "ticket_not_found", Message: "Ticket not found"}
	ErrOwnListing         = &Error{Kind: KindForbidden, Code: "own_listing", Message: "You cannot reserve your own listing"}
	ErrAlreadyReserved    = &Error{Kind: KindConflict, Code: "already_reserved", Message: "This item is no longer available"}
	ErrTicketUsed         = &Error{Kind: KindConflict, Code: "ticket_used", Message: "Ticket has already been used"}
	ErrAlreadyCollected   = &Error{Kind: KindConflict, Code: "already_collected", Message: "Item already collected"}
	ErrNotReserved        = &Error{Kind: KindConflict, Code: "not_reserved", Message: "Item has not been reserved"}
	ErrInvalidToken       = &Error{Kind: KindValidation, Code: "invalid_token", Message: "Invalid ticket"}
	ErrTicketExpired      = &Error{Kind: KindValidation, Code: "ticket_expired", Message: "Ticket has expired"}
)

func validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "validation", Message: msg}
}

func internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "Internal error", Err: fmt.Errorf("%s: %w", op, err)}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
