// Package app implements the lifecycle services: the generic
// create/read/update/delete engine and the request, ticket, chained
// request and subcampaign services built on top of it.
package app

import (
	"errors"

	"github.com/example/reproc/internal/locker"
)

// Failure conditions surfaced to callers. Services wrap these with the
// entity type and identifier; match with errors.Is.
var (
	// ErrDuplicateEntity is returned by create when the identifier is taken.
	ErrDuplicateEntity = errors.New("entity already exists")
	// ErrNotFound is returned by update and delete on an absent identifier.
	ErrNotFound = errors.New("entity does not exist")
	// ErrInvalidTransition is returned when a state machine precondition
	// is not met.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidationFailed is returned when a domain hook rejects an
	// operation.
	ErrValidationFailed = errors.New("validation failed")
	// ErrRemoteFailure is returned when a remote service call fails or
	// returns an unexpected shape.
	ErrRemoteFailure = errors.New("remote service failure")
	// ErrBusy is returned by non-blocking operations when another
	// transition on the same identifier is in flight.
	ErrBusy = locker.ErrBusy
)
