package gateway_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Queue errors
var (
	// ErrReceiverMismatch is returned when a message is enqueued into a queue
	// owned by a different receiver.
	ErrReceiverMismatch = errors.New("receiver mismatch")

	// ErrBundleFull is returned when appending to a bundle that already holds
	// its maximum number of messages.
	ErrBundleFull = errors.New("bundle full")

	// ErrAlreadyAssigned is returned when a message that already belongs to a
	// bundle is assigned to another one.
	ErrAlreadyAssigned = errors.New("message already assigned to a bundle")

	// ErrMaterialization wraps any failure to render a bundle into a market
	// document.
	ErrMaterialization = errors.New("document materialization failed")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}

// TimePtr returns a pointer to t in UTC
func TimePtr(t time.Time) *time.Time {
	t = t.UTC()
	return &t
}
