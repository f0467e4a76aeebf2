// Package faults defines the error kinds shared by the provisioning
// backends, the payment gateways and the coordinator.
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable - backend or network unreachable or timed out, retriable.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrConflict - concurrent allocation collision, retriable once.
	ErrConflict = errors.New("allocation conflict")
	// ErrInvalid - malformed input, caller error, not retriable.
	ErrInvalid = errors.New("invalid input")
	// ErrNotFound - no active subscription or no pending payment.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyProcessed - replay of an already applied transition, absorbed silently.
	ErrAlreadyProcessed = errors.New("already processed")
)

func Unavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
