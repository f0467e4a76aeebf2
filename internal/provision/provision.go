// Package provision defines the contract every credential backend
// implements. The coordinator picks a backend by protocol and never
// looks past this interface.
package provision

import (
	"context"

	"plaza-bot/internal/models"
)

// Credential is what a client needs to connect: an opaque payload
// (tunnel config text or proxy link bundle) plus the handle the
// backend recognises for later rotation or deletion.
type Credential struct {
	Payload string
	Handle  string
}

type Backend interface {
	// Issue produces a credential for the user on the preferred
	// endpoint, valid for durationDays. Calling Issue again for the
	// same user must not create a duplicate remote identity.
	// Failures map onto the faults taxonomy: Unavailable for
	// network/daemon trouble, Conflict for allocation races, Invalid
	// for bad input.
	Issue(ctx context.Context, userID int64, pref models.Preference, durationDays int) (Credential, error)

	// Cleanup releases whatever the handle addresses. Best effort:
	// callers tolerate its failure.
	Cleanup(ctx context.Context, handle string) error
}
