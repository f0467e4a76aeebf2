// Package payment holds the charge gateways. A gateway creates charges
// and reports their state; the pending->paid ledger transition always
// happens elsewhere, keyed by the charge id the gateway returned.
package payment

import "context"

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
	// StatusUnknown means the gateway cannot answer by polling; the
	// confirmation arrives as a push instead.
	StatusUnknown Status = "unknown"
)

type Gateway interface {
	// CreateCharge starts a charge and returns what the client needs
	// to complete it (a redirect URL, or empty for push-driven rails)
	// plus the charge id used as the idempotency key from here on.
	CreateCharge(ctx context.Context, userID int64, amount float64, description string) (clientRef string, chargeID string, err error)

	// Poll reports the charge state on demand.
	Poll(ctx context.Context, chargeID string) (Status, error)
}
