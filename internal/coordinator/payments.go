package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"plaza-bot/internal/faults"
	"plaza-bot/internal/payment"
	"plaza-bot/internal/provision"
)

// StartCharge creates a charge on the requested rail and records the
// pending payment row under the returned charge id.
func (c *Coordinator) StartCharge(ctx context.Context, userID int64, method, description string) (string, string, error) {
	gateway, ok := c.gateways[method]
	if !ok {
		return "", "", faults.Invalidf("no gateway for method %q", method)
	}

	clientRef, chargeID, err := gateway.CreateCharge(ctx, userID, c.cfg.NominalPrice, description)
	if err != nil {
		return "", "", err
	}

	if _, err := c.ledger.AddPayment(userID, c.cfg.NominalPrice, chargeID, method); err != nil {
		return "", "", err
	}

	log.Printf("Charge %s created for user %d via %s", chargeID, userID, method)
	return clientRef, chargeID, nil
}

// CheckCharge polls the charge on demand and, when it turns out paid,
// runs the confirmation path.
func (c *Coordinator) CheckCharge(ctx context.Context, chargeID string) (payment.Status, provision.Credential, error) {
	p, err := c.ledger.GetPayment(chargeID)
	if err != nil {
		return payment.StatusUnknown, provision.Credential{}, err
	}

	gateway, ok := c.gateways[p.Method]
	if !ok {
		return payment.StatusUnknown, provision.Credential{}, faults.Invalidf("no gateway for method %q", p.Method)
	}

	status, err := gateway.Poll(ctx, chargeID)
	if err != nil {
		return payment.StatusUnknown, provision.Credential{}, err
	}
	if status != payment.StatusPaid {
		return status, provision.Credential{}, nil
	}

	cred, err := c.HandlePaymentConfirmed(ctx, chargeID)
	return payment.StatusPaid, cred, err
}

// HandlePaymentConfirmed applies a confirmed charge exactly once.
// Order is deliberate: the paid transition commits first and is never
// reverted; the referral credit is gated by that transition; the
// provisioning side effect runs last and its failure leaves a
// recoverable "paid but not yet provisioned" state, reported to the
// caller for remediation.
func (c *Coordinator) HandlePaymentConfirmed(ctx context.Context, chargeID string) (provision.Credential, error) {
	p, err := c.ledger.MarkPaymentPaid(chargeID)
	if errors.Is(err, faults.ErrAlreadyProcessed) {
		log.Printf("Duplicate confirmation for charge %s ignored", chargeID)
		return provision.Credential{}, nil
	}
	if err != nil {
		return provision.Credential{}, err
	}

	c.creditReferrer(p.UserID, chargeID)

	cred, err := c.RenewOrCreate(ctx, p.UserID, c.cfg.SubscriptionDays)
	if err != nil {
		return provision.Credential{}, fmt.Errorf("charge %s paid but provisioning failed: %w", chargeID, err)
	}
	return cred, nil
}

// creditReferrer pays the inviter a fixed share of the nominal
// subscription price. Runs once per charge because the caller gates it
// on the pending->paid transition.
func (c *Coordinator) creditReferrer(userID int64, chargeID string) {
	user, err := c.ledger.GetUser(userID)
	if err != nil {
		log.Printf("Failed to load user %d for referral credit: %v", userID, err)
		return
	}
	if user.ReferrerID == nil {
		return
	}

	bonus := c.cfg.NominalPrice * c.cfg.ReferralPercent / 100
	if bonus <= 0 {
		return
	}

	if err := c.ledger.UpdateBalance(*user.ReferrerID, bonus); err != nil {
		log.Printf("Failed to credit referrer %d: %v", *user.ReferrerID, err)
		return
	}
	if err := c.ledger.AddReferralCredit(*user.ReferrerID, userID, chargeID, bonus); err != nil {
		log.Printf("Failed to record referral credit: %v", err)
	}
	log.Printf("Referral bonus %.2f credited to %d for charge %s", bonus, *user.ReferrerID, chargeID)
}
