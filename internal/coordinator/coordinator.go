// Package coordinator decides, per user and payment event, whether a
// credential is created, renewed or rotated, against which backend, and
// keeps those decisions consistent when the backend, the gateway and
// the ledger fail independently.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"plaza-bot/internal/faults"
	"plaza-bot/internal/ledger"
	"plaza-bot/internal/models"
	"plaza-bot/internal/payment"
	"plaza-bot/internal/provision"
)

type Config struct {
	TrialDays        int
	SubscriptionDays int
	// NominalPrice is the referral bonus basis for every rail,
	// regardless of what the gateway actually captured.
	NominalPrice     float64
	ReferralPercent  float64
	ProvisionTimeout time.Duration
}

type Coordinator struct {
	ledger   *ledger.Ledger
	backends map[string]provision.Backend // keyed by protocol
	gateways map[string]payment.Gateway   // keyed by payment method
	cfg      Config
}

func New(l *ledger.Ledger, backends map[string]provision.Backend, gateways map[string]payment.Gateway, cfg Config) *Coordinator {
	if cfg.ProvisionTimeout == 0 {
		cfg.ProvisionTimeout = 15 * time.Second
	}
	return &Coordinator{ledger: l, backends: backends, gateways: gateways, cfg: cfg}
}

func (c *Coordinator) backendFor(pref models.Preference) (provision.Backend, error) {
	backend, ok := c.backends[pref.Protocol]
	if !ok {
		return nil, faults.Invalidf("no backend for protocol %q", pref.Protocol)
	}
	return backend, nil
}

// issue calls the backend under a timeout and retries once when a
// concurrent allocation won the race.
func (c *Coordinator) issue(ctx context.Context, backend provision.Backend, userID int64, pref models.Preference, durationDays int) (provision.Credential, error) {
	for attempt := 0; attempt < 2; attempt++ {
		issueCtx, cancel := context.WithTimeout(ctx, c.cfg.ProvisionTimeout)
		cred, err := backend.Issue(issueCtx, userID, pref, durationDays)
		cancel()
		if err == nil {
			return cred, nil
		}
		if errors.Is(err, faults.ErrConflict) && attempt == 0 {
			log.Printf("Allocation conflict for user %d, retrying once", userID)
			continue
		}
		return provision.Credential{}, err
	}
	return provision.Credential{}, faults.ErrConflict
}

// ActivateTrial grants the one-shot trial. It refuses as soon as any
// subscription row exists for the user, active or long expired. Nothing
// is persisted when issuance fails.
func (c *Coordinator) ActivateTrial(ctx context.Context, userID int64) (provision.Credential, error) {
	has, err := c.ledger.HasAnySubscription(userID)
	if err != nil {
		return provision.Credential{}, err
	}
	if has {
		return provision.Credential{}, fmt.Errorf("%w: trial already used by user %d", faults.ErrAlreadyProcessed, userID)
	}

	pref, err := c.ledger.GetPreference(userID)
	if err != nil {
		return provision.Credential{}, err
	}
	backend, err := c.backendFor(pref)
	if err != nil {
		return provision.Credential{}, err
	}

	cred, err := c.issue(ctx, backend, userID, pref, c.cfg.TrialDays)
	if err != nil {
		return provision.Credential{}, err
	}

	if _, err := c.ledger.AddSubscription(userID, cred.Payload, cred.Handle, c.cfg.TrialDays, true); err != nil {
		return provision.Credential{}, err
	}

	log.Printf("Trial activated for user %d (%d days)", userID, c.cfg.TrialDays)
	return cred, nil
}

// RenewOrCreate applies a paid period. An existing row still flagged
// active - even one whose end date already passed - is extended in
// place, keeping unused remaining time and rotating the credential
// under the user's current preference; only when no flagged row exists
// a fresh paid row starts now. The active flag thus never spreads to a
// second row.
func (c *Coordinator) RenewOrCreate(ctx context.Context, userID int64, durationDays int) (provision.Credential, error) {
	pref, err := c.ledger.GetPreference(userID)
	if err != nil {
		return provision.Credential{}, err
	}
	backend, err := c.backendFor(pref)
	if err != nil {
		return provision.Credential{}, err
	}

	sub, err := c.ledger.GetOpenSubscription(userID)
	if err != nil {
		if !errors.Is(err, faults.ErrNotFound) {
			return provision.Credential{}, err
		}

		cred, err := c.issue(ctx, backend, userID, pref, durationDays)
		if err != nil {
			return provision.Credential{}, err
		}
		if _, err := c.ledger.AddSubscription(userID, cred.Payload, cred.Handle, durationDays, false); err != nil {
			return provision.Credential{}, err
		}
		log.Printf("Subscription created for user %d (%d days)", userID, durationDays)
		return cred, nil
	}

	// Extension keeps whatever is left: an expiry that slipped past the
	// sweep never shortens the grant below now+duration.
	base := time.Now()
	if sub.EndDate.After(base) {
		base = sub.EndDate
	}
	newEnd := base.AddDate(0, 0, durationDays)

	cred, err := c.issue(ctx, backend, userID, pref, durationDays)
	if err != nil {
		return provision.Credential{}, err
	}
	if err := c.ledger.ExtendSubscription(sub.ID, newEnd, cred.Payload, cred.Handle); err != nil {
		return provision.Credential{}, err
	}

	log.Printf("Subscription extended for user %d until %s", userID, newEnd.Format("2006-01-02"))
	return cred, nil
}

// ReissueCredential regenerates the credential of an active
// subscription under the current preference, without touching dates.
// Cleanup of the previous handle is best effort.
func (c *Coordinator) ReissueCredential(ctx context.Context, userID int64) (provision.Credential, error) {
	sub, err := c.ledger.GetActiveSubscription(userID)
	if err != nil {
		return provision.Credential{}, err
	}

	pref, err := c.ledger.GetPreference(userID)
	if err != nil {
		return provision.Credential{}, err
	}
	backend, err := c.backendFor(pref)
	if err != nil {
		return provision.Credential{}, err
	}

	if sub.Handle != "" {
		cleanupCtx, cancel := context.WithTimeout(ctx, c.cfg.ProvisionTimeout)
		if err := backend.Cleanup(cleanupCtx, sub.Handle); err != nil {
			log.Printf("Failed to clean up handle %s before reissue: %v", sub.Handle, err)
		}
		cancel()
	}

	cred, err := c.issue(ctx, backend, userID, pref, remainingDays(sub.EndDate))
	if err != nil {
		return provision.Credential{}, err
	}
	if err := c.ledger.UpdateCredential(sub.ID, cred.Payload, cred.Handle); err != nil {
		return provision.Credential{}, err
	}

	log.Printf("Credential reissued for user %d", userID)
	return cred, nil
}

func remainingDays(end time.Time) int {
	days := int(math.Ceil(time.Until(end).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}
