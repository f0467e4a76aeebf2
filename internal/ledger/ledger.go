// Package ledger is the single owner of persisted state. Every state
// transition goes through an atomic single-row update here; callers
// never touch gorm directly.
package ledger

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"plaza-bot/internal/config"
	"plaza-bot/internal/faults"
	"plaza-bot/internal/models"
)

type Ledger struct {
	db *gorm.DB
}

func ConnectPostgres(cfg *config.Config) (*Ledger, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Connected to PostgreSQL")

	return New(db)
}

// New wraps an already opened gorm connection and runs migrations.
// Tests use this with the sqlite driver.
func New(db *gorm.DB) (*Ledger, error) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.Payment{},
		&models.Preference{},
		&models.ReferralCredit{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Ledger{db: db}, nil
}

// ---- users ----

func (l *Ledger) GetUser(telegramID int64) (*models.User, error) {
	var user models.User
	if err := l.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, faults.NotFoundf("user %d", telegramID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// AddUser registers a user on first contact. The referrer is recorded
// only on creation; a later call with a different referrer is a no-op.
func (l *Ledger) AddUser(telegramID int64, username string, referrerID *int64) (*models.User, error) {
	user := models.User{TelegramID: telegramID, Username: username, ReferrerID: referrerID}
	err := l.db.Where(models.User{TelegramID: telegramID}).FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (l *Ledger) UpdateBalance(telegramID int64, delta float64) error {
	res := l.db.Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("failed to update balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return faults.NotFoundf("user %d", telegramID)
	}
	return nil
}

// ---- subscriptions ----

// GetActiveSubscription returns the user's live subscription. Expiry is
// detected lazily here: a row whose end_date already passed does not
// count even if the sweep has not flipped it yet.
func (l *Ledger) GetActiveSubscription(telegramID int64) (*models.Subscription, error) {
	var sub models.Subscription
	err := l.db.Where("user_id = ? AND active = ? AND end_date > ?", telegramID, true, time.Now()).
		Order("end_date DESC").
		First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, faults.NotFoundf("no active subscription for user %d", telegramID)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// GetOpenSubscription returns the row still flagged active, even past
// its end date. Renewal extends this row in place so the active flag
// never spreads to a second row; lazy expiry filtering stays the job
// of GetActiveSubscription.
func (l *Ledger) GetOpenSubscription(telegramID int64) (*models.Subscription, error) {
	var sub models.Subscription
	err := l.db.Where("user_id = ? AND active = ?", telegramID, true).
		Order("end_date DESC").
		First(&sub).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, faults.NotFoundf("no open subscription for user %d", telegramID)
		}
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}

// HasAnySubscription reports whether the user ever had a subscription
// row, active or not. The trial check depends on this, not on activity.
func (l *Ledger) HasAnySubscription(telegramID int64) (bool, error) {
	var count int64
	err := l.db.Model(&models.Subscription{}).Where("user_id = ?", telegramID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return count > 0, nil
}

func (l *Ledger) AddSubscription(telegramID int64, credential, handle string, durationDays int, trial bool) (*models.Subscription, error) {
	now := time.Now()
	sub := models.Subscription{
		UserID:     telegramID,
		Credential: credential,
		Handle:     handle,
		StartDate:  now,
		EndDate:    now.AddDate(0, 0, durationDays),
		Trial:      trial,
		Active:     true,
	}
	if err := l.db.Create(&sub).Error; err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return &sub, nil
}

// ExtendSubscription moves the end date and rotates the credential in
// place. The trial flag is always cleared: an extension is a paid grant.
func (l *Ledger) ExtendSubscription(id uint, newEnd time.Time, credential, handle string) error {
	res := l.db.Model(&models.Subscription{}).Where("id = ?", id).Updates(map[string]interface{}{
		"end_date":   newEnd,
		"credential": credential,
		"handle":     handle,
		"trial":      false,
		"active":     true,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to extend subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return faults.NotFoundf("subscription %d", id)
	}
	return nil
}

// UpdateCredential overwrites the credential and handle without
// touching the dates. Used by reissue only.
func (l *Ledger) UpdateCredential(id uint, credential, handle string) error {
	res := l.db.Model(&models.Subscription{}).Where("id = ?", id).Updates(map[string]interface{}{
		"credential": credential,
		"handle":     handle,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return faults.NotFoundf("subscription %d", id)
	}
	return nil
}

// DeactivateExpired flips active=false on rows whose end date is still
// in the past at commit time. The condition makes the sweep safe to run
// concurrently with a renew that just pushed the end date forward.
func (l *Ledger) DeactivateExpired() ([]models.Subscription, error) {
	now := time.Now()

	var expired []models.Subscription
	err := l.db.Where("active = ? AND end_date < ?", true, now).Find(&expired).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query expired subscriptions: %w", err)
	}

	swept := make([]models.Subscription, 0, len(expired))
	for _, sub := range expired {
		res := l.db.Model(&models.Subscription{}).
			Where("id = ? AND active = ? AND end_date < ?", sub.ID, true, now).
			Update("active", false)
		if res.Error != nil {
			log.Printf("Failed to deactivate subscription %d: %v", sub.ID, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			swept = append(swept, sub)
		}
	}
	return swept, nil
}

func (l *Ledger) DeactivateSubscription(telegramID int64) error {
	res := l.db.Model(&models.Subscription{}).
		Where("user_id = ? AND active = ?", telegramID, true).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return faults.NotFoundf("no active subscription for user %d", telegramID)
	}
	return nil
}

// ---- preferences ----

func (l *Ledger) GetPreference(telegramID int64) (models.Preference, error) {
	var pref models.Preference
	err := l.db.Where("user_id = ?", telegramID).First(&pref).Error
	if err == gorm.ErrRecordNotFound {
		pref = models.DefaultPreference(telegramID)
		if err := l.db.Create(&pref).Error; err != nil {
			return pref, fmt.Errorf("failed to store default preference: %w", err)
		}
		return pref, nil
	}
	if err != nil {
		return pref, fmt.Errorf("failed to load preference: %w", err)
	}
	return pref, nil
}

func (l *Ledger) SetPreference(pref models.Preference) error {
	err := l.db.Save(&pref).Error
	if err != nil {
		return fmt.Errorf("failed to store preference: %w", err)
	}
	return nil
}

// ---- payments ----

func (l *Ledger) AddPayment(telegramID int64, amount float64, chargeID, method string) (*models.Payment, error) {
	payment := models.Payment{
		UserID:   telegramID,
		Amount:   amount,
		ChargeID: chargeID,
		Method:   method,
		Status:   models.PaymentStatusPending,
	}
	if err := l.db.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return &payment, nil
}

func (l *Ledger) GetPayment(chargeID string) (*models.Payment, error) {
	var payment models.Payment
	if err := l.db.Where("charge_id = ?", chargeID).First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, faults.NotFoundf("payment %s", chargeID)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &payment, nil
}

// MarkPaymentPaid performs the pending->paid transition exactly once.
// The conditional update is the idempotency point: a replay for an
// already paid charge affects zero rows and reports ErrAlreadyProcessed.
func (l *Ledger) MarkPaymentPaid(chargeID string) (*models.Payment, error) {
	res := l.db.Model(&models.Payment{}).
		Where("charge_id = ? AND status = ?", chargeID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusPaid)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		payment, err := l.GetPayment(chargeID)
		if err != nil {
			return nil, err
		}
		return payment, faults.ErrAlreadyProcessed
	}
	return l.GetPayment(chargeID)
}

func (l *Ledger) AddReferralCredit(referrerID, invitedID int64, chargeID string, amount float64) error {
	credit := models.ReferralCredit{
		ReferrerID:    referrerID,
		InvitedUserID: invitedID,
		ChargeID:      chargeID,
		Amount:        amount,
	}
	if err := l.db.Create(&credit).Error; err != nil {
		return fmt.Errorf("failed to record referral credit: %w", err)
	}
	return nil
}
