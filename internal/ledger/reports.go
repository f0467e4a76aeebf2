package ledger

import (
	"fmt"
	"time"

	"plaza-bot/internal/models"
)

// Read-only aggregates consumed by the admin panel.

type MethodRevenue struct {
	Method string
	Count  int64
	Total  float64
}

type ReferralStats struct {
	InvitedCount int64
	TotalEarned  float64
}

func (l *Ledger) CountUsers() (int64, error) {
	var count int64
	err := l.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

func (l *Ledger) CountActiveSubscriptions() (int64, error) {
	var count int64
	err := l.db.Model(&models.Subscription{}).
		Where("active = ? AND end_date > ?", true, time.Now()).
		Count(&count).Error
	return count, err
}

func (l *Ledger) TotalRevenue() (float64, error) {
	var total float64
	err := l.db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (l *Ledger) RevenueByMethod() ([]MethodRevenue, error) {
	var rows []MethodRevenue
	err := l.db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusPaid).
		Select("method, COUNT(*) as count, SUM(amount) as total").
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate revenue: %w", err)
	}
	return rows, nil
}

func (l *Ledger) RecentPayments(limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := l.db.Order("created_at DESC").Limit(limit).Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent payments: %w", err)
	}
	return payments, nil
}

// ExpiringSoon lists active subscriptions ending within the next
// `days` days, soonest first.
func (l *Ledger) ExpiringSoon(days int) ([]models.Subscription, error) {
	now := time.Now()
	until := now.AddDate(0, 0, days)

	var subs []models.Subscription
	err := l.db.Where("active = ? AND end_date > ? AND end_date <= ?", true, now, until).
		Order("end_date ASC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load expiring subscriptions: %w", err)
	}
	return subs, nil
}

func (l *Ledger) TrialSubscriptions() ([]models.Subscription, error) {
	var subs []models.Subscription
	err := l.db.Where("trial = ?", true).Order("end_date DESC").Find(&subs).Error
	return subs, err
}

func (l *Ledger) PaidSubscriptions() ([]models.Subscription, error) {
	var subs []models.Subscription
	err := l.db.Where("trial = ?", false).Order("end_date DESC").Find(&subs).Error
	return subs, err
}

func (l *Ledger) ReferralStatsFor(telegramID int64) (ReferralStats, error) {
	var stats ReferralStats
	err := l.db.Model(&models.User{}).
		Where("referrer_id = ?", telegramID).
		Count(&stats.InvitedCount).Error
	if err != nil {
		return stats, fmt.Errorf("failed to count invited users: %w", err)
	}
	err = l.db.Model(&models.ReferralCredit{}).
		Where("referrer_id = ?", telegramID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.TotalEarned).Error
	if err != nil {
		return stats, fmt.Errorf("failed to sum referral credits: %w", err)
	}
	return stats, nil
}
