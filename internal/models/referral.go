package models

import (
	"time"
)

type ReferralCredit struct {
	ID            uint    `gorm:"primaryKey"`
	ReferrerID    int64   `gorm:"not null;index"` // telegram id
	InvitedUserID int64   `gorm:"not null;index"`
	ChargeID      string  `gorm:"size:255;index"`
	Amount        float64 `gorm:"not null"`
	CreatedAt     time.Time
}
