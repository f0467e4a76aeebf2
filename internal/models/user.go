package models

import (
	"time"
)

type User struct {
	ID         uint    `gorm:"primaryKey"`
	TelegramID int64   `gorm:"uniqueIndex;not null"`
	Username   string  `gorm:"size:255"`
	Balance    float64 `gorm:"default:0"`
	ReferrerID *int64  `gorm:"index"` // telegram id of the inviter, immutable once set
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
