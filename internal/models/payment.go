package models

import (
	"time"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"

	PaymentMethodYookassa = "yookassa"
	PaymentMethodStars    = "stars"
)

type Payment struct {
	ID        uint    `gorm:"primaryKey"`
	UserID    int64   `gorm:"not null;index"` // telegram id
	Amount    float64 `gorm:"not null"`
	ChargeID  string  `gorm:"size:255;uniqueIndex;not null"`
	Method    string  `gorm:"size:50"`
	Status    string  `gorm:"size:50;default:'pending'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
