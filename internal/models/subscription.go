package models

import (
	"time"
)

type Subscription struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     int64  `gorm:"not null;index"` // telegram id
	Credential string `gorm:"type:text"`      // rendered tunnel config or proxy link bundle
	Handle     string `gorm:"size:255"`       // backend identity used for rotation/deletion
	StartDate  time.Time
	EndDate    time.Time `gorm:"index"`
	Trial      bool      `gorm:"default:false"`
	Active     bool      `gorm:"default:true;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
