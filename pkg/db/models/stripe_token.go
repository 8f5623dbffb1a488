package models

import (
	"time"

	"github.com/google/uuid"
)

// StripeToken is a single-use handle that redirects to a fresh onboarding link.
type StripeToken struct {
	Token           string     `gorm:"column:token;primaryKey"`
	StripeAccountID string     `gorm:"column:stripe_account_id;not null"`
	UserID          uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	ExpiresAt       time.Time  `gorm:"column:expires_at;not null"`
	UsedAt          *time.Time `gorm:"column:used_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}
