package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

// User is a marketplace account; sellers additionally carry Connect state.
type User struct {
	ID                       uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Email                    string                    `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName                 *string                   `gorm:"column:full_name"`
	StripeAccountID          *string                   `gorm:"column:stripe_account_id;uniqueIndex"`
	StripeAccountStatus      enums.AccountStatus       `gorm:"column:stripe_account_status;type:text;not null;default:'none'"`
	IsSeller                 bool                      `gorm:"column:is_seller;not null;default:false"`
	VerificationRequirements types.AccountRequirements `gorm:"column:verification_requirements;type:jsonb"`
	OnboardingProgress       enums.OnboardingProgress  `gorm:"column:onboarding_progress;type:text;not null;default:'not_started'"`
	LastRequirementsCheck    *time.Time                `gorm:"column:last_requirements_check"`
	SellerSince              *time.Time                `gorm:"column:seller_since"`
	CreatedAt                time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// HasConnectAccount reports whether a Stripe account id is on file.
func (u *User) HasConnectAccount() bool {
	return u.StripeAccountID != nil && *u.StripeAccountID != ""
}
