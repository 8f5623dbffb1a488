package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/enums"
)

// SellerPayoutOrderSellerIndex is the unique key that makes payouts idempotent.
const SellerPayoutOrderSellerIndex = "ux_seller_payouts_order_seller"

// SellerPayout records the transfer of one seller's share of an order.
type SellerPayout struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_seller_payouts_order_seller"`
	SellerID         uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_seller_payouts_order_seller"`
	GrossCents       int64              `gorm:"column:gross_cents;not null"`
	PlatformFeeCents int64              `gorm:"column:platform_fee_cents;not null"`
	AmountCents      int64              `gorm:"column:amount_cents;not null"`
	StripeTransferID *string            `gorm:"column:stripe_transfer_id"`
	Status           enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	FailureReason    *string            `gorm:"column:failure_reason"`
	Attempts         int                `gorm:"column:attempts;not null;default:0"`
	RetryAfter       *time.Time         `gorm:"column:retry_after"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *SellerPayout) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
