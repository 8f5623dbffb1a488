package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem is an immutable line of an order with its fee stamps.
type OrderItem struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ToolID           uuid.UUID `gorm:"column:tool_id;type:uuid;not null"`
	SellerID         uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	PriceCents       int64     `gorm:"column:price_cents;not null"`
	Quantity         int       `gorm:"column:quantity;not null"`
	LineTotalCents   int64     `gorm:"column:line_total_cents;not null"`
	PlatformFeeCents int64     `gorm:"column:platform_fee_cents;not null"`
	SellerNetCents   int64     `gorm:"column:seller_net_cents;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
