package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

// Order is one buyer checkout paid through a single payment intent.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID          *uuid.UUID            `gorm:"column:user_id;type:uuid;index"`
	TotalCents      int64                 `gorm:"column:total_cents;not null"`
	Currency        string                `gorm:"column:currency;not null;default:'usd'"`
	PaymentIntentID string                `gorm:"column:payment_intent_id;not null;uniqueIndex"`
	TransferGroup   string                `gorm:"column:transfer_group;not null"`
	Status          enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb"`
	Items           []OrderItem           `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
