package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/enums"
)

// Tool is a listing owned by a seller.
type Tool struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SellerID   uuid.UUID        `gorm:"column:seller_id;type:uuid;not null;index"`
	Title      string           `gorm:"column:title;not null"`
	PriceCents int64            `gorm:"column:price_cents;not null"`
	Status     enums.ToolStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Tool) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
