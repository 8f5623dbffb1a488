package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/money"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

// OrderDTO is the buyer-facing order shape.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	UserID          *uuid.UUID            `json:"user_id,omitempty"`
	TotalCents      int64                 `json:"total_cents"`
	Total           string                `json:"total"`
	Currency        string                `json:"currency"`
	PaymentIntentID string                `json:"payment_intent_id"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentStatus   enums.PaymentStatus   `json:"payment_status"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Items           []OrderItemDTO        `json:"items"`
	Payouts         []PayoutDTO           `json:"payouts,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

type OrderItemDTO struct {
	ToolID           uuid.UUID `json:"tool_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	PriceCents       int64     `json:"price_cents"`
	Quantity         int       `json:"quantity"`
	LineTotalCents   int64     `json:"line_total_cents"`
	PlatformFeeCents int64     `json:"platform_fee_cents"`
	SellerNetCents   int64     `json:"seller_net_cents"`
}

type PayoutDTO struct {
	SellerID         uuid.UUID          `json:"seller_id"`
	GrossCents       int64              `json:"gross_cents"`
	PlatformFeeCents int64              `json:"platform_fee_cents"`
	AmountCents      int64              `json:"amount_cents"`
	Status           enums.PayoutStatus `json:"status"`
	StripeTransferID *string            `json:"stripe_transfer_id,omitempty"`
	FailureReason    *string            `json:"failure_reason,omitempty"`
}

// FromModel maps an order and its payouts into the response shape.
func FromModel(o *models.Order, payouts []models.SellerPayout) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		TotalCents:      o.TotalCents,
		Total:           money.Cents(o.TotalCents).String(),
		Currency:        o.Currency,
		PaymentIntentID: o.PaymentIntentID,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		ShippingAddress: o.ShippingAddress,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ToolID:           item.ToolID,
			SellerID:         item.SellerID,
			PriceCents:       item.PriceCents,
			Quantity:         item.Quantity,
			LineTotalCents:   item.LineTotalCents,
			PlatformFeeCents: item.PlatformFeeCents,
			SellerNetCents:   item.SellerNetCents,
		})
	}
	for _, p := range payouts {
		dto.Payouts = append(dto.Payouts, PayoutDTO{
			SellerID:         p.SellerID,
			GrossCents:       p.GrossCents,
			PlatformFeeCents: p.PlatformFeeCents,
			AmountCents:      p.AmountCents,
			Status:           p.Status,
			StripeTransferID: p.StripeTransferID,
			FailureReason:    p.FailureReason,
		})
	}
	return dto
}
