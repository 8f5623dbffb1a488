// Package payloads defines the JSON bodies carried inside outbox envelopes.
package payloads

import "github.com/google/uuid"

type OrderLine struct {
	ToolID           uuid.UUID `json:"toolId"`
	SellerID         uuid.UUID `json:"sellerId"`
	Quantity         int       `json:"quantity"`
	LineTotalCents   int64     `json:"lineTotalCents"`
	PlatformFeeCents int64     `json:"platformFeeCents"`
}

type OrderCreatedEvent struct {
	OrderID         uuid.UUID   `json:"orderId"`
	UserID          *uuid.UUID  `json:"userId,omitempty"`
	PaymentIntentID string      `json:"paymentIntentId"`
	TotalCents      int64       `json:"totalCents"`
	Currency        string      `json:"currency"`
	Lines           []OrderLine `json:"lines"`
}

type OrderPaidEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	TotalCents      int64     `json:"totalCents"`
	SellerCount     int       `json:"sellerCount"`
}

type OrderPaymentFailedEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	Reason          string    `json:"reason,omitempty"`
}

type SellerPayoutEvent struct {
	PayoutID         uuid.UUID `json:"payoutId"`
	OrderID          uuid.UUID `json:"orderId"`
	SellerID         uuid.UUID `json:"sellerId"`
	AmountCents      int64     `json:"amountCents"`
	PlatformFeeCents int64     `json:"platformFeeCents"`
	TransferID       string    `json:"transferId,omitempty"`
	FailureReason    string    `json:"failureReason,omitempty"`
	Attempts         int       `json:"attempts"`
}

type SellerAccountActivatedEvent struct {
	UserID          uuid.UUID `json:"userId"`
	StripeAccountID string    `json:"stripeAccountId"`
}
