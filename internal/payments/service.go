package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/cart"
	"github.com/benchlot/benchlot-backend/internal/orders"
	"github.com/benchlot/benchlot-backend/internal/payouts"
	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/money"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/outbox/payloads"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

const (
	pendingOrderID     = "pending"
	guestUserID        = "guest"
	orderFailedMessage = "failed to process order"
	confirmSource      = "checkout_confirm"
)

type intentGateway interface {
	CreatePaymentIntent(ctx context.Context, input stripe.PaymentIntentInput) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
	UpdatePaymentIntentMetadata(ctx context.Context, intentID string, metadata map[string]string) error
}

type orderSettler interface {
	Settle(ctx context.Context, order *models.Order, intent *stripe.PaymentIntent, source string) ([]payouts.Result, error)
}

type pricer interface {
	Price(ctx context.Context, items []cart.LineItem) ([]cart.PricedItem, error)
}

// CreateIntentInput is a checkout request for the whole cart.
type CreateIntentInput struct {
	Items           []cart.LineItem
	UserID          *uuid.UUID
	CustomerID      string
	PaymentMethodID string
}

// IntentResult is what the browser needs to confirm the payment.
type IntentResult struct {
	ClientSecret    string      `json:"clientSecret"`
	PaymentIntentID string      `json:"paymentIntentId"`
	AmountCents     money.Cents `json:"amountCents"`
}

// ConfirmInput turns a succeeded payment into an order.
type ConfirmInput struct {
	PaymentIntentID string
	Items           []cart.LineItem
	UserID          *uuid.UUID
	ShippingAddress types.ShippingAddress
}

// Service creates payment intents and writes orders.
type Service interface {
	CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error)
	ConfirmAndPersist(ctx context.Context, input ConfirmInput) (*models.Order, error)
}

// ServiceParams wires the payments service.
type ServiceParams struct {
	DB                   pkgdb.TxRunner
	Gateway              intentGateway
	Pricer               pricer
	Orders               *orders.Repository
	Carts                *cart.Repository
	Settler              orderSettler
	Outbox               outbox.Emitter
	Logger               *logger.Logger
	Currency             string
	PlatformFeeBps       int64
	ProcessingReserveBps int64
}

type service struct {
	db         pkgdb.TxRunner
	gateway    intentGateway
	pricer     pricer
	orders     *orders.Repository
	carts      *cart.Repository
	settler    orderSettler
	outbox     outbox.Emitter
	logg       *logger.Logger
	currency   string
	feeBps     int64
	reserveBps int64
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("transaction runner required")
	case p.Gateway == nil:
		return nil, errors.New("stripe gateway required")
	case p.Pricer == nil:
		return nil, errors.New("cart pricer required")
	case p.Orders == nil:
		return nil, errors.New("order repository required")
	case p.Carts == nil:
		return nil, errors.New("cart repository required")
	case p.Settler == nil:
		return nil, errors.New("order settler required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &service{
		db:         p.DB,
		gateway:    p.Gateway,
		pricer:     p.Pricer,
		orders:     p.Orders,
		carts:      p.Carts,
		settler:    p.Settler,
		outbox:     p.Outbox,
		logg:       p.Logger,
		currency:   currency,
		feeBps:     p.PlatformFeeBps,
		reserveBps: p.ProcessingReserveBps,
	}, nil
}

// CreateIntent charges the whole cart on the platform account. The order does
// not exist yet, so order_id is a placeholder until ConfirmAndPersist runs.
func (s *service) CreateIntent(ctx context.Context, input CreateIntentInput) (*IntentResult, error) {
	priced, err := s.pricer.Price(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	amount := cart.ComputeIntentAmount(priced)
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart total must be positive")
	}

	userMeta := guestUserID
	if input.UserID != nil {
		userMeta = input.UserID.String()
	}
	transferGroup := "order_" + uuid.NewString()

	intent, err := s.gateway.CreatePaymentIntent(ctx, stripe.PaymentIntentInput{
		AmountCents:   amount.Int64(),
		Currency:      s.currency,
		TransferGroup: transferGroup,
		CustomerID:    input.CustomerID,
		PaymentMethod: input.PaymentMethodID,
		Metadata: map[string]string{
			"order_id":       pendingOrderID,
			"user_id":        userMeta,
			"transfer_group": transferGroup,
			"seller_count":   fmt.Sprint(len(cart.GroupPriced(priced))),
		},
	})
	if err != nil {
		return nil, stripe.Classify(err, "failed to create payment intent")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_intent_id": intent.ID,
		"amount_cents":      amount.Int64(),
	}), "payment intent created")

	return &IntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		AmountCents:     amount,
	}, nil
}

// ConfirmAndPersist writes the order for a succeeded intent and settles it.
// Submitting the same intent twice returns the order written the first time.
func (s *service) ConfirmAndPersist(ctx context.Context, input ConfirmInput) (*models.Order, error) {
	intentID := strings.TrimSpace(input.PaymentIntentID)
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentIntentId is required")
	}
	ctx = s.logg.WithField(ctx, "payment_intent_id", intentID)

	intent, err := s.gateway.GetPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, stripe.Classify(err, "failed to read payment intent")
	}
	if !intent.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment has not completed").
			WithDetails(map[string]any{"status": intent.Status})
	}

	if existing, err := s.orders.FindByPaymentIntentID(ctx, intentID); err == nil {
		return s.settle(ctx, existing, intent)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, orderFailedMessage)
	}

	priced, err := s.pricer.Price(ctx, input.Items)
	if err != nil {
		return nil, err
	}
	total := cart.ComputeIntentAmount(priced)
	if total.Int64() != intent.AmountCents {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"cart_total_cents":   total.Int64(),
			"intent_total_cents": intent.AmountCents,
		}), "cart does not match charged amount", nil)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart does not match the charged amount")
	}

	order := s.buildOrder(intent, priced, input)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if order.UserID != nil {
			if err := s.carts.WithTx(tx).ClearForUser(ctx, *order.UserID); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: "checkout"},
			Data:          orderCreatedPayload(order),
		})
	})
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			// a concurrent confirm won the race
			if existing, findErr := s.orders.FindByPaymentIntentID(ctx, intentID); findErr == nil {
				return s.settle(ctx, existing, intent)
			}
		}
		s.logg.Error(ctx, "order write failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, orderFailedMessage)
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")

	// the webhook also resolves orders by intent id, so this is best effort
	if err := s.gateway.UpdatePaymentIntentMetadata(ctx, intentID, map[string]string{"order_id": order.ID.String()}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to stamp order id on payment intent")
	}
	return s.settle(ctx, order, intent)
}

// settle pays the order out now. The payment_intent.succeeded webhook usually
// lands before the order exists and finds nothing to do.
func (s *service) settle(ctx context.Context, order *models.Order, intent *stripe.PaymentIntent) (*models.Order, error) {
	if _, err := s.settler.Settle(ctx, order, intent, confirmSource); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "order settlement failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, orderFailedMessage)
	}
	return order, nil
}

func (s *service) buildOrder(intent *stripe.PaymentIntent, priced []cart.PricedItem, input ConfirmInput) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          input.UserID,
		TotalCents:      intent.AmountCents,
		Currency:        s.currency,
		PaymentIntentID: intent.ID,
		TransferGroup:   intent.TransferGroup,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		ShippingAddress: input.ShippingAddress.Normalize(),
		Items:           make([]models.OrderItem, 0, len(priced)),
	}
	if order.TransferGroup == "" {
		order.TransferGroup = "order_" + order.ID.String()
	}
	for _, item := range priced {
		fee, net := money.LineShares(item.LineTotalCents, s.feeBps, s.reserveBps)
		order.Items = append(order.Items, models.OrderItem{
			OrderID:          order.ID,
			ToolID:           item.ToolID,
			SellerID:         item.SellerID,
			PriceCents:       item.UnitPriceCents.Int64(),
			Quantity:         item.Quantity,
			LineTotalCents:   item.LineTotalCents.Int64(),
			PlatformFeeCents: fee.Int64(),
			SellerNetCents:   net.Int64(),
		})
	}
	return order
}

func orderCreatedPayload(order *models.Order) payloads.OrderCreatedEvent {
	lines := make([]payloads.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, payloads.OrderLine{
			ToolID:           item.ToolID,
			SellerID:         item.SellerID,
			Quantity:         item.Quantity,
			LineTotalCents:   item.LineTotalCents,
			PlatformFeeCents: item.PlatformFeeCents,
		})
	}
	return payloads.OrderCreatedEvent{
		OrderID:         order.ID,
		UserID:          order.UserID,
		PaymentIntentID: order.PaymentIntentID,
		TotalCents:      order.TotalCents,
		Currency:        order.Currency,
		Lines:           lines,
	}
}
