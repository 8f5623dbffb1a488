package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/connect"
	"github.com/benchlot/benchlot-backend/internal/orders"
	"github.com/benchlot/benchlot-backend/internal/payouts"
	"github.com/benchlot/benchlot-backend/internal/users"
	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/outbox/payloads"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

const webhookSource = "stripe_webhook"

type orderSettler interface {
	Settle(ctx context.Context, order *models.Order, intent *stripe.PaymentIntent, source string) ([]payouts.Result, error)
}

type accountApplier interface {
	Apply(ctx context.Context, user *models.User, acct *stripe.Account, fromWebhook bool) (*connect.Snapshot, error)
}

type ServiceParams struct {
	DB         pkgdb.TxRunner
	Orders     *orders.Repository
	Users      *users.Repository
	Settler    orderSettler
	Reconciler accountApplier
	Outbox     outbox.Emitter
	Logger     *logger.Logger
}

// Service routes verified Stripe events to the order, payout, and seller flows.
type Service struct {
	db         pkgdb.TxRunner
	orders     *orders.Repository
	users      *users.Repository
	settler    orderSettler
	reconciler accountApplier
	outbox     outbox.Emitter
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	case params.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repo required")
	case params.Settler == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order settler required")
	case params.Reconciler == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account reconciler required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		db:         params.DB,
		orders:     params.Orders,
		users:      params.Users,
		settler:    params.Settler,
		reconciler: params.Reconciler,
		outbox:     params.Outbox,
		logg:       params.Logger,
	}, nil
}

// HandleEvent processes one verified event. Returning an error makes the
// caller answer 500 so Stripe redelivers.
func (s *Service) HandleEvent(ctx context.Context, event *stripego.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithStripeEvent(ctx, event.ID, string(event.Type))

	switch event.Type {
	case stripego.EventTypePaymentIntentSucceeded:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.handlePaymentSucceeded(ctx, intent)
	case stripego.EventTypePaymentIntentPaymentFailed:
		intent, err := decodeIntent(event)
		if err != nil {
			return err
		}
		return s.handlePaymentFailed(ctx, intent)
	case stripego.EventTypeAccountUpdated:
		var acct stripego.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account event")
		}
		return s.handleAccountUpdated(ctx, stripe.AccountFromStripe(&acct))
	default:
		s.logg.Info(ctx, "unhandled stripe event type")
		return nil
	}
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, intent *stripe.PaymentIntent) error {
	order, err := s.resolveOrder(ctx, intent)
	if err != nil || order == nil {
		return err
	}
	if _, err := s.settler.Settle(ctx, order, intent, webhookSource); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle order")
	}
	return nil
}

func (s *Service) handlePaymentFailed(ctx context.Context, intent *stripe.PaymentIntent) error {
	order, err := s.resolveOrder(ctx, intent)
	if err != nil || order == nil {
		return err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.orders.WithTx(tx).MarkPaymentFailed(ctx, order.ID)
		if err != nil || !changed {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: webhookSource},
			Data: payloads.OrderPaymentFailedEvent{
				OrderID:         order.ID,
				PaymentIntentID: intent.ID,
				Reason:          intent.LastError,
			},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order payment failed")
	}
	s.logg.Warn(s.logg.WithField(ctx, "reason", intent.LastError), "order payment failed")
	return nil
}

func (s *Service) handleAccountUpdated(ctx context.Context, acct *stripe.Account) error {
	if acct == nil || acct.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id missing")
	}
	ctx = s.logg.WithField(ctx, "stripe_account_id", acct.ID)
	user, err := s.users.FindByStripeAccountID(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "account.updated for unknown seller")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	_, err = s.reconciler.Apply(s.logg.WithUserID(ctx, user.ID.String()), user, acct, true)
	return err
}

// resolveOrder prefers the order id stamped on the intent and falls back to
// the intent id. A nil order with nil error means nothing to do.
func (s *Service) resolveOrder(ctx context.Context, intent *stripe.PaymentIntent) (*models.Order, error) {
	ctx = s.logg.WithField(ctx, "payment_intent_id", intent.ID)
	if orderID, err := uuid.Parse(intent.Metadata["order_id"]); err == nil {
		order, err := s.orders.FindByID(ctx, orderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
	}
	order, err := s.orders.FindByPaymentIntentID(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "no order for payment intent")
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func decodeIntent(event *stripego.Event) (*stripe.PaymentIntent, error) {
	var pi stripego.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("decode %s event", event.Type))
	}
	if pi.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	return stripe.PaymentIntentFromStripe(&pi), nil
}
