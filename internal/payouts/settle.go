package payouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/orders"
	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/outbox/payloads"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

type orderSplitter interface {
	Split(ctx context.Context, order *models.Order, chargeID string) ([]Result, error)
}

// SettlerParams wires the settler.
type SettlerParams struct {
	DB       pkgdb.TxRunner
	Orders   *orders.Repository
	Splitter orderSplitter
	Outbox   outbox.Emitter
	Logger   *logger.Logger
}

// Settler turns a succeeded payment into a paid order and its seller payouts.
// The payment webhook and checkout confirmation both run it and either may
// arrive first.
type Settler struct {
	db       pkgdb.TxRunner
	orders   *orders.Repository
	splitter orderSplitter
	outbox   outbox.Emitter
	logg     *logger.Logger
}

func NewSettler(p SettlerParams) (*Settler, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("transaction runner required")
	case p.Orders == nil:
		return nil, errors.New("order repository required")
	case p.Splitter == nil:
		return nil, errors.New("payout splitter required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	return &Settler{
		db:       p.DB,
		orders:   p.Orders,
		splitter: p.Splitter,
		outbox:   p.Outbox,
		logg:     p.Logger,
	}, nil
}

// Settle marks the order paid, emitting order_paid only on the transition,
// and then splits it. Running it again claims any seller left without a
// payout row and skips the rest.
func (s *Settler) Settle(ctx context.Context, order *models.Order, intent *stripe.PaymentIntent, source string) ([]Result, error) {
	if order == nil || intent == nil {
		return nil, errors.New("order and payment intent required")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	var changed bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		changed, err = s.orders.WithTx(tx).MarkPaid(ctx, order.ID)
		if err != nil || !changed {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Source: source},
			Data: payloads.OrderPaidEvent{
				OrderID:         order.ID,
				PaymentIntentID: intent.ID,
				TotalCents:      order.TotalCents,
				SellerCount:     sellerCount(order.Items),
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	if changed {
		order.Status = enums.OrderStatusProcessing
		order.PaymentStatus = enums.PaymentStatusPaid
	}

	results, err := s.splitter.Split(ctx, order, intent.LatestCharge)
	if err != nil {
		return results, fmt.Errorf("split payouts: %w", err)
	}
	failed := 0
	for _, res := range results {
		if res.Status == enums.PayoutStatusFailed {
			failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"source":         source,
		"newly_paid":     changed,
		"sellers":        len(results),
		"failed_payouts": failed,
	}), "order settled")
	return results, nil
}

func sellerCount(items []models.OrderItem) int {
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		seen[item.SellerID] = struct{}{}
	}
	return len(seen)
}
