package payouts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/metrics"
	"github.com/benchlot/benchlot-backend/pkg/money"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/outbox/payloads"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"

	defaultPendingLease = 15 * time.Minute
)

type transferCreator interface {
	CreateTransfer(ctx context.Context, input stripe.TransferInput) (*stripe.Transfer, error)
}

type intentReader interface {
	GetPaymentIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error)
}

type sellerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type orderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// SplitterParams wires the payout splitter.
type SplitterParams struct {
	DB        pkgdb.TxRunner
	Repo      *Repository
	Transfers transferCreator
	Intents   intentReader
	Sellers   sellerLookup
	Orders    orderLookup
	Outbox    outbox.Emitter
	Metrics   *metrics.PaymentMetrics
	Logger    *logger.Logger
	FeeBps    int64
	Currency  string
	// PendingLease is how long a claimed payout may stay pending before a
	// retry pass treats its writer as gone.
	PendingLease time.Duration
	Now          func() time.Time
}

// Splitter fans a paid order out into one transfer per seller.
type Splitter struct {
	db        pkgdb.TxRunner
	repo      *Repository
	transfers transferCreator
	intents   intentReader
	sellers   sellerLookup
	orders    orderLookup
	outbox    outbox.Emitter
	metrics   *metrics.PaymentMetrics
	logg      *logger.Logger
	feeBps    int64
	currency  string
	lease     time.Duration
	now       func() time.Time
}

func NewSplitter(p SplitterParams) (*Splitter, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("transaction runner required")
	case p.Repo == nil:
		return nil, errors.New("payout repository required")
	case p.Transfers == nil:
		return nil, errors.New("transfer creator required")
	case p.Sellers == nil:
		return nil, errors.New("seller lookup required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	currency := p.Currency
	if currency == "" {
		currency = "usd"
	}
	lease := p.PendingLease
	if lease <= 0 {
		lease = defaultPendingLease
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Splitter{
		db:        p.DB,
		repo:      p.Repo,
		transfers: p.Transfers,
		intents:   p.Intents,
		sellers:   p.Sellers,
		orders:    p.Orders,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
		logg:      p.Logger,
		feeBps:    p.FeeBps,
		currency:  currency,
		lease:     lease,
		now:       now,
	}, nil
}

// SellerShare is one seller's portion of an order.
type SellerShare struct {
	SellerID uuid.UUID
	Split    money.Split
}

// Result reports what happened for one seller.
type Result struct {
	SellerID   uuid.UUID
	PayoutID   uuid.UUID
	Status     enums.PayoutStatus
	Skipped    bool
	TransferID string
	Reason     string
}

// Shares groups order items by seller and splits each seller's gross into the
// platform fee and the seller net. Output is ordered by seller id.
func Shares(items []models.OrderItem, feeBps int64) []SellerShare {
	gross := map[uuid.UUID]money.Cents{}
	for _, item := range items {
		gross[item.SellerID] += money.Cents(item.LineTotalCents)
	}
	out := make([]SellerShare, 0, len(gross))
	for sellerID, amount := range gross {
		out = append(out, SellerShare{SellerID: sellerID, Split: money.SplitFee(amount, feeBps)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SellerID.String() < out[j].SellerID.String()
	})
	return out
}

// Split claims and transfers every seller's share. A seller whose transfer
// fails is recorded as failed and never blocks the others. Only persistence
// failures are returned.
func (s *Splitter) Split(ctx context.Context, order *models.Order, chargeID string) ([]Result, error) {
	if order == nil {
		return nil, errors.New("order required")
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	shares := Shares(order.Items, s.feeBps)
	results := make([]Result, 0, len(shares))
	for _, share := range shares {
		payout := &models.SellerPayout{
			OrderID:          order.ID,
			SellerID:         share.SellerID,
			GrossCents:       share.Split.Gross.Int64(),
			PlatformFeeCents: share.Split.PlatformFee.Int64(),
			AmountCents:      share.Split.SellerNet.Int64(),
		}
		claimed, err := s.repo.Claim(ctx, payout)
		if err != nil {
			return results, fmt.Errorf("claim payout for seller %s: %w", share.SellerID, err)
		}
		if !claimed {
			s.logg.Info(s.logg.WithSellerID(ctx, share.SellerID.String()), "payout already claimed, skipping")
			s.metrics.ObserveTransfer(outcomeSkipped, 0)
			results = append(results, Result{SellerID: share.SellerID, Skipped: true})
			continue
		}

		res, err := s.transfer(ctx, order, payout, chargeID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ListRetryable returns failed payouts due for another attempt and pending
// payouts whose lease has run out.
func (s *Splitter) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.SellerPayout, error) {
	now := s.now()
	return s.repo.ListRetryable(ctx, RetryWindow{
		MaxAttempts: maxAttempts,
		Limit:       limit,
		Now:         now,
		StaleBefore: now.Add(-s.lease),
	})
}

// Retry re-attempts a failed or abandoned payout with the same idempotency
// key, so a transfer Stripe already made is returned instead of repeated.
func (s *Splitter) Retry(ctx context.Context, payoutID uuid.UUID) (Result, error) {
	if s.orders == nil || s.intents == nil {
		return Result{}, errors.New("retry requires order and intent lookups")
	}
	now := s.now()
	claimed, err := s.repo.ClaimRetry(ctx, payoutID, now, now.Add(-s.lease))
	if err != nil {
		return Result{}, fmt.Errorf("claim retry %s: %w", payoutID, err)
	}
	if !claimed {
		return Result{PayoutID: payoutID, Skipped: true}, nil
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		return Result{}, fmt.Errorf("load payout %s: %w", payoutID, err)
	}
	order, err := s.orders.FindByID(ctx, payout.OrderID)
	if err != nil {
		return Result{}, fmt.Errorf("load order %s: %w", payout.OrderID, err)
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	intent, err := s.intents.GetPaymentIntent(ctx, order.PaymentIntentID)
	if err != nil {
		reason := fmt.Sprintf("read payment intent: %v", err)
		if markErr := s.finish(ctx, order, payout, "", reason, nil); markErr != nil {
			return Result{}, markErr
		}
		return Result{SellerID: payout.SellerID, PayoutID: payout.ID, Status: enums.PayoutStatusFailed, Reason: reason}, nil
	}
	return s.transfer(ctx, order, payout, intent.LatestCharge)
}

func (s *Splitter) transfer(ctx context.Context, order *models.Order, payout *models.SellerPayout, chargeID string) (Result, error) {
	ctx = s.logg.WithSellerID(ctx, payout.SellerID.String())
	result := Result{SellerID: payout.SellerID, PayoutID: payout.ID}

	destination, reason := s.destination(ctx, payout.SellerID)
	if reason == "" && payout.AmountCents <= 0 {
		reason = "seller net is not positive"
	}

	transferID := ""
	var retryAfter *time.Time
	if reason == "" {
		transfer, err := s.transfers.CreateTransfer(ctx, stripe.TransferInput{
			AmountCents:       payout.AmountCents,
			Currency:          s.currency,
			Destination:       destination,
			TransferGroup:     order.TransferGroup,
			SourceTransaction: chargeID,
			IdempotencyKey:    IdempotencyKey(order.ID, payout.SellerID),
			Metadata: map[string]string{
				"order_id":  order.ID.String(),
				"seller_id": payout.SellerID.String(),
				"payout_id": payout.ID.String(),
			},
		})
		if err != nil {
			reason = err.Error()
			if stripe.ResultStored(err) {
				// the same key replays this error until the window passes
				at := s.now().Add(stripe.ReplayWindow)
				retryAfter = &at
			}
		} else {
			transferID = transfer.ID
		}
	}

	if err := s.finish(ctx, order, payout, transferID, reason, retryAfter); err != nil {
		return result, err
	}
	if reason != "" {
		s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "seller transfer failed")
		s.metrics.ObserveTransfer(outcomeFailed, payout.AmountCents)
		result.Status = enums.PayoutStatusFailed
		result.Reason = reason
		return result, nil
	}
	s.logg.Info(s.logg.WithField(ctx, "transfer_id", transferID), "seller transfer completed")
	s.metrics.ObserveTransfer(outcomeCompleted, payout.AmountCents)
	result.Status = enums.PayoutStatusCompleted
	result.TransferID = transferID
	return result, nil
}

// finish records the transfer outcome and its outbox event atomically.
func (s *Splitter) finish(ctx context.Context, order *models.Order, payout *models.SellerPayout, transferID, reason string, retryAfter *time.Time) error {
	event := payloads.SellerPayoutEvent{
		PayoutID:         payout.ID,
		OrderID:          order.ID,
		SellerID:         payout.SellerID,
		AmountCents:      payout.AmountCents,
		PlatformFeeCents: payout.PlatformFeeCents,
		TransferID:       transferID,
		FailureReason:    reason,
		Attempts:         payout.Attempts + 1,
	}
	eventType := enums.EventSellerPayoutCompleted
	if reason != "" {
		eventType = enums.EventSellerPayoutFailed
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		if reason != "" {
			err = repo.MarkFailed(ctx, payout.ID, reason, retryAfter)
		} else {
			err = repo.MarkCompleted(ctx, payout.ID, transferID)
		}
		if err != nil {
			return fmt.Errorf("record payout %s: %w", payout.ID, err)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateSellerPayout,
			AggregateID:   payout.ID,
			Actor:         &outbox.ActorRef{Source: "payout_splitter"},
			Data:          event,
		})
	})
}

func (s *Splitter) destination(ctx context.Context, sellerID uuid.UUID) (string, string) {
	seller, err := s.sellers.FindByID(ctx, sellerID)
	if err != nil {
		return "", fmt.Sprintf("load seller: %v", err)
	}
	if !seller.HasConnectAccount() {
		return "", "seller has no connected account"
	}
	return *seller.StripeAccountID, ""
}

// IdempotencyKey is the Stripe idempotency key for one seller's transfer.
func IdempotencyKey(orderID, sellerID uuid.UUID) string {
	return fmt.Sprintf("payout_%s_%s", orderID, sellerID)
}
