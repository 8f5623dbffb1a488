package payouts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/users"
	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/dbtest"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

type fakeTransfers struct {
	calls   []stripe.TransferInput
	failFor map[string]error
}

func (f *fakeTransfers) CreateTransfer(_ context.Context, in stripe.TransferInput) (*stripe.Transfer, error) {
	f.calls = append(f.calls, in)
	if err := f.failFor[in.Destination]; err != nil {
		return nil, err
	}
	return &stripe.Transfer{ID: "tr_" + in.Destination, AmountCents: in.AmountCents, Destination: in.Destination}, nil
}

type fakeIntents struct{ charge string }

func (f fakeIntents) GetPaymentIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	return &stripe.PaymentIntent{ID: id, Status: "succeeded", LatestCharge: f.charge}, nil
}

type orderByID struct{ db *gorm.DB }

func (o orderByID) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := o.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error
	return &order, err
}

type harness struct {
	db        *gorm.DB
	repo      *Repository
	users     *users.Repository
	transfers *fakeTransfers
	splitter  *Splitter
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t, &models.User{}, &models.Order{}, &models.OrderItem{}, &models.SellerPayout{}, &models.OutboxEvent{})
	logg := logger.New(logger.Options{ServiceName: "payouts-test", Output: io.Discard})
	h := &harness{
		db:        conn,
		repo:      NewRepository(conn),
		users:     users.NewRepository(conn),
		transfers: &fakeTransfers{failFor: map[string]error{}},
		now:       time.Now(),
	}
	splitter, err := NewSplitter(SplitterParams{
		DB:        pkgdb.FromGorm(conn),
		Repo:      h.repo,
		Transfers: h.transfers,
		Intents:   fakeIntents{charge: "ch_retry"},
		Sellers:   h.users,
		Orders:    orderByID{db: conn},
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:    logg,
		FeeBps:    500,
		Currency:  "usd",

		PendingLease: 10 * time.Minute,
		Now:          func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.splitter = splitter
	return h
}

func (h *harness) seller(t *testing.T, account string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Email: account + "@benchlot.test"}
	require.NoError(t, h.users.Create(ctx, user))
	require.NoError(t, h.users.AttachAccount(ctx, user.ID, account))
	return user.ID
}

// paidOrder builds the two-seller order: tool A 100.00 x1 from X, tool B 50.00 x2 from Y.
func (h *harness) paidOrder(t *testing.T, sellerX, sellerY uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		TotalCents:      20000,
		Currency:        "usd",
		PaymentIntentID: "pi_" + uuid.NewString(),
		TransferGroup:   "order_" + uuid.NewString(),
		Status:          enums.OrderStatusPaid,
		PaymentStatus:   enums.PaymentStatusPaid,
		Items: []models.OrderItem{
			{ToolID: uuid.New(), SellerID: sellerX, PriceCents: 10000, Quantity: 1, LineTotalCents: 10000, PlatformFeeCents: 500, SellerNetCents: 9200},
			{ToolID: uuid.New(), SellerID: sellerY, PriceCents: 5000, Quantity: 2, LineTotalCents: 10000, PlatformFeeCents: 500, SellerNetCents: 9200},
		},
	}
	require.NoError(t, h.db.Create(order).Error)
	return order
}

func TestSplitTwoSellers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	x, y := h.seller(t, "acct_x"), h.seller(t, "acct_y")
	order := h.paidOrder(t, x, y)

	results, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)
	require.Len(t, results, 2)

	rows, err := h.repo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var fees, nets int64
	for _, row := range rows {
		assert.Equal(t, enums.PayoutStatusCompleted, row.Status)
		assert.EqualValues(t, 10000, row.GrossCents)
		assert.EqualValues(t, 500, row.PlatformFeeCents)
		assert.EqualValues(t, 9500, row.AmountCents)
		assert.Equal(t, 1, row.Attempts)
		require.NotNil(t, row.StripeTransferID)
		fees += row.PlatformFeeCents
		nets += row.AmountCents
	}
	assert.EqualValues(t, order.TotalCents, fees+nets)

	require.Len(t, h.transfers.calls, 2)
	for _, call := range h.transfers.calls {
		assert.Equal(t, order.TransferGroup, call.TransferGroup)
		assert.Equal(t, "ch_123", call.SourceTransaction)
		assert.Contains(t, call.IdempotencyKey, "payout_"+order.ID.String()+"_")
	}

	var events int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventSellerPayoutCompleted).Count(&events).Error)
	assert.EqualValues(t, 2, events)
}

func TestSplitRedeliveryAddsNoRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.paidOrder(t, h.seller(t, "acct_x"), h.seller(t, "acct_y"))

	_, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)
	results, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)

	for _, res := range results {
		assert.True(t, res.Skipped)
	}
	rows, err := h.repo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, h.transfers.calls, 2)
}

func TestSplitFailedSellerDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	x, y := h.seller(t, "acct_x"), h.seller(t, "acct_y")
	h.transfers.failFor["acct_x"] = errors.New("insufficient available balance")
	order := h.paidOrder(t, x, y)

	results, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byseller := map[uuid.UUID]Result{}
	for _, r := range results {
		byseller[r.SellerID] = r
	}
	assert.Equal(t, enums.PayoutStatusFailed, byseller[x].Status)
	assert.Contains(t, byseller[x].Reason, "insufficient")
	assert.Equal(t, enums.PayoutStatusCompleted, byseller[y].Status)
}

func TestSplitSellerWithoutAccountFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	buyerOnly := &models.User{Email: "nobody@benchlot.test"}
	require.NoError(t, h.users.Create(ctx, buyerOnly))
	order := h.paidOrder(t, buyerOnly.ID, h.seller(t, "acct_y"))

	_, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)

	rows, err := h.repo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	statuses := map[enums.PayoutStatus]int{}
	for _, r := range rows {
		statuses[r.Status]++
	}
	assert.Equal(t, 1, statuses[enums.PayoutStatusFailed])
	assert.Equal(t, 1, statuses[enums.PayoutStatusCompleted])
	assert.Len(t, h.transfers.calls, 1)
}

func TestRetryFailedPayoutUsesSameKey(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	x, y := h.seller(t, "acct_x"), h.seller(t, "acct_y")
	h.transfers.failFor["acct_x"] = errors.New("temporarily unavailable")
	order := h.paidOrder(t, x, y)

	_, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)

	failed, err := h.splitter.ListRetryable(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	delete(h.transfers.failFor, "acct_x")
	res, err := h.splitter.Retry(ctx, failed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusCompleted, res.Status)

	last := h.transfers.calls[len(h.transfers.calls)-1]
	assert.Equal(t, IdempotencyKey(order.ID, x), last.IdempotencyKey)
	assert.Equal(t, "ch_retry", last.SourceTransaction)

	payout, err := h.repo.FindByID(ctx, failed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, payout.Attempts)

	again, err := h.splitter.Retry(ctx, failed[0].ID)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

func TestAbandonedPendingPayoutIsRecoveredAfterLease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.paidOrder(t, h.seller(t, "acct_x"), h.seller(t, "acct_y"))

	// the transfer goes through but its outcome cannot be recorded
	require.NoError(t, h.db.Migrator().DropTable(&models.OutboxEvent{}))
	_, err := h.splitter.Split(ctx, order, "ch_123")
	require.Error(t, err)
	require.Len(t, h.transfers.calls, 1)
	stuckKey := h.transfers.calls[0].IdempotencyKey
	require.NoError(t, h.db.AutoMigrate(&models.OutboxEvent{}))

	results, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)
	skipped := 0
	for _, res := range results {
		if res.Skipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped, "redelivery leaves the claimed payout to the lease")

	candidates, err := h.splitter.ListRetryable(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates, "lease still running")

	h.now = h.now.Add(time.Hour)
	candidates, err = h.splitter.ListRetryable(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, enums.PayoutStatusPending, candidates[0].Status)

	res, err := h.splitter.Retry(ctx, candidates[0].ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusCompleted, res.Status)
	last := h.transfers.calls[len(h.transfers.calls)-1]
	assert.Equal(t, stuckKey, last.IdempotencyKey)

	rows, err := h.repo.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, enums.PayoutStatusCompleted, row.Status)
	}

	again, err := h.splitter.Retry(ctx, candidates[0].ID)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

func TestStoredStripeFailureWaitsForReplayWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	x, y := h.seller(t, "acct_x"), h.seller(t, "acct_y")
	h.transfers.failFor["acct_x"] = &stripego.Error{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           stripego.ErrorCodeBalanceInsufficient,
		Msg:            "insufficient available funds",
	}
	order := h.paidOrder(t, x, y)

	_, err := h.splitter.Split(ctx, order, "ch_123")
	require.NoError(t, err)

	candidates, err := h.splitter.ListRetryable(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	h.now = h.now.Add(stripe.ReplayWindow + time.Minute)
	candidates, err = h.splitter.ListRetryable(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, x, candidates[0].SellerID)
	require.NotNil(t, candidates[0].RetryAfter)
}

func TestShares(t *testing.T) {
	seller := uuid.New()
	shares := Shares([]models.OrderItem{
		{SellerID: seller, LineTotalCents: 333},
		{SellerID: seller, LineTotalCents: 1000},
	}, 500)
	require.Len(t, shares, 1)
	assert.EqualValues(t, 1333, shares[0].Split.Gross)
	assert.EqualValues(t, 67, shares[0].Split.PlatformFee)
	assert.EqualValues(t, 1266, shares[0].Split.SellerNet)
}
