package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/connect"
	"github.com/benchlot/benchlot-backend/internal/orders"
	"github.com/benchlot/benchlot-backend/internal/payouts"
	"github.com/benchlot/benchlot-backend/internal/users"
	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/dbtest"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

type stubTransfers struct {
	calls []stripe.TransferInput
}

func (s *stubTransfers) CreateTransfer(_ context.Context, in stripe.TransferInput) (*stripe.Transfer, error) {
	s.calls = append(s.calls, in)
	return &stripe.Transfer{ID: "tr_" + in.Destination, AmountCents: in.AmountCents, Destination: in.Destination}, nil
}

type stubAccounts struct{}

func (stubAccounts) GetAccount(context.Context, string) (*stripe.Account, error) {
	return nil, assert.AnError
}

type fixture struct {
	db        *gorm.DB
	users     *users.Repository
	orders    *orders.Repository
	payouts   *payouts.Repository
	transfers *stubTransfers
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, &models.User{}, &models.Order{}, &models.OrderItem{}, &models.SellerPayout{}, &models.OutboxEvent{})
	logg := logger.New(logger.Options{ServiceName: "webhook-test", Output: io.Discard})
	txRunner := pkgdb.FromGorm(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	f := &fixture{
		db:        conn,
		users:     users.NewRepository(conn),
		orders:    orders.NewRepository(conn),
		payouts:   payouts.NewRepository(conn),
		transfers: &stubTransfers{},
	}
	splitter, err := payouts.NewSplitter(payouts.SplitterParams{
		DB:        txRunner,
		Repo:      f.payouts,
		Transfers: f.transfers,
		Sellers:   f.users,
		Outbox:    emitter,
		Logger:    logg,
		FeeBps:    500,
	})
	require.NoError(t, err)
	settler, err := payouts.NewSettler(payouts.SettlerParams{
		DB:       txRunner,
		Orders:   f.orders,
		Splitter: splitter,
		Outbox:   emitter,
		Logger:   logg,
	})
	require.NoError(t, err)
	reconciler, err := connect.NewReconciler(connect.ReconcilerParams{
		DB:       txRunner,
		Users:    f.users,
		Accounts: stubAccounts{},
		Outbox:   emitter,
		Logger:   logg,
	})
	require.NoError(t, err)
	f.service, err = NewService(ServiceParams{
		DB:         txRunner,
		Orders:     f.orders,
		Users:      f.users,
		Settler:    settler,
		Reconciler: reconciler,
		Outbox:     emitter,
		Logger:     logg,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) seller(t *testing.T, account string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	user := &models.User{Email: account + "@benchlot.test"}
	require.NoError(t, f.users.Create(ctx, user))
	require.NoError(t, f.users.AttachAccount(ctx, user.ID, account))
	return user.ID
}

func (f *fixture) pendingOrder(t *testing.T, sellers ...uuid.UUID) *models.Order {
	t.Helper()
	order := &models.Order{
		TotalCents:      int64(len(sellers)) * 10000,
		Currency:        "usd",
		PaymentIntentID: "pi_" + uuid.NewString()[:8],
		TransferGroup:   "order_" + uuid.NewString(),
	}
	for _, seller := range sellers {
		order.Items = append(order.Items, models.OrderItem{
			ToolID: uuid.New(), SellerID: seller, PriceCents: 10000, Quantity: 1,
			LineTotalCents: 10000, PlatformFeeCents: 500, SellerNetCents: 9200,
		})
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	tx := f.db.Model(model)
	if query != "" {
		tx = tx.Where(query, args...)
	}
	require.NoError(t, tx.Count(&n).Error)
	return n
}

func event(t *testing.T, eventType stripego.EventType, obj any) *stripego.Event {
	t.Helper()
	raw, err := json.Marshal(obj)
	require.NoError(t, err)
	return &stripego.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: eventType,
		Data: &stripego.EventData{Raw: raw},
	}
}

func intentPayload(id string, metadata map[string]string) map[string]any {
	return map[string]any{
		"id":             id,
		"object":         "payment_intent",
		"status":         "succeeded",
		"amount":         20000,
		"currency":       "usd",
		"latest_charge":  "ch_webhook",
		"metadata":       metadata,
		"transfer_group": "",
	}
}

func TestPaymentSucceededPaysOrderAndSplits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.pendingOrder(t, f.seller(t, "acct_x"), f.seller(t, "acct_y"))

	evt := event(t, stripego.EventTypePaymentIntentSucceeded,
		intentPayload(order.PaymentIntentID, map[string]string{"order_id": order.ID.String()}))
	require.NoError(t, f.service.HandleEvent(ctx, evt))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, stored.Status)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)

	rows, err := f.payouts.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, call := range f.transfers.calls {
		assert.Equal(t, "ch_webhook", call.SourceTransaction)
	}
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderPaid))
}

func TestPaymentSucceededRedeliveryIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.pendingOrder(t, f.seller(t, "acct_x"), f.seller(t, "acct_y"))
	evt := event(t, stripego.EventTypePaymentIntentSucceeded,
		intentPayload(order.PaymentIntentID, map[string]string{"order_id": order.ID.String()}))

	require.NoError(t, f.service.HandleEvent(ctx, evt))
	require.NoError(t, f.service.HandleEvent(ctx, evt))

	assert.EqualValues(t, 2, f.count(t, &models.SellerPayout{}, "order_id = ?", order.ID))
	assert.Len(t, f.transfers.calls, 2)
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderPaid))
}

func TestPaymentSucceededFallsBackToIntentID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.pendingOrder(t, f.seller(t, "acct_x"))

	evt := event(t, stripego.EventTypePaymentIntentSucceeded,
		intentPayload(order.PaymentIntentID, map[string]string{"order_id": "pending"}))
	require.NoError(t, f.service.HandleEvent(ctx, evt))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.EqualValues(t, 1, f.count(t, &models.SellerPayout{}, ""))
}

func TestPaymentSucceededUnknownIntentIsNoop(t *testing.T) {
	f := newFixture(t)
	evt := event(t, stripego.EventTypePaymentIntentSucceeded, intentPayload("pi_unknown", map[string]string{"order_id": uuid.NewString()}))

	require.NoError(t, f.service.HandleEvent(context.Background(), evt))
	assert.Zero(t, f.count(t, &models.SellerPayout{}, ""))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}, ""))
}

func TestPaymentFailedMarksPendingOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	order := f.pendingOrder(t, f.seller(t, "acct_x"))

	payload := intentPayload(order.PaymentIntentID, map[string]string{"order_id": order.ID.String()})
	payload["status"] = "requires_payment_method"
	payload["last_payment_error"] = map[string]any{"message": "Your card was declined."}
	require.NoError(t, f.service.HandleEvent(ctx, event(t, stripego.EventTypePaymentIntentPaymentFailed, payload)))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFailed, stored.Status)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
	assert.Zero(t, f.count(t, &models.SellerPayout{}, ""))
	assert.Empty(t, f.transfers.calls)
	assert.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOrderPaymentFailed))
}

func TestAccountUpdatedWithoutPayoutsIsPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sellerID := f.seller(t, "acct_review")

	payload := map[string]any{
		"id":                "acct_review",
		"object":            "account",
		"details_submitted": true,
		"charges_enabled":   true,
		"payouts_enabled":   false,
		"requirements":      map[string]any{"currently_due": []string{}, "eventually_due": []string{"individual.ssn_last_4"}},
	}
	require.NoError(t, f.service.HandleEvent(ctx, event(t, stripego.EventTypeAccountUpdated, payload)))

	user, err := f.users.FindByID(ctx, sellerID)
	require.NoError(t, err)
	assert.False(t, user.IsSeller)
	assert.Equal(t, enums.AccountStatusPending, user.StripeAccountStatus)
	assert.Equal(t, []string{"individual.ssn_last_4"}, user.VerificationRequirements.EventuallyDue)
}

func TestAccountUpdatedUsesDerivedStatus(t *testing.T) {
	cases := map[string]struct {
		payload  map[string]any
		want     enums.AccountStatus
		isSeller bool
		due      []string
	}{
		"currently due": {
			payload: map[string]any{
				"details_submitted": true,
				"charges_enabled":   true,
				"payouts_enabled":   true,
				"requirements":      map[string]any{"currently_due": []string{"external_account"}},
			},
			want:     enums.AccountStatusVerificationNeeded,
			isSeller: true,
			due:      []string{"external_account"},
		},
		"details missing": {
			payload: map[string]any{"details_submitted": false},
			want:    enums.AccountStatusMinimal,
		},
		"fully enabled": {
			payload: map[string]any{
				"details_submitted": true,
				"charges_enabled":   true,
				"payouts_enabled":   true,
			},
			want:     enums.AccountStatusActive,
			isSeller: true,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			sellerID := f.seller(t, "acct_derived")

			tc.payload["id"] = "acct_derived"
			tc.payload["object"] = "account"
			require.NoError(t, f.service.HandleEvent(ctx, event(t, stripego.EventTypeAccountUpdated, tc.payload)))

			user, err := f.users.FindByID(ctx, sellerID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, user.StripeAccountStatus)
			assert.Equal(t, tc.isSeller, user.IsSeller)
			if tc.due != nil {
				assert.Equal(t, tc.due, user.VerificationRequirements.CurrentlyDue)
			}
		})
	}
}

func TestAccountUpdatedUnknownAccountIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	payload := map[string]any{"id": "acct_stranger", "object": "account"}
	assert.NoError(t, f.service.HandleEvent(context.Background(), event(t, stripego.EventTypeAccountUpdated, payload)))
}

func TestUnknownEventTypeIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	evt := event(t, stripego.EventType("charge.refunded"), map[string]any{"id": "ch_1"})
	assert.NoError(t, f.service.HandleEvent(context.Background(), evt))
	assert.Zero(t, f.count(t, &models.OutboxEvent{}, ""))
}
