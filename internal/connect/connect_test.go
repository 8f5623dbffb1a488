package connect

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/users"
	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/dbtest"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
)

type fakeGateway struct {
	accounts   map[string]*stripe.Account
	getErr     error
	createErr  error
	created    int
	links      []string
	loginLinks []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{accounts: map[string]*stripe.Account{}}
}

func (f *fakeGateway) GetAccount(_ context.Context, id string) (*stripe.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	acct, ok := f.accounts[id]
	if !ok {
		return nil, &stripego.Error{Code: stripego.ErrorCodeResourceMissing, Msg: "No such account"}
	}
	return acct, nil
}

func (f *fakeGateway) CreateExpressAccount(_ context.Context, in stripe.CreateAccountInput) (*stripe.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	acct := &stripe.Account{
		ID:       "acct_" + uuid.NewString()[:8],
		Email:    in.Email,
		Metadata: map[string]string{"user_id": in.UserID},
	}
	f.accounts[acct.ID] = acct
	return acct, nil
}

func (f *fakeGateway) CreateAccountLink(_ context.Context, id, returnURL, refreshURL string) (string, error) {
	f.links = append(f.links, id)
	return "https://connect.stripe.test/setup/" + id + "?return=" + returnURL + "&refresh=" + refreshURL, nil
}

func (f *fakeGateway) CreateLoginLink(_ context.Context, id string) (string, error) {
	f.loginLinks = append(f.loginLinks, id)
	return "https://connect.stripe.test/express/" + id, nil
}

type harness struct {
	db         *gorm.DB
	users      *users.Repository
	gateway    *fakeGateway
	reconciler *Reconciler
	now        time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t, &models.User{}, &models.StripeToken{}, &models.OutboxEvent{})
	logg := logger.New(logger.Options{ServiceName: "connect-test", Output: io.Discard})
	h := &harness{
		db:      conn,
		users:   users.NewRepository(conn),
		gateway: newFakeGateway(),
		now:     time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	reconciler, err := NewReconciler(ReconcilerParams{
		DB:       pkgdb.FromGorm(conn),
		Users:    h.users,
		Accounts: h.gateway,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:   logg,
		Now:      func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.reconciler = reconciler
	return h
}

func (h *harness) service(t *testing.T, allowMock bool) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Users:             h.users,
		Tokens:            NewTokenRepository(h.db),
		Gateway:           h.gateway,
		Reconciler:        h.reconciler,
		Logger:            logger.New(logger.Options{ServiceName: "connect-test", Output: io.Discard}),
		Frontend:          frontend(),
		AllowMockAccounts: allowMock,
		Now:               func() time.Time { return h.now },
	})
	require.NoError(t, err)
	return svc
}

func (h *harness) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email}
	require.NoError(t, h.users.Create(context.Background(), user))
	return user
}

func (h *harness) reload(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	user, err := h.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (h *harness) countEvents(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).Count(&n).Error)
	return n
}
