package connect

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/users"
	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/outbox"
	"github.com/benchlot/benchlot-backend/pkg/outbox/payloads"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

const (
	rejectedPrefix = "rejected."
	mockPrefix     = "acct_mock_"
)

type accountReader interface {
	GetAccount(ctx context.Context, accountID string) (*stripe.Account, error)
}

// DeriveAccountStatus is the only place a Connect account is mapped onto the
// seller status. Every status read and the account.updated webhook go through it.
func DeriveAccountStatus(acct *stripe.Account) enums.AccountStatus {
	switch {
	case acct == nil:
		return enums.AccountStatusNone
	case strings.HasPrefix(acct.Requirements.DisabledReason, rejectedPrefix):
		return enums.AccountStatusRejected
	case !acct.DetailsSubmitted:
		return enums.AccountStatusMinimal
	case acct.ChargesEnabled && acct.PayoutsEnabled && !acct.Requirements.HasOutstanding():
		return enums.AccountStatusActive
	case acct.Requirements.HasOutstanding():
		return enums.AccountStatusVerificationNeeded
	default:
		return enums.AccountStatusPending
	}
}

// IsMockAccount reports whether the id was issued locally instead of by Stripe.
func IsMockAccount(accountID string) bool {
	return strings.HasPrefix(accountID, mockPrefix)
}

// MockAccountID is the deterministic local account id for a user.
func MockAccountID(userID uuid.UUID) string {
	return mockPrefix + strings.ReplaceAll(userID.String(), "-", "")
}

// Snapshot is the reconciled view of one seller.
type Snapshot struct {
	User    *models.User
	Account *stripe.Account
	Status  enums.AccountStatus
}

// ReconcilerParams wires the status reconciler.
type ReconcilerParams struct {
	DB       pkgdb.TxRunner
	Users    *users.Repository
	Accounts accountReader
	Outbox   outbox.Emitter
	Logger   *logger.Logger
	Now      func() time.Time
}

// Reconciler re-reads Connect accounts and writes the derived state through to users.
type Reconciler struct {
	db       pkgdb.TxRunner
	users    *users.Repository
	accounts accountReader
	outbox   outbox.Emitter
	logg     *logger.Logger
	now      func() time.Time
}

func NewReconciler(p ReconcilerParams) (*Reconciler, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("transaction runner required")
	case p.Users == nil:
		return nil, errors.New("users repository required")
	case p.Accounts == nil:
		return nil, errors.New("account reader required")
	case p.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		db:       p.DB,
		users:    p.Users,
		accounts: p.Accounts,
		outbox:   p.Outbox,
		logg:     p.Logger,
		now:      now,
	}, nil
}

// Reconcile fetches the user's Connect account and persists the derived state.
// Every call queries Stripe; keep it off hot paths.
func (r *Reconciler) Reconcile(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load user")
	}
	ctx = r.logg.WithUserID(ctx, userID.String())

	if !user.HasConnectAccount() {
		return &Snapshot{User: user, Status: enums.AccountStatusNone}, nil
	}
	accountID := *user.StripeAccountID
	if IsMockAccount(accountID) {
		return &Snapshot{User: user, Account: mockAccount(accountID, user), Status: user.StripeAccountStatus}, nil
	}

	acct, err := r.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, stripe.Classify(err, "failed to read connected account")
	}
	return r.Apply(ctx, user, acct, false)
}

// Apply persists the state derived from an account payload. Webhook updates
// also recompute is_seller; read-through reconciles leave it alone.
func (r *Reconciler) Apply(ctx context.Context, user *models.User, acct *stripe.Account, fromWebhook bool) (*Snapshot, error) {
	if user == nil {
		return nil, errors.New("user required")
	}
	status := DeriveAccountStatus(acct)
	state := users.ConnectState{
		Status:       status,
		Progress:     enums.OnboardingProgressFor(status),
		Requirements: types.AccountRequirements{},
		CheckedAt:    r.now().UTC(),
	}
	if acct != nil {
		state.Requirements = acct.Requirements
	}
	if fromWebhook {
		canSell := acct != nil && acct.DetailsSubmitted && acct.ChargesEnabled && acct.PayoutsEnabled
		state.IsSeller = &canSell
	}
	activated := status == enums.AccountStatusActive && user.StripeAccountStatus != enums.AccountStatusActive

	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := r.users.WithTx(tx).UpdateConnectState(ctx, user.ID, state); err != nil {
			return err
		}
		if !activated {
			return nil
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerAccountActivated,
			AggregateType: enums.AggregateSeller,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: &user.ID, Source: "connect_reconciler"},
			Data: payloads.SellerAccountActivatedEvent{
				UserID:          user.ID,
				StripeAccountID: acct.ID,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to persist account status")
	}

	if user.StripeAccountStatus != status {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"from_status": user.StripeAccountStatus,
			"to_status":   status,
		}), "seller account status changed")
	}

	user.StripeAccountStatus = status
	user.OnboardingProgress = state.Progress
	user.VerificationRequirements = state.Requirements
	user.LastRequirementsCheck = &state.CheckedAt
	if state.IsSeller != nil {
		user.IsSeller = *state.IsSeller
	}
	return &Snapshot{User: user, Account: acct, Status: status}, nil
}

func mockAccount(accountID string, user *models.User) *stripe.Account {
	return &stripe.Account{
		ID:           accountID,
		Email:        user.Email,
		Requirements: user.VerificationRequirements,
		Metadata:     map[string]string{"user_id": user.ID.String()},
	}
}
