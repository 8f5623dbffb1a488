package connect

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/internal/users"
	"github.com/benchlot/benchlot-backend/pkg/config"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/security"
	"github.com/benchlot/benchlot-backend/pkg/stripe"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

const (
	onboardingReturnPath  = "/seller/onboarding/complete"
	onboardingRefreshPath = "/seller/onboarding/refresh"
	mockDashboardPath     = "/seller/dashboard"
	defaultTokenTTL       = 24 * time.Hour
	onboardingTokenBytes  = 32
)

type accountGateway interface {
	accountReader
	CreateExpressAccount(ctx context.Context, input stripe.CreateAccountInput) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, accountID, returnURL, refreshURL string) (string, error)
	CreateLoginLink(ctx context.Context, accountID string) (string, error)
}

// AccountRef identifies the seller's Connect account.
type AccountRef struct {
	AccountID string
	IsNew     bool
}

// StatusView is the seller status payload returned by /connect/status.
type StatusView struct {
	AccountID          string                    `json:"accountId"`
	DetailsSubmitted   bool                      `json:"detailsSubmitted"`
	ChargesEnabled     bool                      `json:"chargesEnabled"`
	PayoutsEnabled     bool                      `json:"payoutsEnabled"`
	Requirements       types.AccountRequirements `json:"requirements"`
	Status             string                    `json:"status"`
	CanSell            bool                      `json:"can_sell"`
	CanReceiveFunds    bool                      `json:"can_receive_funds"`
	CurrentlyDueCount  int                       `json:"currently_due_count"`
	EventuallyDueCount int                       `json:"eventually_due_count"`
}

// OnboardingToken is the bearer half of an emailed onboarding link.
type OnboardingToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service manages seller Connect accounts.
type Service interface {
	EnsureAccount(ctx context.Context, userID uuid.UUID) (*AccountRef, error)
	CreateOnboardingLink(ctx context.Context, accountID string) (string, error)
	Onboard(ctx context.Context, userID uuid.UUID) (string, error)
	GetStatus(ctx context.Context, userID uuid.UUID) (*StatusView, error)
	DashboardLink(ctx context.Context, userID uuid.UUID) (string, error)
	Requirements(ctx context.Context, userID uuid.UUID) (*RequirementsView, error)
	IssueOnboardingToken(ctx context.Context, userID uuid.UUID) (*OnboardingToken, error)
	RedeemOnboardingToken(ctx context.Context, token string) (string, error)
}

// ServiceParams wires the Connect service. AllowMockAccounts must only be set
// outside production.
type ServiceParams struct {
	Users             *users.Repository
	Tokens            *TokenRepository
	Gateway           accountGateway
	Reconciler        *Reconciler
	Logger            *logger.Logger
	Frontend          config.FrontendConfig
	AllowMockAccounts bool
	TokenTTL          time.Duration
	Now               func() time.Time
}

type service struct {
	users      *users.Repository
	tokens     *TokenRepository
	gateway    accountGateway
	reconciler *Reconciler
	logg       *logger.Logger
	frontend   config.FrontendConfig
	allowMock  bool
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Users == nil:
		return nil, errors.New("users repository required")
	case p.Tokens == nil:
		return nil, errors.New("token repository required")
	case p.Gateway == nil:
		return nil, errors.New("stripe gateway required")
	case p.Reconciler == nil:
		return nil, errors.New("reconciler required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	}
	ttl := p.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:      p.Users,
		tokens:     p.Tokens,
		gateway:    p.Gateway,
		reconciler: p.Reconciler,
		logg:       p.Logger,
		frontend:   p.Frontend,
		allowMock:  p.AllowMockAccounts,
		tokenTTL:   ttl,
		now:        now,
	}, nil
}

// EnsureAccount returns the seller's Connect account, creating one when none
// is stored or Stripe no longer knows the stored id.
func (s *service) EnsureAccount(ctx context.Context, userID uuid.UUID) (*AccountRef, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	if user.HasConnectAccount() {
		accountID := *user.StripeAccountID
		if IsMockAccount(accountID) {
			return &AccountRef{AccountID: accountID}, nil
		}
		_, err := s.gateway.GetAccount(ctx, accountID)
		switch {
		case err == nil:
			return &AccountRef{AccountID: accountID}, nil
		case stripe.IsResourceMissing(err):
			s.logg.Warn(s.logg.WithField(ctx, "stripe_account_id", accountID), "stored connect account missing, replacing")
		default:
			return nil, stripe.Classify(err, "failed to read connected account")
		}
	}

	accountID, err := s.createAccount(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.users.AttachAccount(ctx, user.ID, accountID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store connected account")
	}
	s.logg.Info(s.logg.WithField(ctx, "stripe_account_id", accountID), "connect account created")
	return &AccountRef{AccountID: accountID, IsNew: true}, nil
}

func (s *service) createAccount(ctx context.Context, user *models.User) (string, error) {
	acct, err := s.gateway.CreateExpressAccount(ctx, stripe.CreateAccountInput{
		UserID: user.ID.String(),
		Email:  user.Email,
	})
	if err == nil {
		return acct.ID, nil
	}
	if stripe.IsConnectNotEnabled(err) && s.allowMock {
		s.logg.Warn(ctx, "stripe connect not enabled, using mock account")
		return MockAccountID(user.ID), nil
	}
	return "", stripe.Classify(err, "failed to create connected account")
}

// CreateOnboardingLink returns a hosted onboarding URL for the account.
func (s *service) CreateOnboardingLink(ctx context.Context, accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if IsMockAccount(accountID) {
		return s.frontend.URL(onboardingReturnPath) + "?mock=1&account=" + url.QueryEscape(accountID), nil
	}
	link, err := s.gateway.CreateAccountLink(ctx, accountID,
		s.frontend.URL(onboardingReturnPath),
		s.frontend.URL(onboardingRefreshPath),
	)
	if err != nil {
		return "", stripe.Classify(err, "failed to create onboarding link")
	}
	return link, nil
}

func (s *service) Onboard(ctx context.Context, userID uuid.UUID) (string, error) {
	ref, err := s.EnsureAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.CreateOnboardingLink(ctx, ref.AccountID)
}

// GetStatus reconciles the account and renders it. Sellers may list before
// verification completes, so can_sell is always true.
func (s *service) GetStatus(ctx context.Context, userID uuid.UUID) (*StatusView, error) {
	snap, err := s.reconciler.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		Status:       string(snap.Status),
		CanSell:      true,
		Requirements: types.AccountRequirements{}.Normalized(),
	}
	if acct := snap.Account; acct != nil {
		view.AccountID = acct.ID
		view.DetailsSubmitted = acct.DetailsSubmitted
		view.ChargesEnabled = acct.ChargesEnabled
		view.PayoutsEnabled = acct.PayoutsEnabled
		view.CanReceiveFunds = acct.PayoutsEnabled
		view.Requirements = acct.Requirements.Normalized()
	}
	view.CurrentlyDueCount = len(view.Requirements.CurrentlyDue)
	view.EventuallyDueCount = len(view.Requirements.EventuallyDue)
	return view, nil
}

// DashboardLink returns an Express dashboard login URL.
func (s *service) DashboardLink(ctx context.Context, userID uuid.UUID) (string, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.HasConnectAccount() {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "no connected account")
	}
	accountID := *user.StripeAccountID
	if IsMockAccount(accountID) {
		return s.frontend.URL(mockDashboardPath), nil
	}
	link, err := s.gateway.CreateLoginLink(ctx, accountID)
	if err != nil {
		return "", stripe.Classify(err, "failed to create dashboard link")
	}
	return link, nil
}

func (s *service) Requirements(ctx context.Context, userID uuid.UUID) (*RequirementsView, error) {
	snap, err := s.reconciler.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	req := types.AccountRequirements{}
	if snap.Account != nil {
		req = snap.Account.Requirements
	}
	view := FormatRequirements(req)
	return &view, nil
}

// IssueOnboardingToken ensures an account exists and returns a single-use
// token that later redirects to a fresh onboarding link.
func (s *service) IssueOnboardingToken(ctx context.Context, userID uuid.UUID) (*OnboardingToken, error) {
	ref, err := s.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, err := security.NewOpaqueToken(onboardingTokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to generate token")
	}
	expiresAt := s.now().UTC().Add(s.tokenTTL)
	if err := s.tokens.Create(ctx, &models.StripeToken{
		Token:           security.DigestToken(token),
		StripeAccountID: ref.AccountID,
		UserID:          userID,
		ExpiresAt:       expiresAt,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to store onboarding token")
	}
	return &OnboardingToken{Token: token, ExpiresAt: expiresAt}, nil
}

// RedeemOnboardingToken consumes a token and returns a new onboarding link.
func (s *service) RedeemOnboardingToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	digest := security.DigestToken(token)
	row, err := s.tokens.FindByDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "onboarding link not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load onboarding token")
	}
	now := s.now().UTC()
	switch {
	case row.UsedAt != nil:
		return "", pkgerrors.New(pkgerrors.CodeConflict, "onboarding link already used")
	case !row.ExpiresAt.After(now):
		return "", pkgerrors.New(pkgerrors.CodeValidation, "onboarding link expired")
	}
	consumed, err := s.tokens.MarkUsed(ctx, digest, now)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to consume onboarding token")
	}
	if !consumed {
		return "", pkgerrors.New(pkgerrors.CodeConflict, "onboarding link already used")
	}
	return s.CreateOnboardingLink(ctx, row.StripeAccountID)
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("failed to load user %s", userID))
	}
	return user, nil
}
