package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchlot/benchlot-backend/pkg/db/dbtest"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(dbtest.Open(t, &models.User{}))
}

func seedUser(t *testing.T, repo *Repository, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestAttachAccountMarksSeller(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	user := seedUser(t, repo, "seller@benchlot.test")

	require.NoError(t, repo.AttachAccount(ctx, user.ID, "acct_123"))

	got, err := repo.FindByStripeAccountID(ctx, "acct_123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.IsSeller)
	assert.Equal(t, enums.AccountStatusMinimal, got.StripeAccountStatus)
	assert.Equal(t, enums.OnboardingStarted, got.OnboardingProgress)
}

func TestUpdateConnectStateSetsSellerSinceOnce(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	user := seedUser(t, repo, "seller@benchlot.test")
	require.NoError(t, repo.AttachAccount(ctx, user.ID, "acct_active"))

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := ConnectState{
		Status:       enums.AccountStatusActive,
		Progress:     enums.OnboardingCompleted,
		Requirements: types.AccountRequirements{CurrentlyDue: []string{}},
		CheckedAt:    first,
	}
	require.NoError(t, repo.UpdateConnectState(ctx, user.ID, state))

	state.CheckedAt = first.Add(48 * time.Hour)
	require.NoError(t, repo.UpdateConnectState(ctx, user.ID, state))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SellerSince)
	assert.True(t, got.SellerSince.Equal(first), "seller_since moved to %s", got.SellerSince)
	require.NotNil(t, got.LastRequirementsCheck)
	assert.True(t, got.LastRequirementsCheck.Equal(state.CheckedAt))
}

func TestUpdateConnectStateLeavesSellerFlagWhenUnset(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	user := seedUser(t, repo, "seller@benchlot.test")
	require.NoError(t, repo.AttachAccount(ctx, user.ID, "acct_pending"))

	require.NoError(t, repo.UpdateConnectState(ctx, user.ID, ConnectState{
		Status:    enums.AccountStatusPending,
		Progress:  enums.OnboardingInProgress,
		CheckedAt: time.Now().UTC(),
	}))
	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSeller)
	assert.Nil(t, got.SellerSince)

	isSeller := false
	require.NoError(t, repo.UpdateConnectState(ctx, user.ID, ConnectState{
		Status:    enums.AccountStatusPending,
		Progress:  enums.OnboardingInProgress,
		IsSeller:  &isSeller,
		CheckedAt: time.Now().UTC(),
	}))
	got, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSeller)
}

func TestListStaleSellers(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	now := time.Now().UTC()

	fresh := seedUser(t, repo, "fresh@benchlot.test")
	require.NoError(t, repo.AttachAccount(ctx, fresh.ID, "acct_fresh"))
	require.NoError(t, repo.UpdateConnectState(ctx, fresh.ID, ConnectState{
		Status: enums.AccountStatusPending, Progress: enums.OnboardingInProgress, CheckedAt: now,
	}))

	stale := seedUser(t, repo, "stale@benchlot.test")
	require.NoError(t, repo.AttachAccount(ctx, stale.ID, "acct_stale"))

	seedUser(t, repo, "buyer@benchlot.test")

	rows, err := repo.ListStaleSellers(ctx, now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
}

func TestFindByIDNotFound(t *testing.T) {
	_, err := newRepo(t).FindByID(context.Background(), uuid.New())
	assert.Error(t, err)
}
