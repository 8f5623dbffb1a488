package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

// Repository exposes user and seller-account persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByStripeAccountID resolves the seller that owns a Connect account.
func (r *Repository) FindByStripeAccountID(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("stripe_account_id = ?", accountID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AttachAccount stores a freshly created Connect account for the user.
func (r *Repository) AttachAccount(ctx context.Context, id uuid.UUID, accountID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stripe_account_id":         accountID,
			"stripe_account_status":     enums.AccountStatusMinimal,
			"is_seller":                 true,
			"onboarding_progress":       enums.OnboardingStarted,
			"verification_requirements": types.AccountRequirements{},
		}).Error
}

// ConnectState is the derived account state written after every Stripe read.
type ConnectState struct {
	Status       enums.AccountStatus
	Progress     enums.OnboardingProgress
	IsSeller     *bool
	Requirements types.AccountRequirements
	CheckedAt    time.Time
}

// UpdateConnectState persists a derived status. seller_since is only written
// the first time the account becomes active.
func (r *Repository) UpdateConnectState(ctx context.Context, id uuid.UUID, state ConnectState) error {
	updates := map[string]any{
		"stripe_account_status":     state.Status,
		"onboarding_progress":       state.Progress,
		"verification_requirements": state.Requirements,
		"last_requirements_check":   state.CheckedAt,
	}
	if state.IsSeller != nil {
		updates["is_seller"] = *state.IsSeller
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if state.Status != enums.AccountStatusActive {
			return nil
		}
		return tx.Model(&models.User{}).
			Where("id = ? AND seller_since IS NULL", id).
			Update("seller_since", state.CheckedAt).Error
	})
}

// ListStaleSellers returns sellers with a Connect account whose requirements
// were last checked before the cutoff, oldest first.
func (r *Repository) ListStaleSellers(ctx context.Context, before time.Time, limit int) ([]models.User, error) {
	var rows []models.User
	err := r.db.WithContext(ctx).
		Where("stripe_account_id IS NOT NULL").
		Where("last_requirements_check IS NULL OR last_requirements_check < ?", before).
		Order("last_requirements_check ASC NULLS FIRST").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
