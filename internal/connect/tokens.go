package connect

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/db/models"
)

// TokenRepository persists onboarding tokens. Only token digests are stored.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *models.StripeToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindByDigest loads a token row by its stored digest.
func (r *TokenRepository) FindByDigest(ctx context.Context, digest string) (*models.StripeToken, error) {
	var token models.StripeToken
	if err := r.db.WithContext(ctx).First(&token, "token = ?", digest).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// MarkUsed consumes an unused, unexpired token. It reports false when another
// request consumed it first or it expired in the meantime.
func (r *TokenRepository) MarkUsed(ctx context.Context, digest string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StripeToken{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", digest, now).
		Update("used_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpired removes tokens that expired before the cutoff.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.StripeToken{})
	return res.RowsAffected, res.Error
}
