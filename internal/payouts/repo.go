package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/benchlot/benchlot-backend/pkg/db"
	"github.com/benchlot/benchlot-backend/pkg/db/models"
	"github.com/benchlot/benchlot-backend/pkg/enums"
)

// Repository persists per-seller payout rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Claim inserts a pending payout. It returns false without error when a row
// for the same order and seller already exists, which is how redelivered
// webhooks are kept from transferring twice.
func (r *Repository) Claim(ctx context.Context, payout *models.SellerPayout) (bool, error) {
	payout.Status = enums.PayoutStatusPending
	err := r.db.WithContext(ctx).Create(payout).Error
	if err == nil {
		return true, nil
	}
	if pkgdb.IsUniqueViolation(err, models.SellerPayoutOrderSellerIndex) {
		return false, nil
	}
	return false, err
}

// ClaimRetry moves a failed payout, or a pending one untouched since
// staleBefore, to a freshly leased pending state so only one worker retries it.
func (r *Repository) ClaimRetry(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SellerPayout{}).
		Where("id = ? AND (status = ? OR (status = ? AND updated_at < ?))",
			id, enums.PayoutStatusFailed, enums.PayoutStatusPending, staleBefore).
		Updates(map[string]any{
			"status":     enums.PayoutStatusPending,
			"updated_at": now,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, transferID string) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerPayout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             enums.PayoutStatusCompleted,
			"stripe_transfer_id": transferID,
			"failure_reason":     nil,
			"retry_after":        nil,
			"attempts":           gorm.Expr("attempts + 1"),
		}).Error
}

// MarkFailed records a failed attempt. A non-nil retryAfter holds the payout
// back from retry passes until then.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAfter *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerPayout{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.PayoutStatusFailed,
			"failure_reason": truncateReason(reason),
			"retry_after":    retryAfter,
			"attempts":       gorm.Expr("attempts + 1"),
		}).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SellerPayout, error) {
	var payout models.SellerPayout
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

// ListByOrder returns every payout of an order ordered by seller.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SellerPayout, error) {
	var rows []models.SellerPayout
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("seller_id ASC").
		Find(&rows).Error
	return rows, err
}

// RetryWindow bounds a retry pass. Failed payouts qualify once retry_after
// has passed. Pending payouts qualify when nothing has touched them since
// StaleBefore, meaning their writer died between claim and outcome.
type RetryWindow struct {
	MaxAttempts int
	Limit       int
	Now         time.Time
	StaleBefore time.Time
}

func (r *Repository) ListRetryable(ctx context.Context, w RetryWindow) ([]models.SellerPayout, error) {
	var rows []models.SellerPayout
	err := r.db.WithContext(ctx).
		Where("attempts < ?", w.MaxAttempts).
		Where("((status = ? AND (retry_after IS NULL OR retry_after <= ?)) OR (status = ? AND updated_at < ?))",
			enums.PayoutStatusFailed, w.Now, enums.PayoutStatusPending, w.StaleBefore).
		Order("updated_at ASC").
		Limit(w.Limit).
		Find(&rows).Error
	return rows, err
}

const maxReasonLen = 500

func truncateReason(reason string) string {
	if len(reason) <= maxReasonLen {
		return reason
	}
	return reason[:maxReasonLen]
}
