package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/benchlot/benchlot-backend/pkg/db/models"
)

// Repository persists user and guest carts.
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

// FindByOwner loads the owner's cart with its items, or gorm.ErrRecordNotFound.
func (r *Repository) FindByOwner(ctx context.Context, owner Owner) (*models.Cart, error) {
	var cart models.Cart
	q := r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	})
	if owner.UserID != nil {
		q = q.Where("user_id = ?", *owner.UserID)
	} else {
		q = q.Where("session_id = ?", owner.SessionID)
	}
	if err := q.First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindOrCreate returns the owner's cart, creating an empty one when missing.
func (r *Repository) FindOrCreate(ctx context.Context, owner Owner) (*models.Cart, error) {
	cart, err := r.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cart = &models.Cart{UserID: owner.UserID}
	if owner.UserID == nil {
		session := owner.SessionID
		cart.SessionID = &session
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// UpsertItem sets the quantity and price of a tool in the cart.
func (r *Repository) UpsertItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "tool_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "price_cents", "updated_at"}),
		}).
		Create(item).Error
}

// DeleteItem removes one tool; it reports whether a row was removed.
func (r *Repository) DeleteItem(ctx context.Context, cartID, toolID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND tool_id = ?", cartID, toolID).
		Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

// ClearItems empties a cart but keeps the cart row.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// ClearForUser empties the signed-in buyer's cart, if any. Used inside the
// order transaction.
func (r *Repository) ClearForUser(ctx context.Context, userID uuid.UUID) error {
	sub := r.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	return r.db.WithContext(ctx).Where("cart_id IN (?)", sub).Delete(&models.CartItem{}).Error
}
