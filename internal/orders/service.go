package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/db/models"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
)

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type payoutLister interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SellerPayout, error)
}

// Service exposes read access to orders.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, requester *uuid.UUID) (*OrderDTO, error)
}

type service struct {
	orders  orderReader
	payouts payoutLister
}

func NewService(orders orderReader, payouts payoutLister) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if payouts == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	return &service{orders: orders, payouts: payouts}, nil
}

// Get returns an order with its items and payouts. Orders placed by a signed-in
// buyer are hidden from other users.
func (s *service) Get(ctx context.Context, orderID uuid.UUID, requester *uuid.UUID) (*OrderDTO, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load order")
	}
	if order.UserID != nil && requester != nil && *order.UserID != *requester {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	payouts, err := s.payouts.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load payouts")
	}
	return FromModel(order, payouts), nil
}
