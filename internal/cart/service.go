package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/benchlot/benchlot-backend/pkg/db/models"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/money"
)

// Owner identifies a cart by signed-in user or, for guests, by session id.
type Owner struct {
	UserID    *uuid.UUID
	SessionID string
}

func (o Owner) validate() error {
	if o.UserID == nil && strings.TrimSpace(o.SessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "userId or session id is required")
	}
	return nil
}

// AddItemInput adds or updates one tool in a cart.
type AddItemInput struct {
	ToolID   uuid.UUID `json:"tool_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1,max=99"`
}

// View is a cart with its totals.
type View struct {
	ID          *uuid.UUID     `json:"id,omitempty"`
	Items       []PricedItem   `json:"items"`
	Sellers     []*SellerGroup `json:"sellers"`
	TotalCents  money.Cents    `json:"total_cents"`
	TotalAmount string         `json:"total"`
}

type cartStore interface {
	FindByOwner(ctx context.Context, owner Owner) (*models.Cart, error)
	FindOrCreate(ctx context.Context, owner Owner) (*models.Cart, error)
	UpsertItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, cartID, toolID uuid.UUID) (bool, error)
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type toolFinder interface {
	toolLookup
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tool, error)
}

// Service manages persisted carts.
type Service interface {
	Get(ctx context.Context, owner Owner) (*View, error)
	AddItem(ctx context.Context, owner Owner, input AddItemInput) (*View, error)
	RemoveItem(ctx context.Context, owner Owner, toolID uuid.UUID) (*View, error)
	Clear(ctx context.Context, owner Owner) error
}

type service struct {
	repo  cartStore
	tools toolFinder
	agg   *Aggregator
}

func NewService(repo cartStore, tools toolFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tools == nil {
		return nil, fmt.Errorf("tool repository required")
	}
	agg, err := NewAggregator(tools)
	if err != nil {
		return nil, err
	}
	return &service{repo: repo, tools: tools, agg: agg}, nil
}

func (s *service) Get(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptyView(nil), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	return s.view(ctx, cart)
}

func (s *service) AddItem(ctx context.Context, owner Owner, input AddItemInput) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	tool, err := s.tools.FindByID(ctx, input.ToolID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tool not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load tool")
	}
	if !tool.Status.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "tool is not available")
	}
	if owner.UserID != nil && tool.SellerID == *owner.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot buy your own listing")
	}

	cart, err := s.repo.FindOrCreate(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	if err := s.repo.UpsertItem(ctx, &models.CartItem{
		CartID:     cart.ID,
		ToolID:     tool.ID,
		Quantity:   input.Quantity,
		PriceCents: tool.PriceCents,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to add cart item")
	}
	return s.Get(ctx, owner)
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, toolID uuid.UUID) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	removed, err := s.repo.DeleteItem(ctx, cart.ID, toolID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to remove cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	return s.Get(ctx, owner)
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.validate(); err != nil {
		return err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load cart")
	}
	if err := s.repo.ClearItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to clear cart")
	}
	return nil
}

// view reprices stored lines against current listings so the totals shown
// always match what checkout will charge.
func (s *service) view(ctx context.Context, cart *models.Cart) (*View, error) {
	if len(cart.Items) == 0 {
		return emptyView(&cart.ID), nil
	}
	lines := make([]LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, LineItem{ToolID: item.ToolID, Quantity: item.Quantity})
	}
	priced, err := s.agg.Price(ctx, lines)
	if err != nil {
		return nil, err
	}
	total := ComputeIntentAmount(priced)
	return &View{
		ID:          &cart.ID,
		Items:       priced,
		Sellers:     SortedGroups(GroupPriced(priced)),
		TotalCents:  total,
		TotalAmount: total.String(),
	}, nil
}

func emptyView(id *uuid.UUID) *View {
	return &View{
		ID:          id,
		Items:       []PricedItem{},
		Sellers:     []*SellerGroup{},
		TotalAmount: money.Cents(0).String(),
	}
}
