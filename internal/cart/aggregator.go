package cart

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/benchlot/benchlot-backend/pkg/db/models"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/money"
)

// LineItem is a buyer-submitted cart line. Price is optional; when present it
// must match the listing price after rounding to cents.
type LineItem struct {
	ToolID   uuid.UUID        `json:"tool_id" validate:"required"`
	Quantity int              `json:"quantity" validate:"required,min=1"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// PricedItem is a line resolved against its listing.
type PricedItem struct {
	ToolID         uuid.UUID   `json:"tool_id"`
	SellerID       uuid.UUID   `json:"seller_id"`
	Title          string      `json:"title"`
	UnitPriceCents money.Cents `json:"unit_price_cents"`
	Quantity       int         `json:"quantity"`
	LineTotalCents money.Cents `json:"line_total_cents"`
}

// SellerGroup is the part of a cart owed to one seller.
type SellerGroup struct {
	SellerID    uuid.UUID    `json:"seller_id"`
	AmountCents money.Cents  `json:"amount_cents"`
	Items       []PricedItem `json:"items"`
}

type toolLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Tool, error)
}

// Aggregator resolves cart lines to their sellers and prices.
type Aggregator struct {
	tools toolLookup
}

func NewAggregator(tools toolLookup) (*Aggregator, error) {
	if tools == nil {
		return nil, fmt.Errorf("tool lookup required")
	}
	return &Aggregator{tools: tools}, nil
}

// Price resolves every line against its listing. Any line that cannot be
// resolved fails the whole cart with a validation error.
func (a *Aggregator) Price(ctx context.Context, items []LineItem) ([]PricedItem, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ToolID)
	}
	listings, err := a.tools.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "failed to look up cart items")
	}

	priced := make([]PricedItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"tool_id": item.ToolID})
		}
		tool, ok := listings[item.ToolID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tool not found").
				WithDetails(map[string]any{"tool_id": item.ToolID})
		}
		if !tool.Status.Purchasable() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tool is not available").
				WithDetails(map[string]any{"tool_id": item.ToolID, "status": tool.Status})
		}

		unit := money.Cents(tool.PriceCents)
		if item.Price != nil {
			submitted, err := money.FromDecimal(*item.Price)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price").
					WithDetails(map[string]any{"tool_id": item.ToolID})
			}
			if submitted != unit {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "price does not match listing").
					WithDetails(map[string]any{"tool_id": item.ToolID, "listed": unit.String(), "submitted": submitted.String()})
			}
		}

		priced = append(priced, PricedItem{
			ToolID:         tool.ID,
			SellerID:       tool.SellerID,
			Title:          tool.Title,
			UnitPriceCents: unit,
			Quantity:       item.Quantity,
			LineTotalCents: unit.Mul(item.Quantity),
		})
	}
	return priced, nil
}

// GroupBySeller prices the cart and partitions it by seller.
func (a *Aggregator) GroupBySeller(ctx context.Context, items []LineItem) (map[uuid.UUID]*SellerGroup, error) {
	priced, err := a.Price(ctx, items)
	if err != nil {
		return nil, err
	}
	return GroupPriced(priced), nil
}

// GroupPriced partitions already-priced lines by seller.
func GroupPriced(items []PricedItem) map[uuid.UUID]*SellerGroup {
	groups := make(map[uuid.UUID]*SellerGroup)
	for _, item := range items {
		group, ok := groups[item.SellerID]
		if !ok {
			group = &SellerGroup{SellerID: item.SellerID}
			groups[item.SellerID] = group
		}
		group.AmountCents += item.LineTotalCents
		group.Items = append(group.Items, item)
	}
	return groups
}

// SortedGroups returns groups ordered by seller id for stable output.
func SortedGroups(groups map[uuid.UUID]*SellerGroup) []*SellerGroup {
	out := make([]*SellerGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SellerID.String() < out[j].SellerID.String()
	})
	return out
}

// ComputeIntentAmount sums price × quantity over every line.
func ComputeIntentAmount(items []PricedItem) money.Cents {
	var total money.Cents
	for _, item := range items {
		total += item.UnitPriceCents.Mul(item.Quantity)
	}
	return total
}
