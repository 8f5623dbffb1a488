package payments

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/benchlot/benchlot-backend/api/middleware"
	"github.com/benchlot/benchlot-backend/api/responses"
	"github.com/benchlot/benchlot-backend/api/validators"
	"github.com/benchlot/benchlot-backend/internal/cart"
	"github.com/benchlot/benchlot-backend/internal/orders"
	paymentsvc "github.com/benchlot/benchlot-backend/internal/payments"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
	"github.com/benchlot/benchlot-backend/pkg/types"
)

// CartItemRequest is a storefront cart line. Price is what the buyer saw and
// is checked against the listing.
type CartItemRequest struct {
	ToolID   string           `json:"toolId" validate:"required,uuid"`
	Quantity int              `json:"quantity" validate:"required,min=1,max=99"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type CreateIntentRequest struct {
	CartItems       []CartItemRequest `json:"cartItems" validate:"required,min=1,dive"`
	UserID          string            `json:"userId,omitempty" validate:"omitempty,uuid"`
	CustomerID      string            `json:"customerId,omitempty"`
	PaymentMethodID string            `json:"paymentMethodId,omitempty"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string                `json:"paymentIntentId" validate:"required"`
	CartItems       []CartItemRequest     `json:"cartItems" validate:"required,min=1,dive"`
	UserID          string                `json:"userId,omitempty" validate:"omitempty,uuid"`
	ShippingDetails types.ShippingAddress `json:"shippingDetails"`
}

type confirmResponse struct {
	Success bool             `json:"success"`
	Order   *orders.OrderDTO `json:"order"`
}

// CreatePaymentIntent prices the cart and opens a platform payment intent.
func CreatePaymentIntent(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		var payload CreateIntentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := buyerID(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateIntent(r.Context(), paymentsvc.CreateIntentInput{
			Items:           toLineItems(payload.CartItems),
			UserID:          userID,
			CustomerID:      strings.TrimSpace(payload.CustomerID),
			PaymentMethodID: strings.TrimSpace(payload.PaymentMethodID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ConfirmPayment writes the order for a succeeded intent.
func ConfirmPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		var payload ConfirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := buyerID(r, payload.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmAndPersist(r.Context(), paymentsvc.ConfirmInput{
			PaymentIntentID: payload.PaymentIntentID,
			Items:           toLineItems(payload.CartItems),
			UserID:          userID,
			ShippingAddress: payload.ShippingDetails,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmResponse{Success: true, Order: orders.FromModel(order, nil)})
	}
}

// buyerID resolves the buyer from the body, falling back to the token subject.
func buyerID(r *http.Request, raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return middleware.SubjectOrNil(r.Context()), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "userId must be a valid uuid")
	}
	if err := middleware.AuthorizeUser(r.Context(), id); err != nil {
		return nil, err
	}
	return &id, nil
}

func toLineItems(items []CartItemRequest) []cart.LineItem {
	out := make([]cart.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, cart.LineItem{
			ToolID:   uuid.MustParse(item.ToolID),
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return out
}
