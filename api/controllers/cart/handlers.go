package cart

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/benchlot/benchlot-backend/api/middleware"
	"github.com/benchlot/benchlot-backend/api/responses"
	"github.com/benchlot/benchlot-backend/api/validators"
	cartsvc "github.com/benchlot/benchlot-backend/internal/cart"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
)

type AddItemRequest struct {
	ToolID   string `json:"toolId" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=99"`
}

// Fetch returns the caller's cart priced against current listings.
func Fetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AddItem adds a tool or replaces its quantity.
func AddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.AddItem(r.Context(), owner, cartsvc.AddItemInput{
			ToolID:   uuid.MustParse(payload.ToolID),
			Quantity: payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func RemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		owner, err := ownerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		toolID, err := validators.ParseURLParamUUID(r, "toolId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), owner, toolID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ownerFromRequest prefers the userId query, then the token subject, then
// the guest session header.
func ownerFromRequest(r *http.Request) (cartsvc.Owner, error) {
	userID, err := validators.ParseOptionalQueryUUID(r, "userId")
	if err != nil {
		return cartsvc.Owner{}, err
	}
	if userID == nil {
		userID = middleware.SubjectOrNil(r.Context())
	}
	if userID != nil {
		if err := middleware.AuthorizeUser(r.Context(), *userID); err != nil {
			return cartsvc.Owner{}, err
		}
		return cartsvc.Owner{UserID: userID}, nil
	}
	session := validators.SessionID(r)
	if session == "" {
		return cartsvc.Owner{}, pkgerrors.New(pkgerrors.CodeValidation, "userId or X-Session-Id is required")
	}
	return cartsvc.Owner{SessionID: session}, nil
}
