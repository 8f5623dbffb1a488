package orders

import (
	"net/http"

	"github.com/benchlot/benchlot-backend/api/middleware"
	"github.com/benchlot/benchlot-backend/api/responses"
	"github.com/benchlot/benchlot-backend/api/validators"
	internalorders "github.com/benchlot/benchlot-backend/internal/orders"
	pkgerrors "github.com/benchlot/benchlot-backend/pkg/errors"
	"github.com/benchlot/benchlot-backend/pkg/logger"
)

// Detail returns an order with its items and seller payouts.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.ParseURLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requester, err := validators.ParseOptionalQueryUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if subject := middleware.SubjectOrNil(r.Context()); subject != nil {
			requester = subject
		}

		order, err := svc.Get(r.Context(), orderID, requester)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
