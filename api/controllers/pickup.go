package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/seralvarez/casillero-backend/api/responses"
	"github.com/seralvarez/casillero-backend/api/validators"
	"github.com/seralvarez/casillero-backend/internal/pickup"
	"github.com/seralvarez/casillero-backend/pkg/logger"
)

// VerifyPickupRequest is the POST /pickup/verify payload.
type VerifyPickupRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Code    string    `json:"code" validate:"required"`
}

// VerifyPickup checks a pickup code against an awaiting order and releases
// the locker on success.
func VerifyPickup(svc pickup.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUserID(w, r, logg)
		if !ok {
			return
		}

		var payload VerifyPickupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Verify(r.Context(), userID, payload.OrderID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
