package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/seralvarez/casillero-backend/api/middleware"
	"github.com/seralvarez/casillero-backend/api/responses"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
	"github.com/seralvarez/casillero-backend/pkg/logger"
)

// requireUserID resolves the authenticated user id seeded by the auth
// middleware. On failure it writes the error response and reports false.
func requireUserID(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
		return uuid.Nil, false
	}
	return userID, true
}
