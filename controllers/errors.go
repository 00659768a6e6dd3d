package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kantinku/kantinku-api/services"
	"github.com/kantinku/kantinku-api/utils"
)

// respondServiceError memetakan error taxonomy services ke kode HTTP.
// Error yang tidak dikenal dianggap kegagalan internal.
func respondServiceError(c *gin.Context, err error) {
	var (
		invalidTransition *services.InvalidTransitionError
		malformed         *services.MalformedCallbackError
		upstream          *services.UpstreamError
	)

	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err)
	case errors.Is(err, services.ErrForbidden):
		utils.RespondError(c, http.StatusForbidden, err)
	case errors.Is(err, services.ErrInvalidSignature):
		utils.RespondError(c, http.StatusForbidden, err)
	case errors.Is(err, services.ErrAlreadyDecided):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrInvalidPaymentMethod),
		errors.Is(err, services.ErrProductUnavailable):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.As(err, &invalidTransition):
		utils.RespondError(c, http.StatusConflict, err)
	case errors.As(err, &malformed):
		utils.RespondError(c, http.StatusBadRequest, err)
	case errors.As(err, &upstream):
		utils.ErrorLogger.Printf("upstream failure: %v", err)
		utils.RespondError(c, http.StatusBadGateway, err)
	default:
		utils.ErrorLogger.Printf("internal failure: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, err)
	}
}

// actorFromContext membaca identitas yang diset auth middleware.
func actorFromContext(c *gin.Context) (uint, string, bool) {
	idVal, ok := c.Get("user_id")
	if !ok {
		return 0, "", false
	}
	id, ok := idVal.(uint)
	if !ok {
		return 0, "", false
	}
	roleVal, _ := c.Get("user_role")
	role, _ := roleVal.(string)
	return id, role, true
}
