package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/anonto42/safecircle/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// PanicTrigger starts a panic fan-out for a user
type PanicTrigger interface {
	Trigger(ctx context.Context, emitterID primitive.ObjectID) (*services.PanicResult, error)
}

// PanicHandler exposes the panic button
type PanicHandler struct {
	panicService PanicTrigger
	logger       *zap.Logger
}

func NewPanicHandler(panicService PanicTrigger, logger *zap.Logger) *PanicHandler {
	return &PanicHandler{panicService: panicService, logger: logger.Named("panic-http")}
}

func (h *PanicHandler) RegisterPanicRoutes(g *echo.Group) {
	g.POST("/panic/alerta", h.TriggerPanic)
}

// TriggerPanic alerts the caller's emergency contacts. The response carries
// only counts; who was alerted is never returned.
//
// @Summary Trigger a panic alert
// @Description Sends a high priority push to every emergency contact of the caller and records one notification per delivered alert.
// @Tags Panic
// @Produce json
// @Success 200 {object} map[string]interface{} "alertId, deliveredCount and failedCount"
// @Failure 400 {object} echo.HTTPError "No contacts or no contact with a push token"
// @Failure 401 {object} echo.HTTPError "Missing or invalid token"
// @Failure 403 {object} echo.HTTPError "Account is not active"
// @Failure 404 {object} echo.HTTPError "Emitting user not found"
// @Failure 500 {object} echo.HTTPError "Dispatch failed"
// @Security BearerAuth
// @Router /panic/alerta [post]
func (h *PanicHandler) TriggerPanic(c echo.Context) error {
	callerID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	result, err := h.panicService.Trigger(c.Request().Context(), callerID)
	if err != nil {
		return h.panicError(err, callerID)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"message":        "Panic alert dispatched",
		"alertId":        result.AlertID,
		"deliveredCount": result.Delivered,
		"failedCount":    result.Failed,
	})
}

func (h *PanicHandler) panicError(err error, callerID primitive.ObjectID) error {
	switch {
	case errors.Is(err, services.ErrNoContactsConfigured):
		return echo.NewHTTPError(http.StatusBadRequest, "No contacts configured")
	case errors.Is(err, services.ErrNoDeliverableContacts):
		return echo.NewHTTPError(http.StatusBadRequest, "No contacts with a valid push token to alert")
	case errors.Is(err, services.ErrEmitterNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Emitting user not found")
	case errors.Is(err, services.ErrEmitterInactive):
		return echo.NewHTTPError(http.StatusForbidden, "Account is not active")
	case errors.Is(err, services.ErrDispatchFailed):
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not dispatch the panic alert")
	default:
		h.logger.Error("panic alert failed", zap.String("emitter_id", callerID.Hex()), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal error processing the panic alert")
	}
}
