package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/anonto42/safecircle/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// notificationPageLimit is the page size of a receiver's notification list
// when the client does not ask for less.
const notificationPageLimit = 200

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepository: notifRepo}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notify/all/:id", h.GetNotificationsByReceiver)
	g.GET("/notify/some/:id", h.GetNotification)
	g.GET("/notify/unread-count", h.GetUnreadCount)
	g.POST("/notify/readCheck/:id", h.MarkAsRead)
}

// GetNotificationsByReceiver returns a receiver's notifications, most recent first.
// Without a limit query the page holds up to notificationPageLimit rows; the
// meta block reports totalItems and hasNextPage so truncation is always visible.
//
// @Summary List a receiver's notifications
// @Tags Notifications
// @Produce json
// @Param id path string true "Receiver user ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(200) maximum(200)
// @Success 200 {object} map[string]interface{} "notifications and paging meta"
// @Failure 403 {object} echo.HTTPError "Not the receiver or an admin"
// @Security BearerAuth
// @Router /notify/all/{id} [get]
func (h *NotificationHandler) GetNotificationsByReceiver(c echo.Context) error {
	callerID, claims, err := currentUser(c)
	if err != nil {
		return err
	}
	receiverID, err := objectIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	if err := requireSelfOrAdmin(callerID, claims, receiverID); err != nil {
		return err
	}

	page, limit := pagination(c, notificationPageLimit)
	notifications, total, err := h.notificationRepository.GetByReceiverID(c.Request().Context(), receiverID.Hex(), page, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetNotification returns one notification to its emitter, its receiver or an admin
//
// @Summary Get a notification
// @Tags Notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]interface{} "Notification"
// @Failure 403 {object} echo.HTTPError "Not the emitter, the receiver or an admin"
// @Failure 404 {object} echo.HTTPError "Notification not found"
// @Security BearerAuth
// @Router /notify/some/{id} [get]
func (h *NotificationHandler) GetNotification(c echo.Context) error {
	n, claims, err := h.load(c)
	if err != nil {
		return err
	}
	if n.ReceiverID != claims.UserID && n.EmitterID != claims.UserID && claims.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "Not allowed to access this notification")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": n})
}

// GetUnreadCount returns the caller's unread notification count
//
// @Summary Count the caller's unread notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]interface{} "count"
// @Security BearerAuth
// @Router /notify/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	callerID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), callerID.Hex())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks a notification as read; only its receiver or an admin may do so
//
// @Summary Mark a notification as read
// @Tags Notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]interface{} "Marked"
// @Failure 403 {object} echo.HTTPError "Not the receiver or an admin"
// @Failure 404 {object} echo.HTTPError "Notification not found"
// @Security BearerAuth
// @Router /notify/readCheck/{id} [post]
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	n, claims, err := h.load(c)
	if err != nil {
		return err
	}
	if n.ReceiverID != claims.UserID && claims.Role != models.RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "Not allowed to access this notification")
	}

	if err := h.notificationRepository.MarkAsRead(c.Request().Context(), n.ID); err != nil {
		return notificationLookupError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Notification marked as read"})
}

func (h *NotificationHandler) load(c echo.Context) (*models.Notification, *models.JwtCustomClaims, error) {
	_, claims, err := currentUser(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := uintParam(c, "id", "notification")
	if err != nil {
		return nil, nil, err
	}
	n, err := h.notificationRepository.GetByID(c.Request().Context(), id)
	if err != nil {
		return nil, nil, notificationLookupError(err)
	}
	return n, claims, nil
}

func notificationLookupError(err error) error {
	if errors.Is(err, repositories.ErrNotificationNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
