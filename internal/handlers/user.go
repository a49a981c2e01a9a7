package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/anonto42/safecircle/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository         repositories.UserRepository
	notificationRepository repositories.NotificationRepository
	logger                 *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, notifRepo repositories.NotificationRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userRepository:         userRepo,
		notificationRepository: notifRepo,
		logger:                 logger.Named("users"),
	}
}

// RegisterPublicRoutes registers the routes reachable without a token
func (h *UserHandler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/users/register", h.Register)
}

// RegisterUserRoutes registers the authenticated user routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group, adminOnly echo.MiddlewareFunc) {
	g.POST("/users/validate", h.ValidateRegistration, adminOnly)
	g.POST("/users/push-token", h.SavePushToken)
	g.GET("/users", h.GetUsers)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)
	g.PUT("/users/:id/location", h.UpdateLocation)
}

// Register creates an inactive account and lets every admin know about it
//
// @Summary Register a user
// @Tags Users
// @Accept json
// @Produce json
// @Param request body models.RegisterUserRequest true "Registration"
// @Success 201 {object} map[string]interface{} "Registered user"
// @Failure 400 {object} echo.HTTPError "Invalid payload"
// @Failure 409 {object} echo.HTTPError "Email or ci already registered"
// @Router /users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req models.RegisterUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	location := models.NewGeoPoint(0, 0, time.Now())
	if len(req.Coordinates) == 2 {
		if err := validateCoordinates(req.Coordinates); err != nil {
			return err
		}
		location = models.NewGeoPoint(req.Coordinates[0], req.Coordinates[1], time.Now())
	}

	user := &models.User{
		CI:           req.CI,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		LastLocation: location,
		Role:         models.RoleUser,
	}

	ctx := c.Request().Context()
	if err := h.userRepository.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Could not register user")
	}

	h.notifyAdmins(ctx, user)

	return c.JSON(http.StatusCreated, echo.Map{"message": "User registered successfully", "user": user})
}

// notifyAdmins records a registration notification for every admin. Failures are logged only.
func (h *UserHandler) notifyAdmins(ctx context.Context, user *models.User) {
	admins, err := h.userRepository.GetAdmins(ctx)
	if err != nil {
		h.logger.Error("could not load admins for registration notice", zap.Error(err))
		return
	}
	if len(admins) == 0 {
		return
	}

	batch := make([]models.Notification, 0, len(admins))
	for _, admin := range admins {
		batch = append(batch, models.Notification{
			EmitterID:  user.ID.Hex(),
			ReceiverID: admin.ID.Hex(),
			Title:      "New user registered: validate data and issue credentials",
			Message:    "User " + user.Name + " has registered.",
			Type:       models.NotificationTypeRegistration,
		})
	}
	if err := h.notificationRepository.InsertNotifications(ctx, batch); err != nil {
		h.logger.Error("could not record registration notices",
			zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
}

// ValidateRegistration gives a registered user credentials (the ci as initial password) and activates it
//
// @Summary Validate a registration
// @Tags Users
// @Accept json
// @Produce json
// @Param request body models.ValidateRegistrationRequest true "User to validate"
// @Success 200 {object} map[string]interface{} "Activated user"
// @Failure 403 {object} echo.HTTPError "Admin only"
// @Failure 404 {object} echo.HTTPError "User not found"
// @Security BearerAuth
// @Router /users/validate [post]
func (h *UserHandler) ValidateRegistration(c echo.Context) error {
	var req models.ValidateRegistrationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	id, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, id)
	if err != nil {
		return userLookupError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.CI), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to hash password")
	}

	user, err = h.userRepository.Activate(ctx, id, string(hash))
	if err != nil {
		return userLookupError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User validated, credentials created", "user": user})
}

// GetUsers lists active users
//
// @Summary List active users
// @Tags Users
// @Produce json
// @Success 200 {object} map[string]interface{} "users"
// @Security BearerAuth
// @Router /users [get]
func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.userRepository.GetActiveUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// GetUser returns one user by id
//
// @Summary Get a user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} echo.HTTPError "User not found"
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := objectIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		return userLookupError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser updates name, phone and push token
//
// @Summary Update a user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.UpdateUserRequest true "Fields to change"
// @Success 200 {object} map[string]interface{} "Updated user"
// @Failure 403 {object} echo.HTTPError "Not the user or an admin"
// @Failure 404 {object} echo.HTTPError "User not found"
// @Security BearerAuth
// @Router /users/{id} [put]
func (h *UserHandler) UpdateUser(c echo.Context) error {
	callerID, claims, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	if err := requireSelfOrAdmin(callerID, claims, id); err != nil {
		return err
	}

	var req models.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userRepository.UpdateProfile(c.Request().Context(), id, req)
	if err != nil {
		return userLookupError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "User updated", "user": user})
}

// DeleteUser deactivates the account; nothing is removed
//
// @Summary Deactivate a user
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{} "Deactivated user"
// @Failure 403 {object} echo.HTTPError "Not the user or an admin"
// @Failure 404 {object} echo.HTTPError "User not found"
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(c echo.Context) error {
	callerID, claims, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	if err := requireSelfOrAdmin(callerID, claims, id); err != nil {
		return err
	}

	user, err := h.userRepository.Deactivate(c.Request().Context(), id)
	if err != nil {
		return userLookupError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Account deactivated", "user": user})
}

// UpdateLocation stores the user's last known position
//
// @Summary Update a user's location
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.UpdateLocationRequest true "[longitude, latitude]"
// @Success 200 {object} map[string]interface{} "Updated user"
// @Failure 400 {object} echo.HTTPError "Invalid coordinates"
// @Failure 403 {object} echo.HTTPError "Not the user or an admin"
// @Security BearerAuth
// @Router /users/{id}/location [put]
func (h *UserHandler) UpdateLocation(c echo.Context) error {
	callerID, claims, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := objectIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	if err := requireSelfOrAdmin(callerID, claims, id); err != nil {
		return err
	}

	var req models.UpdateLocationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := validateCoordinates(req.Coordinates); err != nil {
		return err
	}

	point := models.NewGeoPoint(req.Coordinates[0], req.Coordinates[1], time.Now())
	user, err := h.userRepository.UpdateLocation(c.Request().Context(), id, point)
	if err != nil {
		return userLookupError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Location updated", "user": user})
}

// SavePushToken stores the caller's current device token
//
// @Summary Save the caller's device token
// @Tags Users
// @Accept json
// @Produce json
// @Param request body models.PushTokenRequest true "Device token"
// @Success 200 {object} map[string]interface{} "Updated user"
// @Failure 404 {object} echo.HTTPError "User not found"
// @Security BearerAuth
// @Router /users/push-token [post]
func (h *UserHandler) SavePushToken(c echo.Context) error {
	callerID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.PushTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.userRepository.UpdatePushToken(c.Request().Context(), callerID, req.PushToken)
	if err != nil {
		return userLookupError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Push token saved", "user": user})
}

// validateCoordinates expects [longitude, latitude].
func validateCoordinates(coords []float64) error {
	if len(coords) != 2 ||
		coords[0] < -180 || coords[0] > 180 ||
		coords[1] < -90 || coords[1] > 90 {
		return echo.NewHTTPError(http.StatusBadRequest, "Coordinates must be [longitude, latitude]")
	}
	return nil
}

func userLookupError(err error) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
