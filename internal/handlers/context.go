package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/safecircle/backend/internal/middleware"
	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// currentUser returns the authenticated caller's id and claims.
func currentUser(c echo.Context) (primitive.ObjectID, *models.JwtCustomClaims, error) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		return primitive.NilObjectID, nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, claims, nil
}

func objectIDParam(c echo.Context, name, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		return primitive.NilObjectID, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+what+" ID")
	}
	return id, nil
}

func uintParam(c echo.Context, name, what string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+what+" ID")
	}
	return uint(id), nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

// requireSelfOrAdmin allows a caller to act on their own record, or an admin on any.
func requireSelfOrAdmin(caller primitive.ObjectID, claims *models.JwtCustomClaims, target primitive.ObjectID) error {
	if caller == target || claims.Role == models.RoleAdmin {
		return nil
	}
	return echo.NewHTTPError(http.StatusForbidden, "Not allowed to access this resource")
}

// pagination reads page and limit from the query. A missing or out of range
// limit falls back to maxLimit.
func pagination(c echo.Context, maxLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
