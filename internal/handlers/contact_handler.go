package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/anonto42/safecircle/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContactHandler handles emergency contact HTTP requests
type ContactHandler struct {
	contactRepository repositories.ContactRepository
	userRepository    repositories.UserRepository
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contactRepo repositories.ContactRepository, userRepo repositories.UserRepository) *ContactHandler {
	return &ContactHandler{
		contactRepository: contactRepo,
		userRepository:    userRepo,
	}
}

// RegisterContactRoutes registers contact routes; every route is scoped to the caller's own contacts
func (h *ContactHandler) RegisterContactRoutes(g *echo.Group) {
	g.POST("/contacts/register", h.CreateContact)
	g.GET("/contacts/all-contacts", h.GetContacts)
	g.GET("/contacts/check/:userId", h.CheckContact)
	g.GET("/contacts/:id", h.GetContact)
	g.PUT("/contacts/:id", h.UpdateContact)
	g.DELETE("/contacts/:id", h.DeleteContact)
	g.PUT("/contacts/:id/notify", h.UpdateLastNotified)
}

// ContactView is a contact with the public profile of its target
type ContactView struct {
	models.Contact
	ContactUserInfo *models.UserCompact `json:"contactUserInfo,omitempty"`
}

func toContactView(c models.Contact) ContactView {
	view := ContactView{Contact: c}
	if c.Target != nil {
		compact := c.Target.ToCompact()
		view.ContactUserInfo = &compact
	}
	return view
}

// CreateContact adds a user to the caller's emergency contacts
//
// @Summary Add an emergency contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Param request body models.CreateContactRequest true "Contact to add"
// @Success 201 {object} map[string]interface{} "Created contact"
// @Failure 400 {object} echo.HTTPError "Invalid payload or self reference"
// @Failure 404 {object} echo.HTTPError "Target user not found"
// @Failure 409 {object} echo.HTTPError "Target is already a contact"
// @Security BearerAuth
// @Router /contacts/register [post]
func (h *ContactHandler) CreateContact(c echo.Context) error {
	callerID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateContactRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	targetID, err := primitive.ObjectIDFromHex(req.ContactUser)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid contact user ID")
	}
	if targetID == callerID {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot add yourself as a contact")
	}

	ctx := c.Request().Context()
	target, err := h.userRepository.GetUserByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "The user you are adding as a contact does not exist")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	contact := &models.Contact{
		User:                 callerID,
		ContactUser:          targetID,
		Alias:                req.Alias,
		Relationship:         req.Relationship,
		NotificationMethods:  models.DefaultNotificationMethods(),
		NotificationPriority: models.DefaultNotificationPriority(),
		IsEmergencyContact:   true,
	}
	if req.NotificationMethods != nil {
		contact.NotificationMethods = *req.NotificationMethods
	}
	if req.NotificationPriority != nil {
		contact.NotificationPriority = req.NotificationPriority
	}
	if req.IsEmergencyContact != nil {
		contact.IsEmergencyContact = *req.IsEmergencyContact
	}

	if err := h.contactRepository.CreateContact(ctx, contact); err != nil {
		return contactLookupError(err)
	}
	contact.Target = target

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": toContactView(*contact)})
}

// GetContacts lists the caller's contacts ordered by alias
//
// @Summary List the caller's contacts
// @Tags Contacts
// @Produce json
// @Success 200 {object} map[string]interface{} "count and contacts"
// @Security BearerAuth
// @Router /contacts/all-contacts [get]
func (h *ContactHandler) GetContacts(c echo.Context) error {
	callerID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	contacts, err := h.contactRepository.ListContactsForOwner(c.Request().Context(), callerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	views := make([]ContactView, len(contacts))
	for i, contact := range contacts {
		views[i] = toContactView(contact)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "count": len(views), "data": views})
}

// GetContact returns one of the caller's contacts
//
// @Summary Get a contact
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} map[string]interface{} "Contact"
// @Failure 403 {object} echo.HTTPError "Contact belongs to another user"
// @Failure 404 {object} echo.HTTPError "Contact not found"
// @Security BearerAuth
// @Router /contacts/{id} [get]
func (h *ContactHandler) GetContact(c echo.Context) error {
	contact, err := h.ownedContact(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": toContactView(*contact)})
}

// UpdateContact changes the relationship details; the target user cannot be changed
//
// @Summary Update a contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param request body models.UpdateContactRequest true "Fields to change"
// @Success 200 {object} map[string]interface{} "Updated contact"
// @Failure 400 {object} echo.HTTPError "Invalid payload"
// @Failure 403 {object} echo.HTTPError "Contact belongs to another user"
// @Failure 404 {object} echo.HTTPError "Contact not found"
// @Security BearerAuth
// @Router /contacts/{id} [put]
func (h *ContactHandler) UpdateContact(c echo.Context) error {
	contact, err := h.ownedContact(c)
	if err != nil {
		return err
	}

	var req models.UpdateContactRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := h.contactRepository.UpdateContact(c.Request().Context(), contact.ID, req)
	if err != nil {
		return contactLookupError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": toContactView(*updated)})
}

// DeleteContact removes one of the caller's contacts
//
// @Summary Delete a contact
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} map[string]interface{} "Deleted"
// @Failure 403 {object} echo.HTTPError "Contact belongs to another user"
// @Failure 404 {object} echo.HTTPError "Contact not found"
// @Security BearerAuth
// @Router /contacts/{id} [delete]
func (h *ContactHandler) DeleteContact(c echo.Context) error {
	contact, err := h.ownedContact(c)
	if err != nil {
		return err
	}
	if err := h.contactRepository.DeleteContact(c.Request().Context(), contact.ID); err != nil {
		return contactLookupError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Contact deleted"})
}

// UpdateLastNotified stamps the contact as notified now
//
// @Summary Mark a contact as notified now
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} map[string]interface{} "Updated contact"
// @Failure 404 {object} echo.HTTPError "Contact not found"
// @Security BearerAuth
// @Router /contacts/{id}/notify [put]
func (h *ContactHandler) UpdateLastNotified(c echo.Context) error {
	contact, err := h.ownedContact(c)
	if err != nil {
		return err
	}

	now := time.Now()
	ctx := c.Request().Context()
	if err := h.contactRepository.TouchLastNotified(ctx, []primitive.ObjectID{contact.ID}, now); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	contact.LastNotifiedAt = &now
	contact.UpdatedAt = now
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": toContactView(*contact)})
}

// CheckContact reports whether userId is already one of the caller's contacts
//
// @Summary Check whether a user is a contact
// @Tags Contacts
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]interface{} "isContact"
// @Failure 400 {object} echo.HTTPError "Invalid user ID"
// @Security BearerAuth
// @Router /contacts/check/{userId} [get]
func (h *ContactHandler) CheckContact(c echo.Context) error {
	callerID, _, err := currentUser(c)
	if err != nil {
		return err
	}
	targetID, err := objectIDParam(c, "userId", "user")
	if err != nil {
		return err
	}

	contact, err := h.contactRepository.FindByOwnerAndTarget(c.Request().Context(), callerID, targetID)
	if err != nil && !errors.Is(err, repositories.ErrContactNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "isContact": contact != nil, "data": contact})
}

// ownedContact loads the :id contact and checks it belongs to the caller
func (h *ContactHandler) ownedContact(c echo.Context) (*models.Contact, error) {
	callerID, _, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	id, err := objectIDParam(c, "id", "contact")
	if err != nil {
		return nil, err
	}

	contact, err := h.contactRepository.GetContactByID(c.Request().Context(), id)
	if err != nil {
		return nil, contactLookupError(err)
	}
	if contact.User != callerID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "Not allowed to access this contact")
	}
	return contact, nil
}

func contactLookupError(err error) error {
	if errors.Is(err, repositories.ErrContactNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Contact not found")
	}
	if errors.Is(err, repositories.ErrDuplicateContact) {
		return echo.NewHTTPError(http.StatusConflict, "This user is already one of your contacts")
	}
	if errors.Is(err, models.ErrSelfContact) || errors.Is(err, models.ErrInvalidPriority) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
