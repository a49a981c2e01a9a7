package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/anonto42/safecircle/backend/internal/middleware"
	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/anonto42/safecircle/backend/internal/services"
	"github.com/anonto42/safecircle/backend/internal/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockPanicTrigger struct {
	mock.Mock
}

func (m *MockPanicTrigger) Trigger(ctx context.Context, emitterID primitive.ObjectID) (*services.PanicResult, error) {
	args := m.Called(ctx, emitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PanicResult), args.Error(1)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotificationRepository) InsertNotifications(ctx context.Context, batch []models.Notification) error {
	return m.Called(ctx, batch).Error(0)
}

func (m *MockNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) GetByReceiverID(ctx context.Context, receiverID string, page, limit int) ([]models.Notification, int64, error) {
	args := m.Called(ctx, receiverID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Notification), args.Get(1).(int64), args.Error(2)
}

func (m *MockNotificationRepository) GetUnreadCount(ctx context.Context, receiverID string) (int64, error) {
	args := m.Called(ctx, receiverID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) MarkAsRead(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) CreateContact(ctx context.Context, contact *models.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

func (m *MockContactRepository) GetContactByID(ctx context.Context, id primitive.ObjectID) (*models.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *MockContactRepository) FindByOwnerAndTarget(ctx context.Context, ownerID, targetID primitive.ObjectID) (*models.Contact, error) {
	args := m.Called(ctx, ownerID, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *MockContactRepository) ListContactsForOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contact, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contact), args.Error(1)
}

func (m *MockContactRepository) UpdateContact(ctx context.Context, id primitive.ObjectID, req models.UpdateContactRequest) (*models.Contact, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contact), args.Error(1)
}

func (m *MockContactRepository) DeleteContact(ctx context.Context, id primitive.ObjectID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockContactRepository) TouchLastNotified(ctx context.Context, ids []primitive.ObjectID, at time.Time) error {
	return m.Called(ctx, ids, at).Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) users(args mock.Arguments) ([]models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockUserRepository) GetActiveUsers(ctx context.Context) ([]models.User, error) {
	return m.users(m.Called(ctx))
}

func (m *MockUserRepository) GetAdmins(ctx context.Context) ([]models.User, error) {
	return m.users(m.Called(ctx))
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error) {
	return m.user(m.Called(ctx, id, req))
}

func (m *MockUserRepository) UpdatePushToken(ctx context.Context, id primitive.ObjectID, token string) (*models.User, error) {
	return m.user(m.Called(ctx, id, token))
}

func (m *MockUserRepository) UpdateLocation(ctx context.Context, id primitive.ObjectID, point *models.GeoPoint) (*models.User, error) {
	return m.user(m.Called(ctx, id, point))
}

func (m *MockUserRepository) Activate(ctx context.Context, id primitive.ObjectID, passwordHash string) (*models.User, error) {
	return m.user(m.Called(ctx, id, passwordHash))
}

func (m *MockUserRepository) Deactivate(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

// newContext builds an echo context for a request made by caller.
func newContext(method, target, body string, caller primitive.ObjectID, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = validators.NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if !caller.IsZero() {
		c.Set(middleware.ContextUserKey, &models.JwtCustomClaims{UserID: caller.Hex(), Role: role})
	}
	return c, rec
}

func httpStatus(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}
