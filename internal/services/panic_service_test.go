package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/safecircle/backend/internal/metrics"
	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/anonto42/safecircle/backend/internal/repositories"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MockContactDirectory is a mock ContactDirectory
type MockContactDirectory struct {
	mock.Mock
}

func (m *MockContactDirectory) ListContactsForOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contact, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Contact), args.Error(1)
}

func (m *MockContactDirectory) TouchLastNotified(ctx context.Context, ids []primitive.ObjectID, at time.Time) error {
	args := m.Called(ctx, ids, at)
	return args.Error(0)
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockPushGateway struct {
	mock.Mock
}

func (m *MockPushGateway) SendBatch(ctx context.Context, messages []models.PushMessage) ([]models.PushResult, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PushResult), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) InsertNotifications(ctx context.Context, batch []models.Notification) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

type panicFixture struct {
	contacts *MockContactDirectory
	users    *MockUserDirectory
	gateway  *MockPushGateway
	ledger   *MockLedger
	metrics  *metrics.Metrics
	service  *PanicService
}

func newPanicFixture(t *testing.T) *panicFixture {
	t.Helper()
	f := &panicFixture{
		contacts: new(MockContactDirectory),
		users:    new(MockUserDirectory),
		gateway:  new(MockPushGateway),
		ledger:   new(MockLedger),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.service = NewPanicService(f.contacts, f.users, f.gateway, f.ledger, f.metrics, zap.NewNop())
	f.service.now = func() time.Time { return fixedNow }
	f.service.newAlertID = func() string { return "alert-1" }
	return f
}

func (f *panicFixture) assertExpectations(t *testing.T) {
	f.contacts.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.ledger.AssertExpectations(t)
}

func (f *panicFixture) triggers(outcome string) float64 {
	return testutil.ToFloat64(f.metrics.PanicTriggers.WithLabelValues(outcome))
}

func token(s string) *string { return &s }

func receiver(name string, tok *string) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: name, PushToken: tok, IsActive: true}
}

func contactFor(owner primitive.ObjectID, alias string, target *models.User) models.Contact {
	c := models.Contact{ID: primitive.NewObjectID(), User: owner, Alias: alias, Target: target}
	if target != nil {
		c.ContactUser = target.ID
	}
	return c
}

func activeEmitter(name string) *models.User {
	u := receiver(name, nil)
	u.LastLocation = models.NewGeoPoint(-58.3816, -34.6037, fixedNow)
	return u
}

func accepted(n int) []models.PushResult {
	out := make([]models.PushResult, n)
	for i := range out {
		out[i] = models.PushResult{Accepted: true}
	}
	return out
}

func TestTrigger_NoContacts(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).Return([]models.Contact{}, nil)

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	assert.ErrorIs(t, err, ErrNoContactsConfigured)
	assert.Nil(t, result)
	f.ledger.AssertNotCalled(t, "InsertNotifications", mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "GetUserByID", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, f.triggers(metrics.OutcomeNoContacts))
	f.assertExpectations(t)
}

func TestTrigger_NoDeliverableContacts(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	contacts := []models.Contact{
		contactFor(emitter.ID, "a", receiver("A", nil)),
		contactFor(emitter.ID, "b", receiver("B", token("   "))),
		contactFor(emitter.ID, "c", nil),
	}
	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).Return(contacts, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	assert.ErrorIs(t, err, ErrNoDeliverableContacts)
	assert.Nil(t, result)
	f.gateway.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything)
	f.ledger.AssertNotCalled(t, "InsertNotifications", mock.Anything, mock.Anything)
	f.contacts.AssertNotCalled(t, "TouchLastNotified", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, f.triggers(metrics.OutcomeNoDeliverable))
	f.assertExpectations(t)
}

func TestTrigger_AnaExample(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	targetA := receiver("Bruno", token("tok-A"))
	contactA := contactFor(emitter.ID, "a", targetA)
	contactB := contactFor(emitter.ID, "b", receiver("Carla", nil))

	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).Return([]models.Contact{contactA, contactB}, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)

	var sent []models.PushMessage
	f.gateway.On("SendBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).([]models.PushMessage) }).
		Return(accepted(1), nil)

	var written []models.Notification
	f.ledger.On("InsertNotifications", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(1).([]models.Notification) }).
		Return(nil)
	f.contacts.On("TouchLastNotified", mock.Anything, []primitive.ObjectID{contactA.ID}, fixedNow).Return(nil)

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	require.NoError(t, err)
	assert.Equal(t, &PanicResult{AlertID: "alert-1", Delivered: 1, Failed: 0}, result)

	require.Len(t, sent, 1)
	assert.Equal(t, "tok-A", sent[0].Token)
	assert.Equal(t, AlertTitle, sent[0].Title)
	assert.Contains(t, sent[0].Body, "Ana")
	assert.Equal(t, models.NotificationTypeEmergency, sent[0].Data[DataKeyType])
	assert.Equal(t, "Ana", sent[0].Data[DataKeyEmitterName])
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=-34.6037,-58.3816", sent[0].Data[DataKeyLocationReference])

	require.Len(t, written, 1)
	assert.Equal(t, targetA.ID.Hex(), written[0].ReceiverID)
	assert.Equal(t, emitter.ID.Hex(), written[0].EmitterID)
	assert.Equal(t, models.NotificationTypeEmergency, written[0].Type)
	assert.Equal(t, "alert-1", written[0].AlertID)
	assert.False(t, written[0].IsRead)

	assert.Equal(t, 1.0, f.triggers(metrics.OutcomeSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PushDeliveries.WithLabelValues("delivered")))
	f.assertExpectations(t)
}

func TestTrigger_LedgerMatchesSubmittedDespiteRejections(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	var contacts []models.Contact
	for i, name := range []string{"A", "B", "C", "D", "E"} {
		contacts = append(contacts, contactFor(emitter.ID, name, receiver(name, token("tok-"+string(rune('a'+i))))))
	}
	// A contact without a token is skipped before submission.
	contacts = append(contacts, contactFor(emitter.ID, "F", receiver("F", nil)))

	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).Return(contacts, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)
	f.gateway.On("SendBatch", mock.Anything, mock.MatchedBy(func(m []models.PushMessage) bool { return len(m) == 5 })).
		Return([]models.PushResult{
			{Accepted: true},
			{Accepted: false, ProviderErrorCode: "registration-token-not-registered"},
			{Accepted: true},
			{Accepted: false, ProviderErrorCode: "invalid-argument"},
			{Accepted: true},
		}, nil)
	f.ledger.On("InsertNotifications", mock.Anything, mock.MatchedBy(func(b []models.Notification) bool {
		if len(b) != 5 {
			return false
		}
		for _, n := range b {
			if n.Type != models.NotificationTypeEmergency {
				return false
			}
		}
		return true
	})).Return(nil)
	f.contacts.On("TouchLastNotified", mock.Anything, mock.Anything, fixedNow).Return(nil)

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Delivered)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PushDeliveries.WithLabelValues("failed")))
	f.assertExpectations(t)
}

func TestTrigger_GatewayTransportError(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).
		Return([]models.Contact{contactFor(emitter.ID, "a", receiver("A", token("tok-A")))}, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)
	transport := errors.New("dial tcp: connection refused")
	f.gateway.On("SendBatch", mock.Anything, mock.Anything).Return(nil, transport)

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.ErrorIs(t, err, transport)
	f.ledger.AssertNotCalled(t, "InsertNotifications", mock.Anything, mock.Anything)
	f.contacts.AssertNotCalled(t, "TouchLastNotified", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, f.triggers(metrics.OutcomeDispatchFailed))
	f.assertExpectations(t)
}

func TestTrigger_ShortResultSetIsDispatchFailure(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).Return([]models.Contact{
		contactFor(emitter.ID, "a", receiver("A", token("tok-A"))),
		contactFor(emitter.ID, "b", receiver("B", token("tok-B"))),
	}, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)
	f.gateway.On("SendBatch", mock.Anything, mock.Anything).Return(accepted(1), nil)

	_, err := f.service.Trigger(context.Background(), emitter.ID)

	assert.ErrorIs(t, err, ErrDispatchFailed)
	f.ledger.AssertNotCalled(t, "InsertNotifications", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestTrigger_MissingLocationDegrades(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	emitter.LastLocation = nil
	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).
		Return([]models.Contact{contactFor(emitter.ID, "a", receiver("A", token("tok-A")))}, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)
	f.gateway.On("SendBatch", mock.Anything, mock.MatchedBy(func(m []models.PushMessage) bool {
		return len(m) == 1 && m[0].Data[DataKeyLocationReference] == LocationUnavailable
	})).Return(accepted(1), nil)
	f.ledger.On("InsertNotifications", mock.Anything, mock.MatchedBy(func(b []models.Notification) bool {
		return len(b) == 1 && b[0].LocationURL == LocationUnavailable
	})).Return(nil)
	f.contacts.On("TouchLastNotified", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	f.assertExpectations(t)
}

func TestTrigger_EmitterNotFound(t *testing.T) {
	f := newPanicFixture(t)
	emitterID := primitive.NewObjectID()
	f.contacts.On("ListContactsForOwner", mock.Anything, emitterID).
		Return([]models.Contact{contactFor(emitterID, "a", receiver("A", token("tok-A")))}, nil)
	f.users.On("GetUserByID", mock.Anything, emitterID).Return(nil, repositories.ErrUserNotFound)

	_, err := f.service.Trigger(context.Background(), emitterID)

	assert.ErrorIs(t, err, ErrEmitterNotFound)
	f.gateway.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, f.triggers(metrics.OutcomeEmitterMissing))
	f.assertExpectations(t)
}

func TestTrigger_InactiveEmitter(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	emitter.IsActive = false
	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).
		Return([]models.Contact{contactFor(emitter.ID, "a", receiver("A", token("tok-A")))}, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)

	_, err := f.service.Trigger(context.Background(), emitter.ID)

	assert.ErrorIs(t, err, ErrEmitterInactive)
	f.gateway.AssertNotCalled(t, "SendBatch", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestTrigger_StoreErrorsAreWrapped(t *testing.T) {
	f := newPanicFixture(t)
	emitterID := primitive.NewObjectID()
	boom := errors.New("server selection timeout")
	f.contacts.On("ListContactsForOwner", mock.Anything, emitterID).Return(nil, boom)

	_, err := f.service.Trigger(context.Background(), emitterID)

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDispatchFailed)
	assert.Equal(t, 1.0, f.triggers(metrics.OutcomeError))
}

func TestTrigger_DuplicateReceiverIsAlertedOnce(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	target := receiver("Bruno", token("tok-A"))
	first := contactFor(emitter.ID, "bro", target)
	second := contactFor(emitter.ID, "bruno", target)

	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).Return([]models.Contact{first, second}, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)
	f.gateway.On("SendBatch", mock.Anything, mock.MatchedBy(func(m []models.PushMessage) bool { return len(m) == 1 })).
		Return(accepted(1), nil)
	f.ledger.On("InsertNotifications", mock.Anything, mock.MatchedBy(func(b []models.Notification) bool { return len(b) == 1 })).
		Return(nil)
	f.contacts.On("TouchLastNotified", mock.Anything, []primitive.ObjectID{first.ID}, fixedNow).Return(nil)

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	f.assertExpectations(t)
}

func TestTrigger_LedgerFailureStillSucceeds(t *testing.T) {
	f := newPanicFixture(t)
	emitter := activeEmitter("Ana")
	f.contacts.On("ListContactsForOwner", mock.Anything, emitter.ID).
		Return([]models.Contact{contactFor(emitter.ID, "a", receiver("A", token("tok-A")))}, nil)
	f.users.On("GetUserByID", mock.Anything, emitter.ID).Return(emitter, nil)
	f.gateway.On("SendBatch", mock.Anything, mock.Anything).Return(accepted(1), nil)
	f.ledger.On("InsertNotifications", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
	f.contacts.On("TouchLastNotified", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("not primary"))

	result, err := f.service.Trigger(context.Background(), emitter.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerWriteFailures))
	assert.Equal(t, 1.0, f.triggers(metrics.OutcomeSuccess))
	f.assertExpectations(t)
}
