package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/safecircle/backend/internal/metrics"
	"github.com/anonto42/safecircle/backend/internal/models"
	"github.com/anonto42/safecircle/backend/internal/repositories"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrNoContactsConfigured  = errors.New("no contacts configured")
	ErrNoDeliverableContacts = errors.New("no contacts with a valid push token")
	ErrEmitterNotFound       = errors.New("emitter not found")
	ErrEmitterInactive       = errors.New("emitter account is not active")
	ErrDispatchFailed        = errors.New("push dispatch failed")
)

// ContactDirectory resolves a user's contacts together with their target users.
type ContactDirectory interface {
	ListContactsForOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contact, error)
	TouchLastNotified(ctx context.Context, ids []primitive.ObjectID, at time.Time) error
}

type UserDirectory interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// PushGateway delivers a batch of pushes. It returns exactly one result per
// message, in order, or an error when the batch could not be submitted at all.
type PushGateway interface {
	SendBatch(ctx context.Context, messages []models.PushMessage) ([]models.PushResult, error)
}

type NotificationLedger interface {
	InsertNotifications(ctx context.Context, batch []models.Notification) error
}

// PanicResult is what the triggering user gets back. It never names receivers.
type PanicResult struct {
	AlertID   string
	Delivered int
	Failed    int
}

// PanicService fans a panic alert out to the emitter's contacts.
type PanicService struct {
	contacts ContactDirectory
	users    UserDirectory
	gateway  PushGateway
	ledger   NotificationLedger
	metrics  *metrics.Metrics
	logger   *zap.Logger

	now        func() time.Time
	newAlertID func() string
}

func NewPanicService(contacts ContactDirectory, users UserDirectory, gateway PushGateway, ledger NotificationLedger, m *metrics.Metrics, logger *zap.Logger) *PanicService {
	return &PanicService{
		contacts:   contacts,
		users:      users,
		gateway:    gateway,
		ledger:     ledger,
		metrics:    m,
		logger:     logger.Named("panic"),
		now:        time.Now,
		newAlertID: uuid.NewString,
	}
}

type recipient struct {
	contactID primitive.ObjectID
	user      *models.User
}

// Trigger runs one fan-out for emitterID. Pushes are best effort: individual
// rejections only show up in the counts. Nothing is recorded unless the batch
// was actually submitted to the gateway.
func (s *PanicService) Trigger(ctx context.Context, emitterID primitive.ObjectID) (*PanicResult, error) {
	log := s.logger.With(zap.String("emitter_id", emitterID.Hex()))

	contacts, err := s.contacts.ListContactsForOwner(ctx, emitterID)
	if err != nil {
		s.metrics.ObserveTrigger(metrics.OutcomeError)
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if len(contacts) == 0 {
		log.Warn("panic triggered with no contacts configured")
		s.metrics.ObserveTrigger(metrics.OutcomeNoContacts)
		return nil, ErrNoContactsConfigured
	}

	emitter, err := s.users.GetUserByID(ctx, emitterID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			log.Error("authenticated emitter has no user record")
			s.metrics.ObserveTrigger(metrics.OutcomeEmitterMissing)
			return nil, ErrEmitterNotFound
		}
		s.metrics.ObserveTrigger(metrics.OutcomeError)
		return nil, fmt.Errorf("get emitter: %w", err)
	}
	if !emitter.IsActive {
		log.Warn("panic triggered by inactive account")
		s.metrics.ObserveTrigger(metrics.OutcomeEmitterBlocked)
		return nil, ErrEmitterInactive
	}

	recipients := s.deliverable(contacts, log)
	if len(recipients) == 0 {
		log.Warn("no contact has a usable push token", zap.Int("contacts", len(contacts)))
		s.metrics.ObserveTrigger(metrics.OutcomeNoDeliverable)
		return nil, ErrNoDeliverableContacts
	}

	receivers := make([]*models.User, len(recipients))
	for i, r := range recipients {
		receivers[i] = r.user
	}

	alert := Alert{
		ID:                s.newAlertID(),
		EmitterID:         emitter.ID.Hex(),
		EmitterName:       DisplayName(emitter),
		LocationReference: LocationReference(emitter.LastLocation),
	}
	log = log.With(zap.String("alert_id", alert.ID))
	messages := BuildAlertMessages(alert, receivers)

	log.Info("dispatching panic alert", zap.Int("messages", len(messages)))
	started := s.now()
	results, err := s.gateway.SendBatch(ctx, messages)
	s.metrics.ObserveDispatch(s.now().Sub(started))
	if err != nil {
		log.Error("push gateway rejected the batch", zap.Error(err))
		s.metrics.ObserveTrigger(metrics.OutcomeDispatchFailed)
		return nil, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	if len(results) != len(messages) {
		log.Error("push gateway returned a short result set",
			zap.Int("submitted", len(messages)), zap.Int("results", len(results)))
		s.metrics.ObserveTrigger(metrics.OutcomeDispatchFailed)
		return nil, fmt.Errorf("%w: %d results for %d messages", ErrDispatchFailed, len(results), len(messages))
	}

	delivered, failed := 0, 0
	for i, res := range results {
		if res.Accepted {
			delivered++
			continue
		}
		failed++
		log.Warn("push rejected",
			zap.String("receiver_id", receivers[i].ID.Hex()),
			zap.String("provider_code", res.ProviderErrorCode))
	}
	s.metrics.AddDeliveries(delivered, failed)

	at := s.now()
	if err := s.ledger.InsertNotifications(ctx, BuildLedgerEntries(alert, receivers, at)); err != nil {
		// The alert is already out; a missing ledger row is an audit gap only.
		log.Error("panic alert sent but not recorded",
			zap.Error(err), zap.Int("delivered", delivered), zap.Int("failed", failed))
		s.metrics.LedgerWriteFailures.Inc()
	}

	contactIDs := make([]primitive.ObjectID, len(recipients))
	for i, r := range recipients {
		contactIDs[i] = r.contactID
	}
	if err := s.contacts.TouchLastNotified(ctx, contactIDs, at); err != nil {
		log.Warn("could not stamp lastNotifiedAt", zap.Error(err))
	}

	s.metrics.ObserveTrigger(metrics.OutcomeSuccess)
	log.Info("panic alert dispatched", zap.Int("delivered", delivered), zap.Int("failed", failed))

	return &PanicResult{AlertID: alert.ID, Delivered: delivered, Failed: failed}, nil
}

// deliverable keeps, in contact order, the first contact per receiver whose
// target can be pushed to.
func (s *PanicService) deliverable(contacts []models.Contact, log *zap.Logger) []recipient {
	seen := make(map[primitive.ObjectID]bool, len(contacts))
	out := make([]recipient, 0, len(contacts))
	for i := range contacts {
		c := &contacts[i]
		if c.Target == nil {
			log.Warn("contact target user does not exist", zap.String("contact_id", c.ID.Hex()))
			continue
		}
		if !models.HasDeliverableToken(c.Target) {
			log.Warn("contact target has no push token",
				zap.String("contact_id", c.ID.Hex()), zap.String("receiver_id", c.Target.ID.Hex()))
			continue
		}
		if seen[c.Target.ID] {
			continue
		}
		seen[c.Target.ID] = true
		out = append(out, recipient{contactID: c.ID, user: c.Target})
	}
	return out
}
