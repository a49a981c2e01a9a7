package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/safecircle/backend/internal/models"
)

const (
	AlertTitle          = "🚨 Emergency!"
	LocationUnavailable = "location unavailable"
	unknownEmitterName  = "Unknown user"

	DataKeyType              = "type"
	DataKeyEmitterName       = "emitterName"
	DataKeyLocationReference = "locationReference"
	DataKeyAlertID           = "alertId"
)

// Alert is everything a single panic trigger says about its emitter.
type Alert struct {
	ID                string
	EmitterID         string
	EmitterName       string
	LocationReference string
}

// LocationReference turns the emitter's last known point into a maps link,
// or LocationUnavailable when there is nothing usable to link to.
func LocationReference(p *models.GeoPoint) string {
	lng, lat, ok := p.LngLat()
	if !ok {
		return LocationUnavailable
	}
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s,%s",
		strconv.FormatFloat(lat, 'f', -1, 64),
		strconv.FormatFloat(lng, 'f', -1, 64))
}

// DisplayName is the name shown to receivers.
func DisplayName(u *models.User) string {
	if u == nil || strings.TrimSpace(u.Name) == "" {
		return unknownEmitterName
	}
	return strings.TrimSpace(u.Name)
}

func alertBody(emitterName string) string {
	return emitterName + " has pressed the panic button. Check the app."
}

// BuildAlertMessages returns one push per receiver, in receiver order.
func BuildAlertMessages(alert Alert, receivers []*models.User) []models.PushMessage {
	messages := make([]models.PushMessage, 0, len(receivers))
	for _, r := range receivers {
		messages = append(messages, models.PushMessage{
			Token: strings.TrimSpace(*r.PushToken),
			Title: AlertTitle,
			Body:  alertBody(alert.EmitterName),
			Data: map[string]string{
				DataKeyType:              models.NotificationTypeEmergency,
				DataKeyEmitterName:       alert.EmitterName,
				DataKeyLocationReference: alert.LocationReference,
				DataKeyAlertID:           alert.ID,
			},
		})
	}
	return messages
}

// BuildLedgerEntries returns one emergency notification per receiver.
func BuildLedgerEntries(alert Alert, receivers []*models.User, at time.Time) []models.Notification {
	entries := make([]models.Notification, 0, len(receivers))
	for _, r := range receivers {
		entries = append(entries, models.Notification{
			EmitterID:   alert.EmitterID,
			ReceiverID:  r.ID.Hex(),
			Title:       AlertTitle,
			Message:     alertBody(alert.EmitterName),
			Type:        models.NotificationTypeEmergency,
			AlertID:     alert.ID,
			LocationURL: alert.LocationReference,
			CreatedAt:   at,
		})
	}
	return entries
}
