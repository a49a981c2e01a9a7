package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MethodCall = "call"
	MethodPush = "push"
)

// ErrSelfContact is returned when a user tries to add themselves as a contact.
var ErrSelfContact = errors.New("a user cannot be their own contact")

var ErrInvalidPriority = errors.New("notification priority must be a subset of call, push without repeats")

type NotificationMethods struct {
	Call bool `json:"call" bson:"call"`
	Push bool `json:"push" bson:"push"`
}

// Contact links an owner to another user who should be alerted in an emergency (MongoDB)
type Contact struct {
	ID                   primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	User                 primitive.ObjectID  `json:"user" bson:"user"`
	ContactUser          primitive.ObjectID  `json:"contactUser" bson:"contactUser"`
	Alias                string              `json:"alias" bson:"alias"`
	Relationship         string              `json:"relationship" bson:"relationship"`
	NotificationMethods  NotificationMethods `json:"notificationMethods" bson:"notificationMethods"`
	NotificationPriority []string            `json:"notificationPriority" bson:"notificationPriority"`
	IsEmergencyContact   bool                `json:"isEmergencyContact" bson:"isEmergencyContact"`
	LastNotifiedAt       *time.Time          `json:"lastNotifiedAt" bson:"lastNotifiedAt"`
	CreatedAt            time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt" bson:"updatedAt"`

	// Target is the resolved contactUser; only set by joined reads, never stored.
	Target *User `json:"-" bson:"target,omitempty"`
}

// DefaultNotificationMethods mirrors what the mobile client assumes for new contacts.
func DefaultNotificationMethods() NotificationMethods {
	return NotificationMethods{Call: true, Push: false}
}

func DefaultNotificationPriority() []string {
	return []string{MethodCall, MethodPush}
}

// Validate checks the invariants that must hold before a contact is stored.
func (c *Contact) Validate() error {
	if c.User == c.ContactUser {
		return ErrSelfContact
	}
	return ValidatePriority(c.NotificationPriority)
}

// ValidatePriority accepts an ordered subset of {call, push}.
func ValidatePriority(priority []string) error {
	seen := make(map[string]bool, len(priority))
	for _, p := range priority {
		if p != MethodCall && p != MethodPush {
			return ErrInvalidPriority
		}
		if seen[p] {
			return ErrInvalidPriority
		}
		seen[p] = true
	}
	return nil
}

type CreateContactRequest struct {
	ContactUser          string               `json:"contactUser" validate:"required,len=24,hexadecimal"`
	Alias                string               `json:"alias" validate:"required,max=80"`
	Relationship         string               `json:"relationship" validate:"required,max=80"`
	NotificationMethods  *NotificationMethods `json:"notificationMethods,omitempty"`
	NotificationPriority []string             `json:"notificationPriority,omitempty" validate:"omitempty,max=2,dive,oneof=call push"`
	IsEmergencyContact   *bool                `json:"isEmergencyContact,omitempty"`
}

// UpdateContactRequest never carries contactUser: the target of a contact is immutable.
type UpdateContactRequest struct {
	Alias                *string              `json:"alias,omitempty" validate:"omitempty,min=1,max=80"`
	Relationship         *string              `json:"relationship,omitempty" validate:"omitempty,min=1,max=80"`
	NotificationMethods  *NotificationMethods `json:"notificationMethods,omitempty"`
	NotificationPriority []string             `json:"notificationPriority,omitempty" validate:"omitempty,max=2,dive,oneof=call push"`
	IsEmergencyContact   *bool                `json:"isEmergencyContact,omitempty"`
}
