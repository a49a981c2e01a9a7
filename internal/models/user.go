package models

import (
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// GeoPoint is a GeoJSON point; Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	LastUpdated time.Time `json:"lastUpdated" bson:"lastUpdated"`
}

// NewGeoPoint builds a point stamped with the given time.
func NewGeoPoint(lng, lat float64, at time.Time) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}, LastUpdated: at}
}

// LngLat returns the point's coordinates, or ok=false when they are missing or not finite.
func (p *GeoPoint) LngLat() (lng, lat float64, ok bool) {
	if p == nil || len(p.Coordinates) != 2 {
		return 0, 0, false
	}
	lng, lat = p.Coordinates[0], p.Coordinates[1]
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return 0, 0, false
	}
	return lng, lat, true
}

// User is a registered member of the app (MongoDB)
type User struct {
	ID           primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	CI           string              `json:"ci" bson:"ci"`
	Name         string              `json:"name" bson:"name"`
	Email        string              `json:"email" bson:"email"`
	Phone        string              `json:"phone" bson:"phone"`
	Password     string              `json:"-" bson:"password,omitempty"`
	PushToken    *string             `json:"fcmToken,omitempty" bson:"fcmToken"`
	LastLocation *GeoPoint           `json:"lastLocation,omitempty" bson:"lastLocation,omitempty"`
	IsActive     bool                `json:"isActive" bson:"isActive"`
	Role         string              `json:"role" bson:"role"`
	Neighborhood *primitive.ObjectID `json:"neighborhood,omitempty" bson:"neighborhood"`
	CreatedAt    time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// HasDeliverableToken reports whether a push can be addressed to u.
func HasDeliverableToken(u *User) bool {
	return u != nil && u.PushToken != nil && strings.TrimSpace(*u.PushToken) != ""
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserCompact is the public subset of a user embedded in other payloads
type UserCompact struct {
	ID           primitive.ObjectID  `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Neighborhood *primitive.ObjectID `json:"neighborhood,omitempty"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Name: u.Name, Email: u.Email, Neighborhood: u.Neighborhood}
}

type RegisterUserRequest struct {
	CI          string    `json:"ci" validate:"required,min=3,max=20"`
	Name        string    `json:"name" validate:"required,min=2,max=80"`
	Email       string    `json:"email" validate:"required,email"`
	Phone       string    `json:"phone" validate:"required,min=6,max=20"`
	Coordinates []float64 `json:"coordinates,omitempty" validate:"omitempty,len=2"`
}

type ValidateRegistrationRequest struct {
	UserID string `json:"userId" validate:"required,len=24,hexadecimal"`
}

type UpdateUserRequest struct {
	Name      string  `json:"name,omitempty" validate:"omitempty,min=2,max=80"`
	Phone     string  `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	PushToken *string `json:"fcmToken,omitempty"`
}

type UpdateLocationRequest struct {
	Coordinates []float64 `json:"coordinates" validate:"required,len=2"`
}

type PushTokenRequest struct {
	PushToken string `json:"fcmToken" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
