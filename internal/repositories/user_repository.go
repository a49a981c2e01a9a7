package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/safecircle/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("a user with this email or ci already exists")
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetActiveUsers(ctx context.Context) ([]models.User, error)
	GetAdmins(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error)
	UpdatePushToken(ctx context.Context, id primitive.ObjectID, token string) (*models.User, error)
	UpdateLocation(ctx context.Context, id primitive.ObjectID, point *models.GeoPoint) (*models.User, error)
	Activate(ctx context.Context, id primitive.ObjectID, passwordHash string) (*models.User, error)
	Deactivate(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// MongoUserRepository implements UserRepository for MongoDB
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewMongoUserRepository creates a new MongoUserRepository
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection("users")}
}

// EnsureIndexes creates the unique and geo indexes the users collection relies on.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "ci", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "lastLocation", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	return err
}

// CreateUser inserts a new user. Email is stored lowercased.
func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

// GetUserByID retrieves a user by ID from MongoDB
func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetUserByEmail retrieves a user by email, including the password hash
func (r *MongoUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *MongoUserRepository) GetActiveUsers(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, bson.M{"isActive": true})
}

// GetAdmins returns every user with the admin role
func (r *MongoUserRepository) GetAdmins(ctx context.Context) ([]models.User, error) {
	return r.find(ctx, bson.M{"role": models.RoleAdmin})
}

// UpdateProfile applies the non-empty fields of req
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, req models.UpdateUserRequest) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Phone != "" {
		set["phone"] = req.Phone
	}
	if req.PushToken != nil {
		set["fcmToken"] = *req.PushToken
	}
	return r.updateOne(ctx, id, bson.M{"$set": set})
}

// UpdatePushToken replaces the device token used for push delivery
func (r *MongoUserRepository) UpdatePushToken(ctx context.Context, id primitive.ObjectID, token string) (*models.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"fcmToken": token, "updatedAt": time.Now()}})
}

func (r *MongoUserRepository) UpdateLocation(ctx context.Context, id primitive.ObjectID, point *models.GeoPoint) (*models.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"lastLocation": point, "updatedAt": time.Now()}})
}

// Activate sets the login credentials of a validated registration
func (r *MongoUserRepository) Activate(ctx context.Context, id primitive.ObjectID, passwordHash string) (*models.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"password":  passwordHash,
		"isActive":  true,
		"updatedAt": time.Now(),
	}})
}

// Deactivate soft-deletes the account
func (r *MongoUserRepository) Deactivate(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now()}})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoUserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update user %s: %w", id.Hex(), err)
	}
	return &user, nil
}
