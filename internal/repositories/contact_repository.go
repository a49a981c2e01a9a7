package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/safecircle/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrContactNotFound  = errors.New("contact not found")
	ErrDuplicateContact = errors.New("this user is already one of your contacts")
)

// ContactRepository defines the interface for emergency contact operations
type ContactRepository interface {
	CreateContact(ctx context.Context, contact *models.Contact) error
	GetContactByID(ctx context.Context, id primitive.ObjectID) (*models.Contact, error)
	FindByOwnerAndTarget(ctx context.Context, ownerID, targetID primitive.ObjectID) (*models.Contact, error)
	ListContactsForOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contact, error)
	UpdateContact(ctx context.Context, id primitive.ObjectID, req models.UpdateContactRequest) (*models.Contact, error)
	DeleteContact(ctx context.Context, id primitive.ObjectID) error
	TouchLastNotified(ctx context.Context, ids []primitive.ObjectID, at time.Time) error
}

// MongoContactRepository implements ContactRepository for MongoDB
type MongoContactRepository struct {
	collection *mongo.Collection
	users      string
}

// NewMongoContactRepository creates a new MongoContactRepository. Targets are joined
// from the users collection of the same database.
func NewMongoContactRepository(db *mongo.Database) *MongoContactRepository {
	return &MongoContactRepository{collection: db.Collection("contacts"), users: "users"}
}

func (r *MongoContactRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "alias", Value: 1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "contactUser", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

// CreateContact validates and inserts a contact. An owner holds at most one contact per target user.
func (r *MongoContactRepository) CreateContact(ctx context.Context, contact *models.Contact) error {
	if err := contact.Validate(); err != nil {
		return err
	}
	now := time.Now()
	contact.ID = primitive.NewObjectID()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	contact.Target = nil

	if _, err := r.collection.InsertOne(ctx, contact); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateContact
		}
		return err
	}
	return nil
}

// GetContactByID retrieves a contact with its target user populated
func (r *MongoContactRepository) GetContactByID(ctx context.Context, id primitive.ObjectID) (*models.Contact, error) {
	contacts, err := r.aggregate(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, ErrContactNotFound
	}
	return &contacts[0], nil
}

// FindByOwnerAndTarget returns the owner's contact entry for target, if any
func (r *MongoContactRepository) FindByOwnerAndTarget(ctx context.Context, ownerID, targetID primitive.ObjectID) (*models.Contact, error) {
	var contact models.Contact
	err := r.collection.FindOne(ctx, bson.M{"user": ownerID, "contactUser": targetID}).Decode(&contact)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return &contact, nil
}

// ListContactsForOwner returns the owner's contacts ordered by alias, each with
// Target resolved. A contact whose target no longer exists has a nil Target.
func (r *MongoContactRepository) ListContactsForOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contact, error) {
	return r.aggregate(ctx, bson.M{"user": ownerID})
}

// UpdateContact applies the set fields of req; contactUser is never modified
func (r *MongoContactRepository) UpdateContact(ctx context.Context, id primitive.ObjectID, req models.UpdateContactRequest) (*models.Contact, error) {
	set := bson.M{"updatedAt": time.Now()}
	if req.Alias != nil {
		set["alias"] = *req.Alias
	}
	if req.Relationship != nil {
		set["relationship"] = *req.Relationship
	}
	if req.NotificationMethods != nil {
		set["notificationMethods"] = *req.NotificationMethods
	}
	if req.NotificationPriority != nil {
		if err := models.ValidatePriority(req.NotificationPriority); err != nil {
			return nil, err
		}
		set["notificationPriority"] = req.NotificationPriority
	}
	if req.IsEmergencyContact != nil {
		set["isEmergencyContact"] = *req.IsEmergencyContact
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update contact %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrContactNotFound
	}
	return r.GetContactByID(ctx, id)
}

// DeleteContact deletes a contact by ID
func (r *MongoContactRepository) DeleteContact(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrContactNotFound
	}
	return nil
}

// TouchLastNotified stamps lastNotifiedAt on every listed contact
func (r *MongoContactRepository) TouchLastNotified(ctx context.Context, ids []primitive.ObjectID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"lastNotifiedAt": at, "updatedAt": at}},
	)
	return err
}

func (r *MongoContactRepository) aggregate(ctx context.Context, match bson.M) ([]models.Contact, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "alias", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: r.users},
			{Key: "localField", Value: "contactUser"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "target"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$target"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "target.password", Value: 0}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	contacts := []models.Contact{}
	if err = cursor.All(ctx, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}
