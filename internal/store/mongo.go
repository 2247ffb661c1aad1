package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// uuidSubtype is the BSON binary subtype for RFC 4122 UUIDs.
const uuidSubtype byte = 0x04

// MongoStore keeps one document per user with the relation sets embedded as arrays.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoUser struct {
	ID           primitive.Binary   `bson:"_id"`
	Username     string             `bson:"username"`
	DisplayName  string             `bson:"display_name"`
	PasswordHash string             `bson:"password_hash"`
	Followers    []primitive.Binary `bson:"followers"`
	Following    []primitive.Binary `bson:"following"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// NewMongoStore uses the users collection of database and ensures its indexes.
func NewMongoStore(ctx context.Context, client *mongo.Client, database string) (*MongoStore, error) {
	collection := client.Database(database).Collection("users")
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating username index: %w", err)
	}
	return &MongoStore{client: client, collection: collection}, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": binaryID(id)})
}

func (s *MongoStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoStore) SearchByUsername(ctx context.Context, fragment string) ([]models.User, error) {
	filter := bson.M{"username": bson.M{"$regex": regexp.QuoteMeta(fragment)}}
	return s.find(ctx, filter)
}

func (s *MongoStore) AddToSet(ctx context.Context, id uuid.UUID, field Field, member uuid.UUID) error {
	if err := field.Validate(); err != nil {
		return err
	}
	update := bson.M{"$addToSet": bson.M{string(field): binaryID(member)}}
	return s.updateOne(ctx, id, update)
}

func (s *MongoStore) RemoveFromSet(ctx context.Context, id uuid.UUID, field Field, member uuid.UUID) error {
	if err := field.Validate(); err != nil {
		return err
	}
	update := bson.M{"$pull": bson.M{string(field): binaryID(member)}}
	return s.updateOne(ctx, id, update)
}

func (s *MongoStore) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	bins := make([]primitive.Binary, len(ids))
	for i, id := range ids {
		bins[i] = binaryID(id)
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": bins}})
}

func (s *MongoStore) Create(ctx context.Context, user models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	doc := mongoUser{
		ID:           binaryID(user.ID),
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		PasswordHash: user.PasswordHash,
		Followers:    binaryIDs(user.Followers),
		Following:    binaryIDs(user.Following),
		CreatedAt:    user.CreatedAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *MongoStore) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	cur, err := s.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []uuid.UUID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.Binary `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(doc.ID.Data)
		if err != nil {
			return nil, fmt.Errorf("corrupt user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, cur.Err()
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoStore) updateOne(ctx context.Context, id uuid.UUID, update bson.M) error {
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": binaryID(id)}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var doc mongoUser
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return doc.toModel()
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]models.User, error) {
	cur, err := s.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	users := []models.User{}
	for cur.Next(ctx) {
		var doc mongoUser
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		user, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, cur.Err()
}

func (d mongoUser) toModel() (models.User, error) {
	id, err := uuid.FromBytes(d.ID.Data)
	if err != nil {
		return models.User{}, fmt.Errorf("corrupt user id: %w", err)
	}
	followers, err := fromBinaryIDs(d.Followers)
	if err != nil {
		return models.User{}, err
	}
	following, err := fromBinaryIDs(d.Following)
	if err != nil {
		return models.User{}, err
	}
	return models.User{
		ID:           id,
		Username:     d.Username,
		DisplayName:  d.DisplayName,
		PasswordHash: d.PasswordHash,
		Followers:    followers,
		Following:    following,
		CreatedAt:    d.CreatedAt,
	}, nil
}

func binaryID(id uuid.UUID) primitive.Binary {
	return primitive.Binary{Subtype: uuidSubtype, Data: id[:]}
}

func binaryIDs(ids []uuid.UUID) []primitive.Binary {
	bins := make([]primitive.Binary, len(ids))
	for i, id := range ids {
		bins[i] = binaryID(id)
	}
	return bins
}

func fromBinaryIDs(bins []primitive.Binary) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(bins))
	for _, b := range bins {
		id, err := uuid.FromBytes(b.Data)
		if err != nil {
			return nil, fmt.Errorf("corrupt relation member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
