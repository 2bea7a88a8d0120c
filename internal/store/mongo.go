package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookshelf/backend/internal/common"
	"github.com/bookshelf/backend/internal/models"
)

// MongoStore handles book CRUD in MongoDB. Every single-record operation
// filters on both _id and user_id in the same call.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("books")}
}

// EnsureIndexes creates the owner/created_at index used by ListByOwner.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo create index: %w", err)
	}
	return nil
}

// Insert stores book and fills in its generated id and creation time.
func (s *MongoStore) Insert(ctx context.Context, book *models.Book) error {
	book.ID = primitive.NilObjectID
	// Mongo keeps millisecond precision; truncate so the caller's copy
	// matches what is read back.
	book.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	res, err := s.col.InsertOne(ctx, book)
	if err != nil {
		return fmt.Errorf("mongo insert: %w", err)
	}
	book.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Book, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"user_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	books := []models.Book{}
	if err := cur.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return books, nil
}

func (s *MongoStore) GetOwned(ctx context.Context, ownerID, id string) (*models.Book, error) {
	filter, err := ownedFilter(ownerID, id)
	if err != nil {
		return nil, err
	}
	var book models.Book
	if err := s.col.FindOne(ctx, filter).Decode(&book); err != nil {
		return nil, mapMongoError("mongo find one", err)
	}
	return &book, nil
}

// UpdateOwned applies patch to the owner's book and returns the new version.
func (s *MongoStore) UpdateOwned(ctx context.Context, ownerID, id string, patch models.UpdateBookRequest) (*models.Book, error) {
	filter, err := ownedFilter(ownerID, id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var book models.Book
	err = s.col.FindOneAndUpdate(ctx, filter, updateDoc(patch), opts).Decode(&book)
	if err != nil {
		return nil, mapMongoError("mongo update", err)
	}
	return &book, nil
}

func (s *MongoStore) DeleteOwned(ctx context.Context, ownerID, id string) error {
	filter, err := ownedFilter(ownerID, id)
	if err != nil {
		return err
	}
	res, err := s.col.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ownedFilter matches a single book by id and owner. An id that is not a
// valid ObjectID cannot exist, so it is reported as not found.
func ownedFilter(ownerID, id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrNotFound
	}
	return bson.M{"_id": oid, "user_id": ownerID}, nil
}

// updateDoc builds a $set/$unset document from the supplied patch fields.
// user_id and created_at are never touched.
func updateDoc(patch models.UpdateBookRequest) bson.M {
	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Author != nil {
		set["author"] = *patch.Author
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.PublishedYear != nil {
		set["published_year"] = *patch.PublishedYear
	}
	return bson.M{"$set": set}
}

func mapMongoError(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return common.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
