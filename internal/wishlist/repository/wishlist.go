package repository

import (
	"context"
	"fmt"
	"time"

	"tourhub/pkg/config"
	"tourhub/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Wishlists"
)

type WishlistRepository interface {
	Add(ctx context.Context, entry *model.WishlistEntry) (bool, error)
	Remove(ctx context.Context, userID, tourID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*model.WishlistEntry, error)
	Contains(ctx context.Context, userID, tourID string) (bool, error)
}

type mongoWishlistRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoWishlistRepository(cfg *config.Config) WishlistRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoWishlistRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoWishlistRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Add inserts the entry unless it already exists. The unique
// (user_id, tour_id) index absorbs concurrent double-adds; a duplicate
// reports false with no error.
func (r *mongoWishlistRepository) Add(ctx context.Context, entry *model.WishlistEntry) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to add wishlist entry: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		entry.ID = oid.Hex()
	}
	return true, nil
}

// Remove deletes the entry, reporting whether anything was there.
func (r *mongoWishlistRepository) Remove(ctx context.Context, userID, tourID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{
		"user_id": userID,
		"tour_id": tourID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove wishlist entry: %w", err)
	}

	return result.DeletedCount > 0, nil
}

// ListByUser returns the user's entries in insertion order.
func (r *mongoWishlistRepository) ListByUser(ctx context.Context, userID string) ([]*model.WishlistEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.WishlistEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode wishlist: %w", err)
	}

	return entries, nil
}

func (r *mongoWishlistRepository) Contains(ctx context.Context, userID, tourID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"user_id": userID,
		"tour_id": tourID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check wishlist entry: %w", err)
	}

	return count > 0, nil
}
