package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	tourserrors "tourhub/internal/tours/errors"
	"tourhub/pkg/config"
	"tourhub/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Tours"
)

// TourFilter narrows listing queries. Zero values mean "no constraint".
type TourFilter struct {
	Status   model.TourStatus
	GuideID  string
	Category string
	Location string
}

type TourRepository interface {
	Create(ctx context.Context, tour *model.Tour) error
	FindByID(ctx context.Context, id string) (*model.Tour, error)
	FindBySlug(ctx context.Context, slug string) (*model.Tour, error)
	FindAll(ctx context.Context, filter TourFilter, limit int, offset int64) ([]*model.Tour, error)
	Count(ctx context.Context, filter TourFilter) (int64, error)
	Update(ctx context.Context, id string, tour *model.Tour) error
	UpdateRating(ctx context.Context, id string, rating float64, count int) error
	Delete(ctx context.Context, id string) error
}

type mongoTourRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTourRepository(cfg *config.Config) TourRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTourRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoTourRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (f TourFilter) toBSON() bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.GuideID != "" {
		query["guide_id"] = f.GuideID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Location != "" {
		query["location"] = f.Location
	}
	return query
}

func (r *mongoTourRepository) Create(ctx context.Context, tour *model.Tour) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	tour.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, tour)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tourserrors.ErrDuplicateSlug
		}
		return fmt.Errorf("failed to create tour: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		tour.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTourRepository) FindByID(ctx context.Context, id string) (*model.Tour, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", tourserrors.ErrInvalidID, id)
	}

	var tour model.Tour
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&tour)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tourserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find tour: %w", err)
	}

	return &tour, nil
}

func (r *mongoTourRepository) FindBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var tour model.Tour
	err := r.collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&tour)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tourserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find tour by slug: %w", err)
	}

	return &tour, nil
}

func (r *mongoTourRepository) FindAll(ctx context.Context, filter TourFilter, limit int, offset int64) ([]*model.Tour, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find tours: %w", err)
	}
	defer cursor.Close(ctx)

	var tours []*model.Tour
	if err = cursor.All(ctx, &tours); err != nil {
		return nil, fmt.Errorf("failed to decode tours: %w", err)
	}

	return tours, nil
}

func (r *mongoTourRepository) Count(ctx context.Context, filter TourFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter.toBSON())
	if err != nil {
		return 0, fmt.Errorf("failed to count tours: %w", err)
	}

	return count, nil
}

func (r *mongoTourRepository) Update(ctx context.Context, id string, tour *model.Tour) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", tourserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"title":              tour.Title,
			"slug":               tour.Slug,
			"description":        tour.Description,
			"location":           tour.Location,
			"tour_fee":           tour.TourFee,
			"max_group_size":     tour.MaxGroupSize,
			"max_duration_hours": tour.MaxDuration,
			"category":           tour.Category,
			"images":             tour.Images,
			"status":             tour.Status,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tourserrors.ErrDuplicateSlug
		}
		return fmt.Errorf("failed to update tour: %w", err)
	}
	if result.MatchedCount == 0 {
		return tourserrors.ErrNotFound
	}

	return nil
}

// UpdateRating writes the recomputed aggregate. Callers own the math;
// this is a plain field write so it composes with transactions.
func (r *mongoTourRepository) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", tourserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"rating":       rating,
			"rating_count": count,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update tour rating: %w", err)
	}
	if result.MatchedCount == 0 {
		return tourserrors.ErrNotFound
	}

	return nil
}

func (r *mongoTourRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", tourserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete tour: %w", err)
	}
	if result.DeletedCount == 0 {
		return tourserrors.ErrNotFound
	}

	return nil
}
