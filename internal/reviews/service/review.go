package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tourhub/internal/authz"
	bookingserrors "tourhub/internal/bookings/errors"
	bookingsrepo "tourhub/internal/bookings/repository"
	reviewserrors "tourhub/internal/reviews/errors"
	"tourhub/internal/reviews/repository"
	"tourhub/internal/reviews/validator"
	toursrepo "tourhub/internal/tours/repository"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/events"
	"tourhub/pkg/model"
	"tourhub/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type ReviewService interface {
	Create(ctx context.Context, principal *auth.Principal, req *validator.ReviewRequest) (*model.Review, error)
	GetByID(ctx context.Context, id string) (*model.Review, error)
	Update(ctx context.Context, principal *auth.Principal, id string, updates *model.ReviewUpdate) (*model.Review, error)
	Delete(ctx context.Context, principal *auth.Principal, id string) error

	ByTour(ctx context.Context, tourID string, limit int, offset int64) ([]*model.Review, int64, error)
	ByGuide(ctx context.Context, guideID string, limit int, offset int64) ([]*model.Review, int64, error)
	Mine(ctx context.Context, principal *auth.Principal, limit int, offset int64) ([]*model.Review, int64, error)
	ListAll(ctx context.Context, limit int, offset int64) ([]*model.Review, int64, error)
}

type reviewService struct {
	repo      repository.ReviewRepository
	bookings  bookingsrepo.BookingRepository
	tours     toursrepo.TourRepository
	validator *validator.ReviewValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewReviewService(
	repo repository.ReviewRepository,
	bookings bookingsrepo.BookingRepository,
	tours toursrepo.TourRepository,
	validator *validator.ReviewValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReviewService {
	return &reviewService{
		repo:      repo,
		bookings:  bookings,
		tours:     tours,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create submits a review for a completed booking. Eligibility is
// strict: the caller must own the booking, the booking must be
// COMPLETED, and no review may already exist for it. Tour and guide are
// copied from the booking, never taken from the request.
func (s *reviewService) Create(ctx context.Context, principal *auth.Principal, req *validator.ReviewRequest) (*model.Review, error) {
	if !authz.Can(principal.Role, authz.CapWriteReviews) {
		return nil, apperrors.Forbidden("Only tourists can write reviews")
	}

	req.Comment = sanitizer.TrimAndNormalize(req.Comment)
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, apperrors.Validation("Review validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	booking, err := s.bookings.FindByID(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", req.BookingID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to check review eligibility", err)
	}

	if booking.UserID != principal.UserID {
		return nil, apperrors.Forbidden("You can only review your own bookings")
	}
	if booking.Status != model.BookingCompleted {
		return nil, apperrors.IneligibleBooking(booking.ID)
	}

	review := &model.Review{
		TourID:    booking.TourID,
		GuideID:   booking.GuideID,
		UserID:    principal.UserID,
		BookingID: booking.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	// The unique booking_id index makes the duplicate check race-proof;
	// the recompute rides in the same transaction as the insert.
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, review); err != nil {
			return err
		}
		return s.recomputeTourRating(sessCtx, review.TourID)
	})
	if err != nil {
		if errors.Is(err, reviewserrors.ErrDuplicateBooking) {
			return nil, apperrors.DuplicateReview(booking.ID)
		}
		s.cfg.Log.Error("Failed to create review",
			"booking_id", booking.ID,
			"user_id", principal.UserID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create review", err)
	}

	s.publisher.PublishReview(ctx, events.ReviewEvent{
		ReviewID:  review.ID,
		BookingID: review.BookingID,
		TourID:    review.TourID,
		GuideID:   review.GuideID,
		UserID:    review.UserID,
		Rating:    review.Rating,
	})

	s.cfg.Log.Info("Review created",
		"id", review.ID,
		"booking_id", review.BookingID,
		"tour_id", review.TourID,
		"rating", review.Rating,
	)
	return review, nil
}

func (s *reviewService) GetByID(ctx context.Context, id string) (*model.Review, error) {
	return s.find(ctx, id)
}

// Update lets the author revise rating or comment. The tour aggregate
// is recomputed when the rating changes.
func (s *reviewService) Update(ctx context.Context, principal *auth.Principal, id string, updates *model.ReviewUpdate) (*model.Review, error) {
	review, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if review.UserID != principal.UserID {
		return nil, apperrors.Forbidden("You can only edit your own reviews")
	}

	if updates.Comment != nil {
		normalized := sanitizer.TrimAndNormalize(*updates.Comment)
		updates.Comment = &normalized
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, apperrors.Validation("Review validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	ratingChanged := false
	if updates.Rating != nil && *updates.Rating != review.Rating {
		review.Rating = *updates.Rating
		ratingChanged = true
	}
	if updates.Comment != nil {
		review.Comment = *updates.Comment
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Update(sessCtx, id, review); err != nil {
			return fmt.Errorf("failed to update review: %w", err)
		}
		if ratingChanged {
			return s.recomputeTourRating(sessCtx, review.TourID)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update review",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update review", err)
	}

	s.cfg.Log.Info("Review updated", "id", id, "rating_changed", ratingChanged)
	return review, nil
}

// Delete removes a review. Authors delete their own; moderators delete
// anything.
func (s *reviewService) Delete(ctx context.Context, principal *auth.Principal, id string) error {
	review, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != principal.UserID && !authz.Can(principal.Role, authz.CapModerateReviews) {
		return apperrors.Forbidden("You can only delete your own reviews")
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}
		return s.recomputeTourRating(sessCtx, review.TourID)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete review",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to delete review", err)
	}

	s.cfg.Log.Info("Review deleted", "id", id, "deleted_by", principal.UserID)
	return nil
}

func (s *reviewService) ByTour(ctx context.Context, tourID string, limit int, offset int64) ([]*model.Review, int64, error) {
	if tourID == "" {
		return nil, 0, apperrors.InvalidInput("Tour ID cannot be empty")
	}
	return s.list(ctx, repository.ReviewFilter{TourID: tourID}, limit, offset)
}

func (s *reviewService) ByGuide(ctx context.Context, guideID string, limit int, offset int64) ([]*model.Review, int64, error) {
	if guideID == "" {
		return nil, 0, apperrors.InvalidInput("Guide ID cannot be empty")
	}
	return s.list(ctx, repository.ReviewFilter{GuideID: guideID}, limit, offset)
}

func (s *reviewService) Mine(ctx context.Context, principal *auth.Principal, limit int, offset int64) ([]*model.Review, int64, error) {
	return s.list(ctx, repository.ReviewFilter{UserID: principal.UserID}, limit, offset)
}

// ListAll is the moderation view; route-level role gating restricts it
// to admins.
func (s *reviewService) ListAll(ctx context.Context, limit int, offset int64) ([]*model.Review, int64, error) {
	return s.list(ctx, repository.ReviewFilter{}, limit, offset)
}

func (s *reviewService) recomputeTourRating(ctx context.Context, tourID string) error {
	rating, count, err := s.repo.AggregateTourRating(ctx, tourID)
	if err != nil {
		return fmt.Errorf("failed to aggregate tour rating: %w", err)
	}
	if err := s.tours.UpdateRating(ctx, tourID, rating, count); err != nil {
		return fmt.Errorf("failed to store tour rating: %w", err)
	}
	return nil
}

func (s *reviewService) list(ctx context.Context, filter repository.ReviewFilter, limit int, offset int64) ([]*model.Review, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var reviews []*model.Review
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count reviews", "error", err)
			errCount = apperrors.Internal("Failed to count reviews", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		reviews, err = s.repo.FindAll(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list reviews",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve reviews", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reviews, count, nil
}

func (s *reviewService) find(ctx context.Context, id string) (*model.Review, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Review ID cannot be empty")
	}

	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reviewserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Review", id)
		}
		if errors.Is(err, reviewserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid review ID format")
		}
		s.cfg.Log.Error("Failed to get review by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve review", err)
	}

	return review, nil
}
