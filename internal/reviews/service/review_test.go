package service

import (
	"context"
	"testing"
	"time"

	bookingserrors "tourhub/internal/bookings/errors"
	bookingsrepo "tourhub/internal/bookings/repository"
	reviewserrors "tourhub/internal/reviews/errors"
	"tourhub/internal/reviews/repository"
	"tourhub/internal/reviews/validator"
	tourserrors "tourhub/internal/tours/errors"
	toursrepo "tourhub/internal/tours/repository"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	mongotx "tourhub/pkg/db/mongo"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/events"
	"tourhub/pkg/logger"
	"tourhub/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	tourID    = "650000000000000000000001"
	touristID = "650000000000000000000002"
	guideID   = "650000000000000000000003"
	adminID   = "650000000000000000000004"
	bookingID = "650000000000000000000005"
	reviewID  = "650000000000000000000007"
	otherID   = "650000000000000000000008"
)

// ────────────────────────────────────────────────
// In-memory repositories for testing
// ────────────────────────────────────────────────

type memReviewRepository struct {
	reviews map[string]*model.Review
	nextID  int
}

func newMemReviewRepository() *memReviewRepository {
	return &memReviewRepository{reviews: make(map[string]*model.Review)}
}

func (m *memReviewRepository) Create(ctx context.Context, review *model.Review) error {
	for _, existing := range m.reviews {
		if existing.BookingID == review.BookingID {
			return reviewserrors.ErrDuplicateBooking
		}
	}
	review.ID = reviewID
	review.CreatedAt = time.Now().UTC()
	m.reviews[review.ID] = review
	return nil
}

func (m *memReviewRepository) FindByID(ctx context.Context, id string) (*model.Review, error) {
	review, ok := m.reviews[id]
	if !ok {
		return nil, reviewserrors.ErrNotFound
	}
	clone := *review
	return &clone, nil
}

func (m *memReviewRepository) FindByBookingID(ctx context.Context, bookingID string) (*model.Review, error) {
	for _, review := range m.reviews {
		if review.BookingID == bookingID {
			clone := *review
			return &clone, nil
		}
	}
	return nil, reviewserrors.ErrNotFound
}

func (m *memReviewRepository) FindAll(ctx context.Context, filter repository.ReviewFilter, limit int, offset int64) ([]*model.Review, error) {
	var out []*model.Review
	for _, review := range m.reviews {
		if filter.TourID != "" && review.TourID != filter.TourID {
			continue
		}
		if filter.UserID != "" && review.UserID != filter.UserID {
			continue
		}
		out = append(out, review)
	}
	return out, nil
}

func (m *memReviewRepository) Count(ctx context.Context, filter repository.ReviewFilter) (int64, error) {
	found, _ := m.FindAll(ctx, filter, 0, 0)
	return int64(len(found)), nil
}

func (m *memReviewRepository) Update(ctx context.Context, id string, review *model.Review) error {
	if _, ok := m.reviews[id]; !ok {
		return reviewserrors.ErrNotFound
	}
	m.reviews[id] = review
	return nil
}

func (m *memReviewRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.reviews[id]; !ok {
		return reviewserrors.ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}

func (m *memReviewRepository) AggregateTourRating(ctx context.Context, tourID string) (float64, int, error) {
	sum, count := 0, 0
	for _, review := range m.reviews {
		if review.TourID == tourID {
			sum += review.Rating
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

func (m *memReviewRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

type stubBookingRepository struct {
	booking *model.Booking
}

func (s *stubBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return nil
}

func (s *stubBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if s.booking == nil || s.booking.ID != id {
		return nil, bookingserrors.ErrNotFound
	}
	return s.booking, nil
}

func (s *stubBookingRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Booking, error) {
	return nil, bookingserrors.ErrTransactionNotFound
}

func (s *stubBookingRepository) FindAll(ctx context.Context, filter bookingsrepo.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (s *stubBookingRepository) Count(ctx context.Context, filter bookingsrepo.BookingFilter) (int64, error) {
	return 0, nil
}

func (s *stubBookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) error {
	return nil
}

func (s *stubBookingRepository) SetPayment(ctx context.Context, id string, payment *model.Payment, from model.PaymentStatus) error {
	return nil
}

func (s *stubBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

// ratingRecorder captures the denormalized aggregate writes.
type ratingRecorder struct {
	rating float64
	count  int
}

func (r *ratingRecorder) Create(ctx context.Context, tour *model.Tour) error { return nil }

func (r *ratingRecorder) FindByID(ctx context.Context, id string) (*model.Tour, error) {
	return nil, tourserrors.ErrNotFound
}

func (r *ratingRecorder) FindBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	return nil, tourserrors.ErrNotFound
}

func (r *ratingRecorder) FindAll(ctx context.Context, filter toursrepo.TourFilter, limit int, offset int64) ([]*model.Tour, error) {
	return nil, nil
}

func (r *ratingRecorder) Count(ctx context.Context, filter toursrepo.TourFilter) (int64, error) {
	return 0, nil
}

func (r *ratingRecorder) Update(ctx context.Context, id string, tour *model.Tour) error { return nil }

func (r *ratingRecorder) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	r.rating = rating
	r.count = count
	return nil
}

func (r *ratingRecorder) Delete(ctx context.Context, id string) error { return nil }

func completedBooking() *model.Booking {
	return &model.Booking{
		ID:      bookingID,
		TourID:  tourID,
		UserID:  touristID,
		GuideID: guideID,
		Status:  model.BookingCompleted,
	}
}

func newTestService(reviews *memReviewRepository, booking *model.Booking, tours *ratingRecorder) ReviewService {
	cfg := &config.Config{Log: logger.Discard()}
	if tours == nil {
		tours = &ratingRecorder{}
	}
	return NewReviewService(
		reviews,
		&stubBookingRepository{booking: booking},
		tours,
		validator.NewReviewValidator(cfg.Log),
		events.NewNoopPublisher(),
		cfg,
	)
}

func tourist() *auth.Principal {
	return &auth.Principal{UserID: touristID, Role: model.RoleTourist}
}

func request(rating int) *validator.ReviewRequest {
	return &validator.ReviewRequest{
		BookingID: bookingID,
		Rating:    rating,
		Comment:   "Unforgettable night under the stars.",
	}
}

// ────────────────────────────────────────────────
// Eligibility gate
// ────────────────────────────────────────────────

func TestCreate_CompletedOwnBooking(t *testing.T) {
	reviews := newMemReviewRepository()
	tours := &ratingRecorder{}
	svc := newTestService(reviews, completedBooking(), tours)

	review, err := svc.Create(context.Background(), tourist(), request(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if review.TourID != tourID || review.GuideID != guideID {
		t.Error("tour and guide must be copied from the booking")
	}
	if tours.rating != 5 || tours.count != 1 {
		t.Errorf("tour aggregate must be recomputed, got %.1f/%d", tours.rating, tours.count)
	}
}

func TestCreate_IncompleteBookingIneligible(t *testing.T) {
	for _, status := range []model.BookingStatus{
		model.BookingPending,
		model.BookingConfirmed,
		model.BookingCancelled,
		model.BookingFailed,
	} {
		t.Run(string(status), func(t *testing.T) {
			booking := completedBooking()
			booking.Status = status
			svc := newTestService(newMemReviewRepository(), booking, nil)

			_, err := svc.Create(context.Background(), tourist(), request(4))
			if !apperrors.IsCode(err, apperrors.CodeIneligible) {
				t.Fatalf("expected ineligible booking, got %v", err)
			}
		})
	}
}

func TestCreate_OtherUsersBookingForbidden(t *testing.T) {
	svc := newTestService(newMemReviewRepository(), completedBooking(), nil)

	stranger := &auth.Principal{UserID: otherID, Role: model.RoleTourist}
	_, err := svc.Create(context.Background(), stranger, request(4))
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreate_DuplicateReviewKeepsFailing(t *testing.T) {
	svc := newTestService(newMemReviewRepository(), completedBooking(), nil)

	if _, err := svc.Create(context.Background(), tourist(), request(5)); err != nil {
		t.Fatalf("first review failed: %v", err)
	}

	// The second attempt fails, and keeps failing on every retry.
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), tourist(), request(3))
		if !apperrors.IsCode(err, apperrors.CodeDuplicateReview) {
			t.Fatalf("attempt %d: expected duplicate review, got %v", i, err)
		}
	}
}

func TestCreate_GuideCannotReview(t *testing.T) {
	svc := newTestService(newMemReviewRepository(), completedBooking(), nil)

	guide := &auth.Principal{UserID: guideID, Role: model.RoleGuide}
	_, err := svc.Create(context.Background(), guide, request(5))
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for guide, got %v", err)
	}
}

func TestCreate_RatingBounds(t *testing.T) {
	svc := newTestService(newMemReviewRepository(), completedBooking(), nil)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Create(context.Background(), tourist(), request(rating))
		if !apperrors.IsCode(err, apperrors.CodeValidation) {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}
}

// ────────────────────────────────────────────────
// Update and delete
// ────────────────────────────────────────────────

func TestUpdate_AuthorOnlyAndRecompute(t *testing.T) {
	reviews := newMemReviewRepository()
	tours := &ratingRecorder{}
	svc := newTestService(reviews, completedBooking(), tours)

	if _, err := svc.Create(context.Background(), tourist(), request(5)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stranger := &auth.Principal{UserID: otherID, Role: model.RoleTourist}
	rating := 2
	if _, err := svc.Update(context.Background(), stranger, reviewID, &model.ReviewUpdate{Rating: &rating}); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for non-author, got %v", err)
	}

	updated, err := svc.Update(context.Background(), tourist(), reviewID, &model.ReviewUpdate{Rating: &rating})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Rating != 2 {
		t.Errorf("expected rating 2, got %d", updated.Rating)
	}
	if tours.rating != 2 {
		t.Errorf("tour aggregate must follow the rating change, got %.1f", tours.rating)
	}
}

func TestDelete_AuthorOrModerator(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		wantCode  string
	}{
		{"author may delete", tourist(), ""},
		{"admin may delete", &auth.Principal{UserID: adminID, Role: model.RoleAdmin}, ""},
		{"stranger is rejected", &auth.Principal{UserID: otherID, Role: model.RoleTourist}, apperrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviews := newMemReviewRepository()
			tours := &ratingRecorder{}
			svc := newTestService(reviews, completedBooking(), tours)
			if _, err := svc.Create(context.Background(), tourist(), request(4)); err != nil {
				t.Fatalf("create failed: %v", err)
			}

			err := svc.Delete(context.Background(), tt.principal, reviewID)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tours.count != 0 {
					t.Errorf("aggregate must drop to zero after delete, got %d", tours.count)
				}
				return
			}
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}
