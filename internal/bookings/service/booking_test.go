package service

import (
	"context"
	"testing"
	"time"

	bookingserrors "tourhub/internal/bookings/errors"
	"tourhub/internal/bookings/repository"
	"tourhub/internal/bookings/validator"
	toursrepo "tourhub/internal/tours/repository"
	tourserrors "tourhub/internal/tours/errors"
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
	otherID   = "650000000000000000000006"
)

// ────────────────────────────────────────────────
// In-memory repositories for testing
// ────────────────────────────────────────────────

// memBookingRepository holds a single booking and applies writes in
// place, which is enough to walk the lifecycle end to end.
type memBookingRepository struct {
	booking *model.Booking
}

func (m *memBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	booking.ID = bookingID
	booking.CreatedAt = time.Now().UTC()
	m.booking = booking
	return nil
}

func (m *memBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.booking == nil || m.booking.ID != id {
		return nil, bookingserrors.ErrNotFound
	}
	clone := *m.booking
	return &clone, nil
}

func (m *memBookingRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Booking, error) {
	if m.booking == nil || m.booking.Payment == nil || m.booking.Payment.TransactionID != transactionID {
		return nil, bookingserrors.ErrTransactionNotFound
	}
	clone := *m.booking
	return &clone, nil
}

func (m *memBookingRepository) FindAll(ctx context.Context, filter repository.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	return []*model.Booking{}, nil
}

func (m *memBookingRepository) Count(ctx context.Context, filter repository.BookingFilter) (int64, error) {
	return 0, nil
}

func (m *memBookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) error {
	if m.booking == nil || m.booking.ID != id {
		return bookingserrors.ErrNotFound
	}
	if m.booking.Status != from {
		return bookingserrors.ErrStaleStatus
	}
	m.booking.Status = to
	return nil
}

func (m *memBookingRepository) SetPayment(ctx context.Context, id string, payment *model.Payment, from model.PaymentStatus) error {
	if m.booking == nil || m.booking.ID != id {
		return bookingserrors.ErrNotFound
	}
	if from == "" {
		if m.booking.Payment != nil {
			return bookingserrors.ErrStaleStatus
		}
	} else if m.booking.Payment == nil || m.booking.Payment.Status != from {
		return bookingserrors.ErrStaleStatus
	}
	m.booking.Payment = payment
	return nil
}

func (m *memBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.SessionContext(nil))
}

// staleReadRepository serves reads from a frozen snapshot while writes
// hit the live store, reproducing two actors deciding from the same
// read of the booking.
type staleReadRepository struct {
	*memBookingRepository
	snapshot *model.Booking
}

func (s *staleReadRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if s.snapshot == nil || s.snapshot.ID != id {
		return nil, bookingserrors.ErrNotFound
	}
	return cloneBooking(s.snapshot), nil
}

func (s *staleReadRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Booking, error) {
	if s.snapshot == nil || s.snapshot.Payment == nil || s.snapshot.Payment.TransactionID != transactionID {
		return nil, bookingserrors.ErrTransactionNotFound
	}
	return cloneBooking(s.snapshot), nil
}

func cloneBooking(b *model.Booking) *model.Booking {
	clone := *b
	if b.Payment != nil {
		p := *b.Payment
		clone.Payment = &p
	}
	return &clone
}

type stubTourRepository struct {
	tour *model.Tour
}

func (s *stubTourRepository) Create(ctx context.Context, tour *model.Tour) error { return nil }

func (s *stubTourRepository) FindByID(ctx context.Context, id string) (*model.Tour, error) {
	if s.tour == nil || s.tour.ID != id {
		return nil, tourserrors.ErrNotFound
	}
	return s.tour, nil
}

func (s *stubTourRepository) FindBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	return nil, tourserrors.ErrNotFound
}

func (s *stubTourRepository) FindAll(ctx context.Context, filter toursrepo.TourFilter, limit int, offset int64) ([]*model.Tour, error) {
	return nil, nil
}

func (s *stubTourRepository) Count(ctx context.Context, filter toursrepo.TourFilter) (int64, error) {
	return 0, nil
}

func (s *stubTourRepository) Update(ctx context.Context, id string, tour *model.Tour) error {
	return nil
}

func (s *stubTourRepository) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	return nil
}

func (s *stubTourRepository) Delete(ctx context.Context, id string) error { return nil }

func activeTour() *model.Tour {
	return &model.Tour{
		ID:      tourID,
		GuideID: guideID,
		Title:   "Petra by Night",
		TourFee: 45,
		Status:  model.TourActive,
	}
}

func newTestService(repo repository.BookingRepository, tour *model.Tour) BookingService {
	cfg := &config.Config{Log: logger.Discard()}
	return NewBookingService(
		repo,
		&stubTourRepository{tour: tour},
		validator.NewBookingValidator(cfg.Log),
		events.NewNoopPublisher(),
		cfg,
	)
}

func tourist() *auth.Principal {
	return &auth.Principal{UserID: touristID, Role: model.RoleTourist}
}

func guide() *auth.Principal {
	return &auth.Principal{UserID: guideID, Role: model.RoleGuide}
}

func admin() *auth.Principal {
	return &auth.Principal{UserID: adminID, Role: model.RoleAdmin}
}

func request() *validator.BookingRequest {
	return &validator.BookingRequest{
		TourID:      tourID,
		BookingDate: time.Now().Add(48 * time.Hour),
		BookingTime: "09:30",
	}
}

// ────────────────────────────────────────────────
// Creation and payment
// ────────────────────────────────────────────────

func TestCreate_DerivesAmountAndGuideFromTour(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())

	booking, err := svc.Create(context.Background(), tourist(), request())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if booking.Status != model.BookingPending {
		t.Errorf("new bookings start PENDING, got %s", booking.Status)
	}
	if booking.TotalAmount != 45 {
		t.Errorf("amount must come from the tour fee, got %f", booking.TotalAmount)
	}
	if booking.GuideID != guideID {
		t.Errorf("guide must come from the tour, got %s", booking.GuideID)
	}
	if booking.Payment != nil {
		t.Error("new bookings carry no payment")
	}
}

func TestCreate_InactiveTourRejected(t *testing.T) {
	tour := activeTour()
	tour.Status = model.TourInactive
	svc := newTestService(&memBookingRepository{}, tour)

	_, err := svc.Create(context.Background(), tourist(), request())
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict for inactive tour, got %v", err)
	}
}

func TestCreate_GuideCannotBook(t *testing.T) {
	svc := newTestService(&memBookingRepository{}, activeTour())

	_, err := svc.Create(context.Background(), guide(), request())
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for guide booking, got %v", err)
	}
}

func TestCreate_PastDateRejected(t *testing.T) {
	svc := newTestService(&memBookingRepository{}, activeTour())

	req := request()
	req.BookingDate = time.Now().Add(-24 * time.Hour)
	_, err := svc.Create(context.Background(), tourist(), req)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for past date, got %v", err)
	}
}

func TestInitiatePayment_IdempotentWhileUnpaid(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())

	if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := svc.InitiatePayment(context.Background(), tourist(), bookingID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != model.PaymentUnpaid || first.TransactionID == "" {
		t.Fatalf("expected a fresh UNPAID payment, got %+v", first)
	}

	second, err := svc.InitiatePayment(context.Background(), tourist(), bookingID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.TransactionID != first.TransactionID {
		t.Error("re-initiating must not mint a second transaction")
	}
}

func TestInitiatePayment_OnlyOwner(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())

	if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	other := &auth.Principal{UserID: otherID, Role: model.RoleTourist}
	_, err := svc.InitiatePayment(context.Background(), other, bookingID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestResolvePayment_ReplayedCallbackRejected(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())

	if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	payment, err := svc.InitiatePayment(context.Background(), tourist(), bookingID)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	if err := svc.ResolvePayment(context.Background(), payment.TransactionID, model.PaymentPaid); err != nil {
		t.Fatalf("first callback failed: %v", err)
	}

	err = svc.ResolvePayment(context.Background(), payment.TransactionID, model.PaymentPaid)
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid state for replayed callback, got %v", err)
	}
}

func TestResolvePayment_FailureClosesBooking(t *testing.T) {
	tests := []struct {
		name        string
		outcome     model.PaymentStatus
		wantBooking model.BookingStatus
	}{
		{"cancelled payment cancels booking", model.PaymentCancelled, model.BookingCancelled},
		{"failed payment fails booking", model.PaymentFailed, model.BookingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memBookingRepository{}
			svc := newTestService(repo, activeTour())

			if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
				t.Fatalf("create failed: %v", err)
			}
			payment, err := svc.InitiatePayment(context.Background(), tourist(), bookingID)
			if err != nil {
				t.Fatalf("initiate failed: %v", err)
			}

			if err := svc.ResolvePayment(context.Background(), payment.TransactionID, tt.outcome); err != nil {
				t.Fatalf("callback failed: %v", err)
			}

			if repo.booking.Status != tt.wantBooking {
				t.Errorf("expected booking %s, got %s", tt.wantBooking, repo.booking.Status)
			}
			if repo.booking.Payment.Status != tt.outcome {
				t.Errorf("expected payment %s, got %s", tt.outcome, repo.booking.Payment.Status)
			}
			if repo.booking.Payment.ResolvedAt == nil {
				t.Error("resolved payments must carry a resolution timestamp")
			}
		})
	}
}

// ────────────────────────────────────────────────
// Guide decisions
// ────────────────────────────────────────────────

// payFor walks a booking to PENDING+PAID.
func payFor(t *testing.T, svc BookingService) {
	t.Helper()
	if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	payment, err := svc.InitiatePayment(context.Background(), tourist(), bookingID)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if err := svc.ResolvePayment(context.Background(), payment.TransactionID, model.PaymentPaid); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
}

func TestAccept_RequiresPendingAndPaid(t *testing.T) {
	t.Run("unpaid booking cannot be accepted", func(t *testing.T) {
		repo := &memBookingRepository{}
		svc := newTestService(repo, activeTour())
		if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		err := svc.Accept(context.Background(), guide(), bookingID)
		if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
			t.Fatalf("expected invalid state for unpaid accept, got %v", err)
		}
	})

	t.Run("paid pending booking is accepted", func(t *testing.T) {
		repo := &memBookingRepository{}
		svc := newTestService(repo, activeTour())
		payFor(t, svc)

		if err := svc.Accept(context.Background(), guide(), bookingID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.booking.Status != model.BookingConfirmed {
			t.Errorf("expected CONFIRMED, got %s", repo.booking.Status)
		}
	})

	t.Run("confirmed booking cannot be accepted twice", func(t *testing.T) {
		repo := &memBookingRepository{}
		svc := newTestService(repo, activeTour())
		payFor(t, svc)
		if err := svc.Accept(context.Background(), guide(), bookingID); err != nil {
			t.Fatalf("accept failed: %v", err)
		}

		err := svc.Accept(context.Background(), guide(), bookingID)
		if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})
}

func TestAccept_OnlyAssignedGuide(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)

	other := &auth.Principal{UserID: otherID, Role: model.RoleGuide}
	err := svc.Accept(context.Background(), other, bookingID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for another guide, got %v", err)
	}

	if err := svc.Accept(context.Background(), admin(), bookingID); err != nil {
		t.Fatalf("admin must be allowed to accept: %v", err)
	}
}

func TestAccept_RacingDecisionLosesGuardedWrite(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)

	// Both accepts decide from the same PENDING+PAID read; only the
	// first may land.
	stale := &staleReadRepository{memBookingRepository: repo, snapshot: cloneBooking(repo.booking)}
	raced := newTestService(stale, activeTour())

	if err := raced.Accept(context.Background(), guide(), bookingID); err != nil {
		t.Fatalf("first accept failed: %v", err)
	}

	err := raced.Accept(context.Background(), guide(), bookingID)
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid state for the losing accept, got %v", err)
	}
	if repo.booking.Status != model.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", repo.booking.Status)
	}
}

func TestResolvePayment_RacingCallbackLosesGuardedWrite(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	payment, err := svc.InitiatePayment(context.Background(), tourist(), bookingID)
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	// Two gateway callbacks read the same UNPAID payment; the second
	// outcome must not overwrite the first.
	stale := &staleReadRepository{memBookingRepository: repo, snapshot: cloneBooking(repo.booking)}
	raced := newTestService(stale, activeTour())

	if err := raced.ResolvePayment(context.Background(), payment.TransactionID, model.PaymentPaid); err != nil {
		t.Fatalf("first callback failed: %v", err)
	}

	err = raced.ResolvePayment(context.Background(), payment.TransactionID, model.PaymentFailed)
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid state for the losing callback, got %v", err)
	}
	if repo.booking.Payment.Status != model.PaymentPaid {
		t.Errorf("expected payment to stay PAID, got %s", repo.booking.Payment.Status)
	}
	if repo.booking.Status != model.BookingPending {
		t.Errorf("expected booking to stay PENDING, got %s", repo.booking.Status)
	}
}

func TestReject_RefundsPaidBooking(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)

	if err := svc.Reject(context.Background(), guide(), bookingID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.booking.Status != model.BookingCancelled {
		t.Errorf("expected CANCELLED, got %s", repo.booking.Status)
	}
	if repo.booking.Payment.Status != model.PaymentRefunded {
		t.Errorf("expected REFUNDED payment, got %s", repo.booking.Payment.Status)
	}
}

func TestCancel_TouristOnlyWhilePending(t *testing.T) {
	t.Run("owner cancels a pending booking", func(t *testing.T) {
		repo := &memBookingRepository{}
		svc := newTestService(repo, activeTour())
		if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		if err := svc.Cancel(context.Background(), tourist(), bookingID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.booking.Status != model.BookingCancelled {
			t.Errorf("expected CANCELLED, got %s", repo.booking.Status)
		}
	})

	t.Run("confirmed booking is out of the tourist's hands", func(t *testing.T) {
		repo := &memBookingRepository{}
		svc := newTestService(repo, activeTour())
		payFor(t, svc)
		if err := svc.Accept(context.Background(), guide(), bookingID); err != nil {
			t.Fatalf("accept failed: %v", err)
		}

		err := svc.Cancel(context.Background(), tourist(), bookingID)
		if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
			t.Fatalf("expected invalid state for tourist cancelling CONFIRMED, got %v", err)
		}
		if repo.booking.Status != model.BookingConfirmed {
			t.Errorf("booking must stay CONFIRMED, got %s", repo.booking.Status)
		}
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		repo := &memBookingRepository{}
		svc := newTestService(repo, activeTour())
		if _, err := svc.Create(context.Background(), tourist(), request()); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		stranger := &auth.Principal{UserID: otherID, Role: model.RoleTourist}
		err := svc.Cancel(context.Background(), stranger, bookingID)
		if !apperrors.IsCode(err, apperrors.CodeForbidden) {
			t.Fatalf("expected forbidden for a stranger, got %v", err)
		}
	})
}

func TestCancel_GuideCancelsConfirmedWithRefund(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)
	if err := svc.Accept(context.Background(), guide(), bookingID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	other := &auth.Principal{UserID: otherID, Role: model.RoleGuide}
	if err := svc.Cancel(context.Background(), other, bookingID); !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for another guide, got %v", err)
	}

	if err := svc.Cancel(context.Background(), guide(), bookingID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.booking.Status != model.BookingCancelled {
		t.Errorf("expected CANCELLED, got %s", repo.booking.Status)
	}
	if repo.booking.Payment.Status != model.PaymentRefunded {
		t.Errorf("expected REFUNDED payment, got %s", repo.booking.Payment.Status)
	}
}

func TestComplete_DateGuard(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)
	if err := svc.Accept(context.Background(), guide(), bookingID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	err := svc.Complete(context.Background(), guide(), bookingID)
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid state before the scheduled date, got %v", err)
	}

	// Backdate the booking so the tour has happened.
	repo.booking.BookingDate = time.Now().Add(-24 * time.Hour)

	if err := svc.Complete(context.Background(), guide(), bookingID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.booking.Status != model.BookingCompleted {
		t.Errorf("expected COMPLETED, got %s", repo.booking.Status)
	}
}

// ────────────────────────────────────────────────
// Admin override
// ────────────────────────────────────────────────

func TestForceStatus_HonorsLifecycleGraph(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)
	if err := svc.Reject(context.Background(), guide(), bookingID); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	// CANCELLED is terminal even for admins.
	err := svc.ForceStatus(context.Background(), admin(), bookingID, model.BookingConfirmed)
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid state for resurrecting a cancelled booking, got %v", err)
	}
}

func TestForceStatus_AdminOnly(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)

	err := svc.ForceStatus(context.Background(), guide(), bookingID, model.BookingCancelled)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for non-admin, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Visibility
// ────────────────────────────────────────────────

func TestGetByID_OnlyPartiesAndAdmin(t *testing.T) {
	repo := &memBookingRepository{}
	svc := newTestService(repo, activeTour())
	payFor(t, svc)

	for _, p := range []*auth.Principal{tourist(), guide(), admin()} {
		if _, err := svc.GetByID(context.Background(), p, bookingID); err != nil {
			t.Errorf("%s must see the booking: %v", p.Role, err)
		}
	}

	stranger := &auth.Principal{UserID: otherID, Role: model.RoleTourist}
	_, err := svc.GetByID(context.Background(), stranger, bookingID)
	if !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected forbidden for a stranger, got %v", err)
	}
}
