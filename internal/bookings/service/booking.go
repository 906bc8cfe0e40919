package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tourhub/internal/authz"
	bookingserrors "tourhub/internal/bookings/errors"
	"tourhub/internal/bookings/repository"
	"tourhub/internal/bookings/validator"
	toursrepo "tourhub/internal/tours/repository"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/events"
	"tourhub/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

type BookingService interface {
	Create(ctx context.Context, principal *auth.Principal, req *validator.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, principal *auth.Principal, id string) (*model.Booking, error)

	InitiatePayment(ctx context.Context, principal *auth.Principal, bookingID string) (*model.Payment, error)
	ResolvePayment(ctx context.Context, transactionID string, outcome model.PaymentStatus) error

	Accept(ctx context.Context, principal *auth.Principal, id string) error
	Reject(ctx context.Context, principal *auth.Principal, id string) error
	Cancel(ctx context.Context, principal *auth.Principal, id string) error
	Complete(ctx context.Context, principal *auth.Principal, id string) error
	ForceStatus(ctx context.Context, principal *auth.Principal, id string, status model.BookingStatus) error

	Mine(ctx context.Context, principal *auth.Principal, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	GuideBookings(ctx context.Context, principal *auth.Principal, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	ListAll(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	tours     toursrepo.TourRepository
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	tours toursrepo.TourRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		tours:     tours,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create opens a PENDING booking against an ACTIVE tour. The fee and
// guide come from the tour document, never from the request.
func (s *bookingService) Create(ctx context.Context, principal *auth.Principal, req *validator.BookingRequest) (*model.Booking, error) {
	if !authz.Can(principal.Role, authz.CapBookTours) {
		return nil, apperrors.Forbidden("Only tourists can book tours")
	}

	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed",
			"tour_id", req.TourID,
			"user_id", principal.UserID,
			"error", err,
		)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	tour, err := s.tours.FindByID(ctx, req.TourID)
	if err != nil {
		return nil, apperrors.NotFoundWithID("Tour", req.TourID)
	}
	if !tour.Bookable() {
		return nil, apperrors.Conflict("This tour is not accepting bookings")
	}

	booking := &model.Booking{
		TourID:      tour.ID,
		UserID:      principal.UserID,
		GuideID:     tour.GuideID,
		BookingDate: req.BookingDate,
		BookingTime: req.BookingTime,
		TotalAmount: tour.TourFee,
		Status:      model.BookingPending,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"tour_id", tour.ID,
			"user_id", principal.UserID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.publisher.PublishBooking(ctx, events.TypeBookingCreated, events.BookingEvent{
		BookingID: booking.ID,
		TourID:    booking.TourID,
		UserID:    booking.UserID,
		GuideID:   booking.GuideID,
		ToStatus:  booking.Status,
		Amount:    booking.TotalAmount,
	})

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"tour_id", booking.TourID,
		"user_id", booking.UserID,
		"amount", booking.TotalAmount,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, principal *auth.Principal, id string) (*model.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canView(principal, booking) {
		return nil, apperrors.Forbidden("You are not a party to this booking")
	}
	return booking, nil
}

// InitiatePayment attaches an UNPAID payment with a fresh transaction id.
// Re-initiating while a payment is pending returns the existing one, so
// a double-submitted checkout never produces two transactions.
func (s *bookingService) InitiatePayment(ctx context.Context, principal *auth.Principal, bookingID string) (*model.Payment, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != principal.UserID {
		return nil, apperrors.Forbidden("Only the booking owner can pay for it")
	}
	if booking.Status != model.BookingPending {
		return nil, apperrors.InvalidState(fmt.Sprintf("Cannot pay for a %s booking", booking.Status))
	}

	if booking.Payment != nil {
		if booking.Payment.Status == model.PaymentUnpaid {
			return booking.Payment, nil
		}
		return nil, apperrors.InvalidState(fmt.Sprintf("Payment already resolved as %s", booking.Payment.Status))
	}

	payment := &model.Payment{
		Status:        model.PaymentUnpaid,
		TransactionID: uuid.New().String(),
		Amount:        booking.TotalAmount,
		InitiatedAt:   time.Now().UTC(),
	}

	if err := s.repo.SetPayment(ctx, booking.ID, payment, ""); err != nil {
		if errors.Is(err, bookingserrors.ErrStaleStatus) {
			return nil, apperrors.Conflict("A payment was already initiated for this booking")
		}
		s.cfg.Log.Error("Failed to initiate payment",
			"booking_id", booking.ID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to initiate payment", err)
	}

	s.publisher.PublishBooking(ctx, events.TypePaymentInitiated, events.BookingEvent{
		BookingID:     booking.ID,
		TourID:        booking.TourID,
		UserID:        booking.UserID,
		GuideID:       booking.GuideID,
		ToStatus:      booking.Status,
		PaymentStatus: payment.Status,
		Amount:        payment.Amount,
	})

	s.cfg.Log.Info("Payment initiated",
		"booking_id", booking.ID,
		"transaction_id", payment.TransactionID,
		"amount", payment.Amount,
	)
	return payment, nil
}

// ResolvePayment is the gateway callback. A PAID outcome leaves the
// booking PENDING for the guide to decide; CANCELLED and FAILED close
// the booking in the matching state. Replayed callbacks for an already
// resolved transaction are rejected by the payment transition table.
func (s *bookingService) ResolvePayment(ctx context.Context, transactionID string, outcome model.PaymentStatus) error {
	switch outcome {
	case model.PaymentPaid, model.PaymentCancelled, model.PaymentFailed:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("Unknown payment outcome: %s", outcome))
	}

	booking, err := s.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrTransactionNotFound) {
			return apperrors.NotFound("Payment transaction")
		}
		return apperrors.Internal("Failed to resolve payment", err)
	}

	if !booking.Payment.Status.CanTransitionTo(outcome) {
		return apperrors.InvalidState(fmt.Sprintf(
			"Payment cannot move from %s to %s", booking.Payment.Status, outcome,
		))
	}

	var bookingOutcome model.BookingStatus
	switch outcome {
	case model.PaymentCancelled:
		bookingOutcome = model.BookingCancelled
	case model.PaymentFailed:
		bookingOutcome = model.BookingFailed
	}

	now := time.Now().UTC()
	payment := *booking.Payment
	payment.Status = outcome
	payment.ResolvedAt = &now

	// Both writes are guarded by the status each was read at, so a
	// replayed callback racing this one loses the compare-and-set
	// instead of resolving the payment twice.
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.SetPayment(sessCtx, booking.ID, &payment, booking.Payment.Status); err != nil {
			return fmt.Errorf("failed to record payment outcome: %w", err)
		}
		if bookingOutcome != "" {
			if err := s.repo.UpdateStatus(sessCtx, booking.ID, booking.Status, bookingOutcome); err != nil {
				return fmt.Errorf("failed to close booking: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleStatus) {
			return apperrors.InvalidState("Payment was already resolved by another callback")
		}
		s.cfg.Log.Error("Failed to resolve payment",
			"booking_id", booking.ID,
			"transaction_id", transactionID,
			"outcome", outcome,
			"error", err,
		)
		return apperrors.Internal("Failed to resolve payment", err)
	}

	s.publisher.PublishBooking(ctx, events.TypePaymentResolved, events.BookingEvent{
		BookingID:     booking.ID,
		TourID:        booking.TourID,
		UserID:        booking.UserID,
		GuideID:       booking.GuideID,
		FromStatus:    booking.Status,
		ToStatus:      s.statusAfter(booking.Status, bookingOutcome),
		PaymentStatus: outcome,
		Amount:        payment.Amount,
	})

	s.cfg.Log.Info("Payment resolved",
		"booking_id", booking.ID,
		"transaction_id", transactionID,
		"outcome", outcome,
	)
	return nil
}

// Accept confirms a booking. Confirmation is the one transition with a
// payment precondition: the booking must be PENDING and already PAID.
func (s *bookingService) Accept(ctx context.Context, principal *auth.Principal, id string) error {
	booking, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeDecision(principal, booking); err != nil {
		return err
	}

	if booking.Status != model.BookingPending {
		return apperrors.InvalidState(fmt.Sprintf("Cannot accept a %s booking", booking.Status))
	}
	if !booking.Paid() {
		return apperrors.InvalidState("Cannot accept an unpaid booking")
	}

	return s.transition(ctx, booking, model.BookingConfirmed, false)
}

// Reject declines a PENDING booking, refunding any settled payment.
func (s *bookingService) Reject(ctx context.Context, principal *auth.Principal, id string) error {
	booking, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeDecision(principal, booking); err != nil {
		return err
	}

	if booking.Status != model.BookingPending {
		return apperrors.InvalidState(fmt.Sprintf("Cannot reject a %s booking", booking.Status))
	}

	return s.transition(ctx, booking, model.BookingCancelled, booking.Paid())
}

// Cancel withdraws a booking. The owning tourist may cancel only while
// it is still PENDING; once confirmed, cancellation is a decision of the
// assigned guide or an admin, refunding any settled payment.
func (s *bookingService) Cancel(ctx context.Context, principal *auth.Principal, id string) error {
	booking, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if authz.Can(principal.Role, authz.CapBookTours) {
		if booking.UserID != principal.UserID {
			return apperrors.Forbidden("Only the booking owner can cancel it")
		}
		if booking.Status != model.BookingPending {
			return apperrors.InvalidState(fmt.Sprintf("Cannot cancel a %s booking", booking.Status))
		}
	} else {
		if err := s.authorizeDecision(principal, booking); err != nil {
			return err
		}
		if !booking.Status.CanTransitionTo(model.BookingCancelled) {
			return apperrors.InvalidState(fmt.Sprintf("Cannot cancel a %s booking", booking.Status))
		}
	}

	return s.transition(ctx, booking, model.BookingCancelled, booking.Paid())
}

// Complete marks a CONFIRMED booking as delivered. The scheduled date
// must have passed; a tour cannot be completed before it happens.
func (s *bookingService) Complete(ctx context.Context, principal *auth.Principal, id string) error {
	booking, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeDecision(principal, booking); err != nil {
		return err
	}

	if booking.Status != model.BookingConfirmed {
		return apperrors.InvalidState(fmt.Sprintf("Cannot complete a %s booking", booking.Status))
	}
	if booking.BookingDate.After(time.Now()) {
		return apperrors.InvalidState("Cannot complete a booking before its scheduled date")
	}

	return s.transition(ctx, booking, model.BookingCompleted, false)
}

// ForceStatus is the admin override. It still honors the lifecycle
// graph: terminal states stay terminal for admins too.
func (s *bookingService) ForceStatus(ctx context.Context, principal *auth.Principal, id string, status model.BookingStatus) error {
	if !authz.Can(principal.Role, authz.CapViewAllBookings) {
		return apperrors.Forbidden("Only admins can force booking status")
	}
	if !status.Valid() {
		return apperrors.InvalidInput(fmt.Sprintf("Unknown booking status: %s", status))
	}

	booking, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if !booking.Status.CanTransitionTo(status) {
		return apperrors.InvalidState(fmt.Sprintf(
			"Booking cannot move from %s to %s", booking.Status, status,
		))
	}

	refund := status == model.BookingCancelled && booking.Paid()
	return s.transition(ctx, booking, status, refund)
}

func (s *bookingService) Mine(ctx context.Context, principal *auth.Principal, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.list(ctx, repository.BookingFilter{UserID: principal.UserID, Status: status}, limit, offset)
}

func (s *bookingService) GuideBookings(ctx context.Context, principal *auth.Principal, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.list(ctx, repository.BookingFilter{GuideID: principal.UserID, Status: status}, limit, offset)
}

func (s *bookingService) ListAll(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.list(ctx, repository.BookingFilter{Status: status}, limit, offset)
}

// transition applies an already authorized and guarded status change,
// optionally refunding the payment in the same mongo transaction.
func (s *bookingService) transition(ctx context.Context, booking *model.Booking, next model.BookingStatus, refund bool) error {
	if !booking.Status.CanTransitionTo(next) {
		return apperrors.InvalidState(fmt.Sprintf(
			"Booking cannot move from %s to %s", booking.Status, next,
		))
	}

	var payment *model.Payment
	if refund {
		if booking.Payment == nil || !booking.Payment.Status.CanTransitionTo(model.PaymentRefunded) {
			return apperrors.InvalidState("Payment cannot be refunded")
		}
		now := time.Now().UTC()
		refunded := *booking.Payment
		refunded.Status = model.PaymentRefunded
		refunded.ResolvedAt = &now
		payment = &refunded
	}

	// The guarded writes re-verify the status this decision was made
	// against. Two racing decisions both pass the checks above on their
	// own reads; only the first matches the stored status, the loser
	// gets ErrStaleStatus.
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.UpdateStatus(sessCtx, booking.ID, booking.Status, next); err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if payment != nil {
			if err := s.repo.SetPayment(sessCtx, booking.ID, payment, booking.Payment.Status); err != nil {
				return fmt.Errorf("failed to refund payment: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleStatus) {
			return apperrors.InvalidState(fmt.Sprintf(
				"Booking changed concurrently; cannot move to %s", next,
			))
		}
		s.cfg.Log.Error("Failed to transition booking",
			"id", booking.ID,
			"from", booking.Status,
			"to", next,
			"error", err,
		)
		return apperrors.Internal("Failed to update booking", err)
	}

	event := events.BookingEvent{
		BookingID:  booking.ID,
		TourID:     booking.TourID,
		UserID:     booking.UserID,
		GuideID:    booking.GuideID,
		FromStatus: booking.Status,
		ToStatus:   next,
		Amount:     booking.TotalAmount,
	}
	if payment != nil {
		event.PaymentStatus = payment.Status
	}
	s.publisher.PublishBooking(ctx, events.TypeBookingStatusChanged, event)

	s.cfg.Log.Info("Booking status changed",
		"id", booking.ID,
		"from", booking.Status,
		"to", next,
		"refunded", refund,
	)

	booking.Status = next
	if payment != nil {
		booking.Payment = payment
	}
	return nil
}

func (s *bookingService) list(ctx context.Context, filter repository.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindAll(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) find(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to get booking by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) canView(principal *auth.Principal, booking *model.Booking) bool {
	if authz.Can(principal.Role, authz.CapViewAllBookings) {
		return true
	}
	return booking.UserID == principal.UserID || booking.GuideID == principal.UserID
}

// authorizeDecision gates accept/reject/complete to the assigned guide
// and admins.
func (s *bookingService) authorizeDecision(principal *auth.Principal, booking *model.Booking) error {
	if authz.Can(principal.Role, authz.CapViewAllBookings) {
		return nil
	}
	if authz.Can(principal.Role, authz.CapDecideBookings) && booking.GuideID == principal.UserID {
		return nil
	}
	return apperrors.Forbidden("Only the assigned guide can decide this booking")
}

func (s *bookingService) statusAfter(current, outcome model.BookingStatus) model.BookingStatus {
	if outcome == "" {
		return current
	}
	return outcome
}
