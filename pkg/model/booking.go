package model

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingFailed    BookingStatus = "FAILED"
)

func BookingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingPending,
		BookingConfirmed,
		BookingCompleted,
		BookingCancelled,
		BookingFailed,
	}
}

// bookingTransitions is the single source of truth for the booking
// lifecycle. Confirmation additionally requires a PAID payment and
// completion requires the scheduled date to have passed; those guards
// live in the booking service, the shape of the graph lives here.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled, BookingFailed},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
	BookingCompleted: {},
	BookingCancelled: {},
	BookingFailed:    {},
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s BookingStatus) Terminal() bool {
	next, ok := bookingTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the lifecycle graph permits s -> next.
// It never allows leaving a terminal state, for any actor.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid    PaymentStatus = "UNPAID"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PaymentUnpaid,
		PaymentPaid,
		PaymentCancelled,
		PaymentFailed,
		PaymentRefunded,
	}
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:    {PaymentPaid, PaymentCancelled, PaymentFailed},
	PaymentPaid:      {PaymentRefunded},
	PaymentCancelled: {},
	PaymentFailed:    {},
	PaymentRefunded:  {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

func (s PaymentStatus) Terminal() bool {
	next, ok := paymentTransitions[s]
	return ok && len(next) == 0
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Payment is the monetary transaction tied 1:1 to a booking. It is
// embedded in the booking document; it does not exist on its own.
type Payment struct {
	Status        PaymentStatus `json:"status" bson:"status" validate:"required,oneof=UNPAID PAID CANCELLED FAILED REFUNDED"`
	TransactionID string        `json:"transaction_id" bson:"transaction_id" validate:"required,uuid4"`
	Amount        float64       `json:"amount" bson:"amount" validate:"required,gt=0"`
	InitiatedAt   time.Time     `json:"initiated_at" bson:"initiated_at" validate:"omitempty"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty" bson:"resolved_at,omitempty" validate:"omitempty"`
}

type Booking struct {
	ID          string        `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	TourID      string        `json:"tour_id" bson:"tour_id" validate:"required,mongodb"`
	UserID      string        `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	GuideID     string        `json:"guide_id" bson:"guide_id" validate:"required,mongodb"`
	BookingDate time.Time     `json:"booking_date" bson:"booking_date" validate:"required"`
	BookingTime string        `json:"booking_time" bson:"booking_time" validate:"required,datetime=15:04"`
	TotalAmount float64       `json:"total_amount" bson:"total_amount" validate:"required,gt=0"`
	Status      BookingStatus `json:"status" bson:"status" validate:"required,oneof=PENDING CONFIRMED COMPLETED CANCELLED FAILED"`
	Payment     *Payment      `json:"payment,omitempty" bson:"payment,omitempty" validate:"omitempty"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Paid reports whether the booking carries a successfully settled payment.
func (b *Booking) Paid() bool {
	return b.Payment != nil && b.Payment.Status == PaymentPaid
}
