package events

import (
	"context"
	"time"

	"tourhub/pkg/kafka"
	"tourhub/pkg/logger"
	"tourhub/pkg/model"
)

// Event types emitted on the service topic. Downstream consumers
// (notifications, analytics) key off these; the API service only emits.
const (
	TypeBookingCreated       = "booking.created"
	TypePaymentInitiated     = "payment.initiated"
	TypePaymentResolved      = "payment.resolved"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeReviewCreated        = "review.created"
)

// BookingEvent is the shared payload for booking lifecycle events.
// FromStatus is empty on creation.
type BookingEvent struct {
	BookingID     string              `json:"booking_id"`
	TourID        string              `json:"tour_id"`
	UserID        string              `json:"user_id"`
	GuideID       string              `json:"guide_id"`
	FromStatus    model.BookingStatus `json:"from_status,omitempty"`
	ToStatus      model.BookingStatus `json:"to_status"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	Amount        float64             `json:"amount,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

type ReviewEvent struct {
	ReviewID   string    `json:"review_id"`
	BookingID  string    `json:"booking_id"`
	TourID     string    `json:"tour_id"`
	GuideID    string    `json:"guide_id"`
	UserID     string    `json:"user_id"`
	Rating     int       `json:"rating"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits domain events. Publishing is fire-and-forget from the
// caller's perspective: the state change has already committed, so a
// broker failure is logged, never surfaced to the client.
type Publisher interface {
	PublishBooking(ctx context.Context, eventType string, event BookingEvent)
	PublishReview(ctx context.Context, event ReviewEvent)
}

type kafkaPublisher struct {
	producer *kafka.Producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

func (p *kafkaPublisher) PublishBooking(ctx context.Context, eventType string, event BookingEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventType(eventType).
		WithSource(p.source).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) PublishReview(ctx context.Context, event ReviewEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg := kafka.NewMessage().
		WithKey(event.TourID).
		WithValue(event).
		WithEventType(TypeReviewCreated).
		WithSource(p.source).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Error("Failed to publish review event",
			"review_id", event.ReviewID,
			"error", err,
		)
	}
}

type noopPublisher struct{}

// NewNoopPublisher is used when no brokers are configured and in tests.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishBooking(context.Context, string, BookingEvent) {}
func (noopPublisher) PublishReview(context.Context, ReviewEvent)          {}
