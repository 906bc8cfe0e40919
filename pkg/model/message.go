package model

import (
	"time"
)

// Message is one chat message between two users. Delivery to live
// websocket connections is best effort; the stored document is the
// durable record.
type Message struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	SenderID   string    `json:"sender_id" bson:"sender_id" validate:"required,mongodb"`
	ReceiverID string    `json:"receiver_id" bson:"receiver_id" validate:"required,mongodb"`
	Text       string    `json:"text" bson:"text" validate:"required,min=1,max=4000"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
