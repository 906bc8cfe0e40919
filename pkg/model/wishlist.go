package model

import (
	"time"
)

// WishlistEntry is one (user, tour) membership pair. Uniqueness of the
// pair is enforced by a unique compound index; insertion order is the
// listing order.
type WishlistEntry struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required,mongodb"`
	TourID    string    `json:"tour_id" bson:"tour_id" validate:"required,mongodb"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
