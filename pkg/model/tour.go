package model

import (
	"time"
)

type TourStatus string

const (
	TourActive   TourStatus = "ACTIVE"
	TourInactive TourStatus = "INACTIVE"
)

func TourStatuses() []TourStatus {
	return []TourStatus{TourActive, TourInactive}
}

type Tour struct {
	ID           string     `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	GuideID      string     `json:"guide_id" bson:"guide_id" validate:"required,mongodb"`
	Title        string     `json:"title" bson:"title" validate:"required,min=3,max=120"`
	Slug         string     `json:"slug" bson:"slug" validate:"required,min=3,max=140"`
	Description  string     `json:"description" bson:"description" validate:"required,min=10,max=5000"`
	Location     string     `json:"location" bson:"location" validate:"required,min=2,max=120"`
	TourFee      float64    `json:"tour_fee" bson:"tour_fee" validate:"required,gt=0"`
	MaxGroupSize int        `json:"max_group_size" bson:"max_group_size" validate:"required,min=1,max=200"`
	MaxDuration  int        `json:"max_duration_hours" bson:"max_duration_hours" validate:"required,min=1,max=336"`
	Category     string     `json:"category" bson:"category" validate:"required,min=2,max=60"`
	Images       []string   `json:"images,omitempty" bson:"images,omitempty" validate:"omitempty,max=10,dive,url"`
	Status       TourStatus `json:"status" bson:"status" validate:"required,oneof=ACTIVE INACTIVE"`
	Rating       float64    `json:"rating" bson:"rating" validate:"omitempty,min=0,max=5"`
	RatingCount  int        `json:"rating_count" bson:"rating_count" validate:"omitempty,min=0"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// Bookable reports whether new bookings may be created against the tour.
func (t *Tour) Bookable() bool {
	return t.Status == TourActive
}

type TourUpdate struct {
	Title        string   `json:"title,omitempty" validate:"omitempty,min=3,max=120"`
	Description  string   `json:"description,omitempty" validate:"omitempty,min=10,max=5000"`
	Location     string   `json:"location,omitempty" validate:"omitempty,min=2,max=120"`
	TourFee      *float64 `json:"tour_fee,omitempty" validate:"omitempty,gt=0"`
	MaxGroupSize *int     `json:"max_group_size,omitempty" validate:"omitempty,min=1,max=200"`
	MaxDuration  *int     `json:"max_duration_hours,omitempty" validate:"omitempty,min=1,max=336"`
	Category     string   `json:"category,omitempty" validate:"omitempty,min=2,max=60"`
	Images       []string `json:"images,omitempty" validate:"omitempty,max=10,dive,url"`
}
