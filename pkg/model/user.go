package model

import (
	"time"
)

type Role string

const (
	RoleTourist Role = "TOURIST"
	RoleGuide   Role = "GUIDE"
	RoleAdmin   Role = "ADMIN"
)

// Roles lists every role a registered user can hold.
func Roles() []Role {
	return []Role{RoleTourist, RoleGuide, RoleAdmin}
}

func (r Role) Valid() bool {
	switch r {
	case RoleTourist, RoleGuide, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name         string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Email        string    `json:"email" bson:"email" validate:"required,email"`
	PasswordHash string    `json:"-" bson:"password_hash" validate:"required"`
	Role         Role      `json:"role" bson:"role" validate:"required,oneof=TOURIST GUIDE ADMIN"`
	Image        string    `json:"image,omitempty" bson:"image,omitempty" validate:"omitempty,url"`
	Phone        string    `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	Address      string    `json:"address,omitempty" bson:"address,omitempty" validate:"omitempty,max=200"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// UserUpdate carries the profile fields a user may change about themselves.
// Role and email are deliberately absent: role is immutable post-registration
// and email changes are an admin concern.
type UserUpdate struct {
	Name    string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Image   string `json:"image,omitempty" validate:"omitempty,url"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,e164"`
	Address string `json:"address,omitempty" validate:"omitempty,max=200"`
}

// AdminUserUpdate is the moderation superset: admins may also reassign roles.
type AdminUserUpdate struct {
	UserUpdate
	Role Role `json:"role,omitempty" validate:"omitempty,oneof=TOURIST GUIDE ADMIN"`
}
