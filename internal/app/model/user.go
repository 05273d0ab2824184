package model

import (
	"github.com/google/uuid"
	"time"
)

type Role string

const (
	RoleVendor Role = "vendor"
	RoleBuyer  Role = "buyer"
	RoleAdmin  Role = "admin"
)

// Valid reports whether the role is one a user may register with.
func (r Role) Valid() bool {
	return r == RoleVendor || r == RoleBuyer
}

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"-"`
}

type Profile struct {
	UserID   uuid.UUID `json:"-"`
	Name     string    `json:"name"`
	Phone    string    `json:"phone"`
	Location string    `json:"location"`
}
