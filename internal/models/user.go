package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role defines what a user may do across the marketplace.
type Role string

const (
	RoleUser     Role = "user"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
	RoleInvestor Role = "investor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin, RoleInvestor:
		return true
	}
	return false
}

// User is owned by the account subsystem; listings only reference it.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	FirstName    string               `bson:"first_name"`
	LastName     string               `bson:"last_name"`
	Email        string               `bson:"email"`
	PasswordHash string               `bson:"password"`
	Role         Role                 `bson:"role"`
	Approved     bool                 `bson:"approved"`
	SuspendedAt  *time.Time           `bson:"suspended_at,omitempty"`
	Favorites    []primitive.ObjectID `bson:"favorites"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

// Suspended reports whether the account has been suspended.
func (u *User) Suspended() bool {
	return u.SuspendedAt != nil
}
