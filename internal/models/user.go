package models

import (
	"time"

	"nyumbani/rental/internal/utils"
)

// Role distinguishes the two kinds of marketplace users. Every operation in
// the inquiry lifecycle behaves differently depending on which side of the
// conversation the caller is on, so the role travels with the identity.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleTenant || r == RoleLandlord
}

// Actor is the authenticated identity passed into every service call.
// Services never consult ambient request state; authorization decisions are
// made against this value only.
type Actor struct {
	ID   utils.SixID
	Role Role
}

// User represents a registered tenant or landlord.
type User struct {
	ID           utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	Email        string      `bson:"email" json:"email"`
	PasswordHash string      `bson:"password" json:"-"`
	FullName     string      `bson:"full_name" json:"full_name"`
	Phone        string      `bson:"phone" json:"phone"`
	Role         Role        `bson:"role" json:"role"`

	// Landlord profile
	CompanyName     string `bson:"company_name,omitempty" json:"company_name,omitempty"`
	BusinessAddress string `bson:"business_address,omitempty" json:"business_address,omitempty"`
	TotalListings   int    `bson:"total_listings" json:"total_listings"`

	// Tenant profile
	PreferredLocations []string      `bson:"preferred_locations,omitempty" json:"preferred_locations,omitempty"`
	MaxBudget          float64       `bson:"max_budget,omitempty" json:"max_budget,omitempty"`
	MoveInDate         *time.Time    `bson:"move_in_date,omitempty" json:"move_in_date,omitempty"`
	SavedProperties    []utils.SixID `bson:"saved_properties,omitempty" json:"saved_properties,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Actor returns the actor value for this user.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
