package models

import (
	"time"

	"nyumbani/rental/internal/utils"
)

// InquiryStatus is the lifecycle state of an inquiry.
type InquiryStatus string

const (
	InquiryStatusPending   InquiryStatus = "pending"
	InquiryStatusViewed    InquiryStatus = "viewed"
	InquiryStatusReplied   InquiryStatus = "replied"
	InquiryStatusScheduled InquiryStatus = "scheduled"
	InquiryStatusCancelled InquiryStatus = "cancelled"
	InquiryStatusCompleted InquiryStatus = "completed"
)

// Valid reports whether s is a known inquiry status.
func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryStatusPending, InquiryStatusViewed, InquiryStatusReplied,
		InquiryStatusScheduled, InquiryStatusCancelled, InquiryStatusCompleted:
		return true
	}
	return false
}

// Active reports whether s counts toward the one-active-inquiry-per-
// (property, tenant) constraint. Cancelled and completed inquiries release
// the slot.
func (s InquiryStatus) Active() bool {
	switch s {
	case InquiryStatusPending, InquiryStatusViewed, InquiryStatusReplied, InquiryStatusScheduled:
		return true
	}
	return false
}

// InquiryReply is one message in the inquiry conversation. Replies are
// append-only; insertion order is reply order and is never rewritten.
type InquiryReply struct {
	SenderID  utils.SixID `bson:"sender_id" json:"sender_id"`
	Message   string      `bson:"message" json:"message"`
	Read      bool        `bson:"read" json:"read"`
	CreatedAt time.Time   `bson:"created_at" json:"created_at"`
}

// ScheduledViewing is set once the landlord proposes a viewing slot, and
// confirmed by the tenant. Time is a wall-clock string ("10:00") as entered
// by the landlord; Date carries the calendar day.
type ScheduledViewing struct {
	Date      time.Time `bson:"date" json:"date"`
	Time      string    `bson:"time" json:"time"`
	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Confirmed bool      `bson:"confirmed" json:"confirmed"`
}

// Inquiry is one tenant's interest request on one property, together with
// the conversation and viewing arrangements that follow. PropertyID,
// TenantID and LandlordID are fixed at creation; LandlordID is copied from
// the property's owner, never taken from the caller.
type Inquiry struct {
	ID         utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyID utils.SixID `bson:"property_id" json:"property_id"`
	TenantID   utils.SixID `bson:"tenant_id" json:"tenant_id"`
	LandlordID utils.SixID `bson:"landlord_id" json:"landlord_id"`

	Message           string    `bson:"message" json:"message"`
	MoveInDate        time.Time `bson:"move_in_date" json:"move_in_date"`
	NumberOfOccupants int       `bson:"number_of_occupants" json:"number_of_occupants"`

	Status InquiryStatus `bson:"status" json:"status"`
	// Active mirrors Status.Active() and backs the partial unique index that
	// enforces one active inquiry per (property, tenant). Kept in sync by
	// every status mutation.
	Active bool `bson:"active" json:"-"`

	ScheduledViewing *ScheduledViewing `bson:"scheduled_viewing,omitempty" json:"scheduled_viewing,omitempty"`
	Replies          []InquiryReply    `bson:"replies" json:"replies"`

	// Per-party unread markers. False means there is activity the party has
	// not seen yet; reading the inquiry flips the reader's own flag to true,
	// replying flips the other party's flag to false.
	ViewedByLandlord bool `bson:"viewed_by_landlord" json:"viewed_by_landlord"`
	ViewedByTenant   bool `bson:"viewed_by_tenant" json:"viewed_by_tenant"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsParticipant reports whether the actor is the inquiry's tenant or
// landlord.
func (i *Inquiry) IsParticipant(actor Actor) bool {
	return actor.ID == i.TenantID || actor.ID == i.LandlordID
}
