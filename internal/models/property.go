package models

import (
	"time"

	"nyumbani/rental/internal/utils"
)

// PropertyType enumerates the supported kinds of rental units.
type PropertyType string

const (
	PropertyTypeBedsitter  PropertyType = "bedsitter"
	PropertyTypeStudio     PropertyType = "studio"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeOneBed     PropertyType = "1bedroom"
	PropertyTypeTwoBed     PropertyType = "2bedroom"
	PropertyTypeThreeBed   PropertyType = "3bedroom"
	PropertyTypeFourBed    PropertyType = "4bedroom"
	PropertyTypeMaisonette PropertyType = "maisonette"
	PropertyTypeVilla      PropertyType = "villa"
)

// Valid reports whether t is a known property type.
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeBedsitter, PropertyTypeStudio, PropertyTypeApartment,
		PropertyTypeOneBed, PropertyTypeTwoBed, PropertyTypeThreeBed,
		PropertyTypeFourBed, PropertyTypeMaisonette, PropertyTypeVilla:
		return true
	}
	return false
}

// PropertyStatus is the listing's publication state (distinct from the
// availability flag tenants see).
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusPending  PropertyStatus = "pending"
	PropertyStatusRented   PropertyStatus = "rented"
	PropertyStatusInactive PropertyStatus = "inactive"
)

// Coordinates is a lat/lng pair.
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// PropertyLocation describes where a property is.
type PropertyLocation struct {
	Address      string       `bson:"address" json:"address"`
	City         string       `bson:"city" json:"city"`
	Neighborhood string       `bson:"neighborhood,omitempty" json:"neighborhood,omitempty"`
	Coordinates  *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// Area is a surface measurement with its unit ("sqft" or "sqm").
type Area struct {
	Value float64 `bson:"value" json:"value"`
	Unit  string  `bson:"unit" json:"unit"`
}

// Specifications holds the physical attributes of a property.
type Specifications struct {
	Bedrooms  int   `bson:"bedrooms" json:"bedrooms"`
	Bathrooms int   `bson:"bathrooms" json:"bathrooms"`
	Area      *Area `bson:"area,omitempty" json:"area,omitempty"`
	Furnished bool  `bson:"furnished" json:"furnished"`
}

// PropertyPhoto is one uploaded photo. Key is the S3 object key, URL the
// public address clients load.
type PropertyPhoto struct {
	URL       string `bson:"url" json:"url"`
	Key       string `bson:"key,omitempty" json:"-"`
	IsPrimary bool   `bson:"is_primary" json:"is_primary"`
}

// ContactInfo is how tenants reach the landlord about this property.
type ContactInfo struct {
	Phone            string `bson:"phone" json:"phone"`
	WhatsApp         string `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	Email            string `bson:"email,omitempty" json:"email,omitempty"`
	PreferredContact string `bson:"preferred_contact" json:"preferred_contact"` // phone | whatsapp | email
}

// Availability controls whether tenants can see and inquire about a property.
type Availability struct {
	IsAvailable   bool       `bson:"is_available" json:"is_available"`
	AvailableFrom *time.Time `bson:"available_from,omitempty" json:"available_from,omitempty"`
	MinimumStay   int        `bson:"minimum_stay,omitempty" json:"minimum_stay,omitempty"` // months
	MaximumStay   int        `bson:"maximum_stay,omitempty" json:"maximum_stay,omitempty"` // months
}

// Property represents a rental listing.
type Property struct {
	ID              utils.SixID      `bson:"_id,omitempty" json:"id,omitempty"`
	LandlordID      utils.SixID      `bson:"landlord_id" json:"landlord_id"`
	Title           string           `bson:"title" json:"title"`
	Description     string           `bson:"description" json:"description"`
	PropertyType    PropertyType     `bson:"property_type" json:"property_type"`
	Price           float64          `bson:"price" json:"price"`
	PriceFrequency  string           `bson:"price_frequency" json:"price_frequency"` // monthly | yearly
	SecurityDeposit float64          `bson:"security_deposit" json:"security_deposit"`
	Location        PropertyLocation `bson:"location" json:"location"`
	Specifications  Specifications   `bson:"specifications" json:"specifications"`
	Amenities       []string         `bson:"amenities,omitempty" json:"amenities,omitempty"`
	Photos          []PropertyPhoto  `bson:"photos,omitempty" json:"photos,omitempty"`
	ContactInfo     ContactInfo      `bson:"contact_info" json:"contact_info"`
	Availability    Availability     `bson:"availability" json:"availability"`
	Views           int64            `bson:"views" json:"views"`
	Inquiries       int64            `bson:"inquiries" json:"inquiries"`
	IsFeatured      bool             `bson:"is_featured" json:"is_featured"`
	IsVerified      bool             `bson:"is_verified" json:"is_verified"`
	Status          PropertyStatus   `bson:"status" json:"status"`
	CreatedAt       time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `bson:"updated_at" json:"updated_at"`
}
