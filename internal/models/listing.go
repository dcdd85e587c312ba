package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the moderation status of a listing.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSuspended Status = "suspended"
	StatusSold      Status = "sold"
)

// Statuses lists every valid moderation status.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusSuspended, StatusSold}

// Valid reports whether s is one of the five moderation statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSuspended, StatusSold:
		return true
	}
	return false
}

// Listing types and property categories accepted on create/edit.
const (
	ListingTypeSale = "sale"
	ListingTypeRent = "rent"

	CategoryResidential = "residential"
	CategoryCommercial  = "commercial"
	CategoryLand        = "land"
)

// Contact is the public contact block shown on a listing.
type Contact struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone"`
}

// Listing is a property record subject to moderation.
// Nullable fields are stored as explicit nulls so partial updates can clear them.
type Listing struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Slug    string             `bson:"slug"`
	OwnerID primitive.ObjectID `bson:"owner_id"`

	// Moderation
	Status          Status              `bson:"status"`
	ApprovedAt      *time.Time          `bson:"approved_at"`
	ApprovedBy      *primitive.ObjectID `bson:"approved_by"`
	RejectionReason *string             `bson:"rejection_reason"`
	Verified        bool                `bson:"verified"`

	// Content
	Title       string   `bson:"title"`
	Description string   `bson:"description"`
	Price       float64  `bson:"price"`
	PriceUSD    *float64 `bson:"price_usd"`
	ListingType string   `bson:"listing_type"`
	Location    string   `bson:"location"`
	Category    string   `bson:"category"`
	Bedrooms    *int     `bson:"bedrooms"`
	Bathrooms   *int     `bson:"bathrooms"`
	Area        *int     `bson:"area"`
	Images      []string `bson:"images"`
	Amenities   []string `bson:"amenities"`
	Contact     Contact  `bson:"contact"`

	// Engagement
	Views     int64 `bson:"views"`
	Favorites int64 `bson:"favorites"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// IsOwnedBy reports whether subjectID submitted the listing.
func (l *Listing) IsOwnedBy(subjectID primitive.ObjectID) bool {
	return !subjectID.IsZero() && l.OwnerID == subjectID
}

// ListingFilter narrows listing searches. Zero values mean "no constraint".
type ListingFilter struct {
	Status      Status
	OwnerID     *primitive.ObjectID
	Location    string
	ListingType string
	Category    string
	MinBedrooms *int
	PriceMin    *float64
	PriceMax    *float64
	Page        int
	Limit       int
}
