// Package normalize converts between stored records and their wire form.
// Handlers never serialise models directly.
package normalize

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/models"
)

// TimeLayout is the canonical timestamp format on the wire.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Contact is the wire form of a listing contact block.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Listing is the wire form of a listing.
type Listing struct {
	ID              string   `json:"id"`
	Slug            string   `json:"slug"`
	OwnerID         string   `json:"ownerId"`
	Status          string   `json:"status"`
	ApprovedAt      *string  `json:"approvedAt"`
	ApprovedBy      *string  `json:"approvedBy"`
	RejectionReason *string  `json:"rejectionReason"`
	Verified        bool     `json:"verified"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Price           float64  `json:"price"`
	PriceUSD        *float64 `json:"priceUsd"`
	ListingType     string   `json:"listingType"`
	Location        string   `json:"location"`
	Category        string   `json:"category"`
	Bedrooms        *int     `json:"bedrooms"`
	Bathrooms       *int     `json:"bathrooms"`
	Area            *int     `json:"area"`
	Images          []string `json:"images"`
	Amenities       []string `json:"amenities"`
	Contact         Contact  `json:"contact"`
	Views           int64    `json:"views"`
	Favorites       int64    `json:"favorites"`
	CreatedAt       *string  `json:"createdAt"`
	UpdatedAt       *string  `json:"updatedAt"`
}

// User is the wire form of a user. Password material is never included.
type User struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Approved    bool     `json:"approved"`
	SuspendedAt *string  `json:"suspendedAt"`
	Favorites   []string `json:"favorites"`
	CreatedAt   *string  `json:"createdAt"`
	UpdatedAt   *string  `json:"updatedAt"`
}

// Page wraps a list of listings with paging data.
type Page struct {
	Listings []Listing `json:"listings"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// Time formats t in UTC, or returns nil for the zero time.
func Time(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(TimeLayout)
	return &s
}

// TimePtr is Time for nullable timestamps.
func TimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return Time(*t)
}

// ID renders an object id, or nil when it is unset.
func ID(id *primitive.ObjectID) *string {
	if id == nil || id.IsZero() {
		return nil
	}
	s := id.Hex()
	return &s
}

// IDs renders a list of object ids.
func IDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

// ToListing maps a stored listing to its wire form.
func ToListing(l *models.Listing) Listing {
	return Listing{
		ID:              l.ID.Hex(),
		Slug:            l.Slug,
		OwnerID:         l.OwnerID.Hex(),
		Status:          string(l.Status),
		ApprovedAt:      TimePtr(l.ApprovedAt),
		ApprovedBy:      ID(l.ApprovedBy),
		RejectionReason: l.RejectionReason,
		Verified:        l.Verified,
		Title:           l.Title,
		Description:     l.Description,
		Price:           l.Price,
		PriceUSD:        l.PriceUSD,
		ListingType:     l.ListingType,
		Location:        l.Location,
		Category:        l.Category,
		Bedrooms:        l.Bedrooms,
		Bathrooms:       l.Bathrooms,
		Area:            l.Area,
		Images:          orEmpty(l.Images),
		Amenities:       orEmpty(l.Amenities),
		Contact:         Contact{Name: l.Contact.Name, Email: l.Contact.Email, Phone: l.Contact.Phone},
		Views:           l.Views,
		Favorites:       l.Favorites,
		CreatedAt:       Time(l.CreatedAt),
		UpdatedAt:       Time(l.UpdatedAt),
	}
}

// ToListings maps a slice of stored listings.
func ToListings(ls []models.Listing) []Listing {
	out := make([]Listing, 0, len(ls))
	for i := range ls {
		out = append(out, ToListing(&ls[i]))
	}
	return out
}

// ToUser maps a stored user to its wire form.
func ToUser(u *models.User) User {
	return User{
		ID:          u.ID.Hex(),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Role:        string(u.Role),
		Approved:    u.Approved,
		SuspendedAt: TimePtr(u.SuspendedAt),
		Favorites:   IDs(u.Favorites),
		CreatedAt:   Time(u.CreatedAt),
		UpdatedAt:   Time(u.UpdatedAt),
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
