package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Records below belong to other subsystems and reference a listing by
// listing_id. They are removed when the listing is deleted.

// Booking is a requested property visit.
type Booking struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ListingID primitive.ObjectID `bson:"listing_id"`
	UserID    primitive.ObjectID `bson:"user_id"`
	VisitDate time.Time          `bson:"visit_date"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Message is a conversation entry about a listing.
type Message struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ListingID   primitive.ObjectID `bson:"listing_id"`
	SenderID    primitive.ObjectID `bson:"sender_id"`
	RecipientID primitive.ObjectID `bson:"recipient_id,omitempty"`
	Subject     string             `bson:"subject"`
	Content     string             `bson:"content"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// Notification is an in-app notice about a listing.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ListingID primitive.ObjectID `bson:"listing_id"`
	UserID    primitive.ObjectID `bson:"user_id"`
	Title     string             `bson:"title"`
	Read      bool               `bson:"read"`
	CreatedAt time.Time          `bson:"created_at"`
}
