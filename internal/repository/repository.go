// Package repository is the data-access boundary for listings, users and
// the records that reference a listing. It holds no business rules.
package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"estatehub/api/internal/models"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStatusChanged is returned by a conditional update whose expected
	// status no longer matches the stored one.
	ErrStatusChanged = errors.New("listing status changed concurrently")
)

// IListingRepository owns listing records.
type IListingRepository interface {
	// Insert stores a new listing, assigning its id and making its slug unique.
	Insert(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Listing, error)
	FindBySlug(ctx context.Context, slug string) (*models.Listing, error)
	// FindByRef resolves an id or, failing that, a slug.
	FindByRef(ctx context.Context, ref string) (*models.Listing, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Listing, error)
	Search(ctx context.Context, filter models.ListingFilter) ([]models.Listing, int64, error)
	// Update applies set to the listing. When expectStatus is non-nil the
	// write only applies if the stored status still equals it.
	Update(ctx context.Context, id primitive.ObjectID, set bson.M, expectStatus *models.Status) (*models.Listing, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	// AppendImage adds image to the end of the listing's images unless it is
	// already there.
	AppendImage(ctx context.Context, id primitive.ObjectID, image string, at time.Time) error
	// AdjustFavorites adds delta to the favorites counter. Decrements never
	// take the counter below zero; applied reports whether the write matched.
	AdjustFavorites(ctx context.Context, id primitive.ObjectID, delta int64) (applied bool, err error)
}

// IUserRepository exposes the parts of user records listings depend on.
type IUserRepository interface {
	Insert(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// AddFavorite adds listingID to the user's set. changed is false when it
	// was already there.
	AddFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (changed bool, err error)
	// RemoveFavorite removes listingID from the user's set. changed is false
	// when it was not there.
	RemoveFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (changed bool, err error)
	HasFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (bool, error)
	// PullFavoriteEverywhere removes listingID from every user's set.
	PullFavoriteEverywhere(ctx context.Context, listingID primitive.ObjectID) (int64, error)
}

// IDependentRepository removes records that reference a listing.
type IDependentRepository interface {
	// Name identifies the collection in cleanup reports.
	Name() string
	DeleteByListing(ctx context.Context, listingID primitive.ObjectID) (int64, error)
}

// base carries the per-call timeout shared by the Mongo repositories.
type base struct {
	timeout time.Duration
}

func (b base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}
