package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"estatehub/api/internal/db"
)

type dependentRepository struct {
	base
	collection *mongo.Collection
}

// NewDependentRepository removes records of one collection by listing_id.
func NewDependentRepository(database *mongo.Database, collection string, timeout time.Duration) IDependentRepository {
	return &dependentRepository{
		base:       base{timeout: timeout},
		collection: database.Collection(collection),
	}
}

// NewDependentRepositories returns repositories for bookings, messages and
// notifications.
func NewDependentRepositories(database *mongo.Database, timeout time.Duration) []IDependentRepository {
	return []IDependentRepository{
		NewDependentRepository(database, db.BookingsCollection, timeout),
		NewDependentRepository(database, db.MessagesCollection, timeout),
		NewDependentRepository(database, db.NotificationsCollection, timeout),
	}
}

func (r *dependentRepository) Name() string {
	return r.collection.Name()
}

func (r *dependentRepository) DeleteByListing(ctx context.Context, listingID primitive.ObjectID) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.collection.DeleteMany(ctx, bson.M{"listing_id": listingID})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to delete %s of listing %s", r.Name(), listingID.Hex())
	}
	return res.DeletedCount, nil
}
