package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"estatehub/api/internal/db"
	"estatehub/api/internal/models"
)

type userRepository struct {
	base
	collection *mongo.Collection
}

// NewUserRepository returns a Mongo-backed user repository.
func NewUserRepository(database *mongo.Database, timeout time.Duration) IUserRepository {
	return &userRepository{
		base:       base{timeout: timeout},
		collection: database.Collection(db.UsersCollection),
	}
}

func (r *userRepository) Insert(ctx context.Context, user *models.User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Favorites == nil {
		user.Favorites = []primitive.ObjectID{}
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	_, err := r.collection.InsertOne(ctx, user)
	return errors.Wrapf(err, "failed to insert user %s", user.Email)
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M, what string) (*models.User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to find user %s", what)
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id.Hex())
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.findOne(ctx, bson.M{"email": email}, email)
}

// AddFavorite and RemoveFavorite filter on current membership so that the
// updated_at stamp does not count as a change.
func (r *userRepository) AddFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID, "favorites": bson.M{"$ne": listingID}},
		bson.M{
			"$addToSet": bson.M{"favorites": listingID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return false, errors.Wrapf(err, "failed to add favorite for user %s", userID.Hex())
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}
	return false, r.ensureExists(ctx, userID)
}

func (r *userRepository) RemoveFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID, "favorites": listingID},
		bson.M{
			"$pull": bson.M{"favorites": listingID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return false, errors.Wrapf(err, "failed to remove favorite for user %s", userID.Hex())
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}
	return false, r.ensureExists(ctx, userID)
}

func (r *userRepository) ensureExists(ctx context.Context, userID primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return errors.Wrapf(err, "failed to look up user %s", userID.Hex())
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) HasFavorite(ctx context.Context, userID, listingID primitive.ObjectID) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": userID, "favorites": listingID})
	if err != nil {
		return false, errors.Wrapf(err, "failed to read favorites of user %s", userID.Hex())
	}
	return n > 0, nil
}

func (r *userRepository) PullFavoriteEverywhere(ctx context.Context, listingID primitive.ObjectID) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.collection.UpdateMany(ctx,
		bson.M{"favorites": listingID},
		bson.M{"$pull": bson.M{"favorites": listingID}})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to pull listing %s from favorites", listingID.Hex())
	}
	return res.ModifiedCount, nil
}
