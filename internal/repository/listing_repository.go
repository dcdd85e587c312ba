package repository

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"estatehub/api/internal/db"
	"estatehub/api/internal/models"
)

const maxSearchLimit = 100

type listingRepository struct {
	base
	collection *mongo.Collection
}

// NewListingRepository returns a Mongo-backed listing repository.
func NewListingRepository(database *mongo.Database, timeout time.Duration) IListingRepository {
	return &listingRepository{
		base:       base{timeout: timeout},
		collection: database.Collection(db.ListingsCollection),
	}
}

func (r *listingRepository) Insert(ctx context.Context, listing *models.Listing) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if listing.ID.IsZero() {
		listing.ID = primitive.NewObjectID()
	}
	baseSlug := listing.Slug
	if baseSlug == "" {
		baseSlug = listing.ID.Hex()
	}

	err := db.Try(func(attempt int) error {
		listing.Slug = baseSlug
		if attempt > 0 {
			listing.Slug = baseSlug + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
		}
		_, err := r.collection.InsertOne(ctx, listing)
		return err
	})
	return errors.Wrapf(err, "failed to insert listing %s", listing.ID.Hex())
}

func (r *listingRepository) findOne(ctx context.Context, filter bson.M) (*models.Listing, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var listing models.Listing
	if err := r.collection.FindOne(ctx, filter).Decode(&listing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Listing, error) {
	listing, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrapf(err, "failed to find listing %s", id.Hex())
	}
	return listing, err
}

func (r *listingRepository) FindBySlug(ctx context.Context, slug string) (*models.Listing, error) {
	listing, err := r.findOne(ctx, bson.M{"slug": slug})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrapf(err, "failed to find listing by slug %q", slug)
	}
	return listing, err
}

func (r *listingRepository) FindByRef(ctx context.Context, ref string) (*models.Listing, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		listing, err := r.FindByID(ctx, id)
		if !errors.Is(err, ErrNotFound) {
			return listing, err
		}
	}
	return r.FindBySlug(ctx, ref)
}

func (r *listingRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Listing, error) {
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find listings by id")
	}
	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, errors.Wrap(err, "failed to decode listings")
	}
	return listings, nil
}

func (r *listingRepository) Search(ctx context.Context, filter models.ListingFilter) ([]models.Listing, int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := SearchQuery(filter)
	page, limit := Paging(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count listings")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to search listings")
	}
	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, 0, errors.Wrap(err, "failed to decode listings")
	}
	return listings, total, nil
}

// SearchQuery builds the Mongo filter for a listing search.
func SearchQuery(f models.ListingFilter) bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.OwnerID != nil {
		query["owner_id"] = *f.OwnerID
	}
	if f.Location != "" {
		query["location"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Location), Options: "i"}
	}
	if f.ListingType != "" {
		query["listing_type"] = f.ListingType
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.MinBedrooms != nil {
		query["bedrooms"] = bson.M{"$gte": *f.MinBedrooms}
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		price := bson.M{}
		if f.PriceMin != nil {
			price["$gte"] = *f.PriceMin
		}
		if f.PriceMax != nil {
			price["$lte"] = *f.PriceMax
		}
		query["price"] = price
	}
	return query
}

// Paging clamps the requested page and limit.
func Paging(f models.ListingFilter) (page, limit int) {
	page, limit = f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return page, limit
}

func (r *listingRepository) Update(ctx context.Context, id primitive.ObjectID, set bson.M, expectStatus *models.Status) (*models.Listing, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	if expectStatus != nil {
		filter["status"] = *expectStatus
	}

	var updated models.Listing
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(err, "failed to update listing %s", id.Hex())
	}

	// Nothing matched: either the listing is gone or its status moved on.
	if expectStatus == nil {
		return nil, ErrNotFound
	}
	current, findErr := r.findOne(ctx, bson.M{"_id": id})
	if findErr != nil {
		if errors.Is(findErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(findErr, "failed to re-read listing %s", id.Hex())
	}
	return nil, errors.Wrapf(ErrStatusChanged, "listing %s is now %s, expected %s", id.Hex(), current.Status, *expectStatus)
}

func (r *listingRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "failed to delete listing %s", id.Hex())
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *listingRepository) AppendImage(ctx context.Context, id primitive.ObjectID, image string, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.A{bson.M{"$set": bson.M{
			"images": bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{image, bson.M{"$ifNull": bson.A{"$images", bson.A{}}}}},
				"$images",
				bson.M{"$concatArrays": bson.A{bson.M{"$ifNull": bson.A{"$images", bson.A{}}}, bson.A{image}}},
			}},
			"updated_at": at,
		}}})
	if err != nil {
		return errors.Wrapf(err, "failed to append image to listing %s", id.Hex())
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *listingRepository) AdjustFavorites(ctx context.Context, id primitive.ObjectID, delta int64) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["favorites"] = bson.M{"$gte": -delta}
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"favorites": delta}})
	if err != nil {
		return false, errors.Wrapf(err, "failed to adjust favorites of listing %s", id.Hex())
	}
	return res.MatchedCount > 0, nil
}
