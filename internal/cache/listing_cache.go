package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"

	"estatehub/api/internal/models"
)

const listingKeyPrefix = "listing:"

// IListingCache is a read-through cache for single listing reads. Failures
// are logged and treated as misses; the store stays authoritative.
type IListingCache interface {
	// Get looks a listing up by id hex or slug.
	Get(ctx context.Context, ref string) (*models.Listing, bool)
	// Set stores the listing under both its id and its slug.
	Set(ctx context.Context, listing *models.Listing)
	// Invalidate drops every key the listing is stored under.
	Invalidate(ctx context.Context, listing *models.Listing)
}

type listingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewListingCache returns a Redis-backed listing cache. A non-positive ttl
// disables caching.
func NewListingCache(rdb *redis.Client, ttl time.Duration) IListingCache {
	return &listingCache{rdb: rdb, ttl: ttl}
}

// ListingKeys returns the cache keys a listing is stored under.
func ListingKeys(listing *models.Listing) []string {
	keys := []string{listingKeyPrefix + listing.ID.Hex()}
	if listing.Slug != "" {
		keys = append(keys, listingKeyPrefix+listing.Slug)
	}
	return keys
}

func (c *listingCache) Get(ctx context.Context, ref string) (*models.Listing, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, listingKeyPrefix+ref).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("WARN: listing cache read for %q failed: %v", ref, err)
		}
		return nil, false
	}
	var listing models.Listing
	if err := bson.Unmarshal(data, &listing); err != nil {
		log.Printf("WARN: listing cache entry for %q is corrupt: %v", ref, err)
		return nil, false
	}
	return &listing, true
}

func (c *listingCache) Set(ctx context.Context, listing *models.Listing) {
	if c.ttl <= 0 {
		return
	}
	data, err := bson.Marshal(listing)
	if err != nil {
		log.Printf("WARN: failed to encode listing %s for cache: %v", listing.ID.Hex(), err)
		return
	}
	pipe := c.rdb.TxPipeline()
	for _, key := range ListingKeys(listing) {
		pipe.Set(ctx, key, data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("WARN: failed to cache listing %s: %v", listing.ID.Hex(), err)
	}
}

func (c *listingCache) Invalidate(ctx context.Context, listing *models.Listing) {
	if c.ttl <= 0 {
		return
	}
	if err := c.rdb.Del(ctx, ListingKeys(listing)...).Err(); err != nil {
		log.Printf("WARN: failed to invalidate cached listing %s: %v", listing.ID.Hex(), err)
	}
}
