package db

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexDefinition is an index on one collection.
type IndexDefinition struct {
	Collection string
	Model      mongo.IndexModel
}

// Indexes lists the indexes the listing store relies on. The unique slug
// index drives slug retries on insert; listing_id indexes keep cascade
// deletes from scanning.
func Indexes() []IndexDefinition {
	return []IndexDefinition{
		{ListingsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("slug_unique").SetUnique(true),
		}},
		{ListingsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("status_created_at"),
		}},
		{ListingsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetName("owner_id"),
		}},
		{UsersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		}},
		{UsersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "favorites", Value: 1}},
			Options: options.Index().SetName("favorites"),
		}},
		{BookingsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "listing_id", Value: 1}},
			Options: options.Index().SetName("listing_id"),
		}},
		{MessagesCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "listing_id", Value: 1}},
			Options: options.Index().SetName("listing_id"),
		}},
		{NotificationsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "listing_id", Value: 1}},
			Options: options.Index().SetName("listing_id"),
		}},
	}
}

// EnsureIndexes creates every index, carrying on past failures. The
// returned error counts the failures.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	failed := 0
	for _, def := range Indexes() {
		name, err := database.Collection(def.Collection).Indexes().CreateOne(ctx, def.Model)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				log.Printf("WARN: cannot create unique index on %s due to duplicate data", def.Collection)
			} else {
				log.Printf("ERROR: failed to create index on %s: %v", def.Collection, err)
			}
			failed++
			continue
		}
		log.Printf("Index %s on %s ready", name, def.Collection)
	}
	if failed > 0 {
		return fmt.Errorf("%d indexes failed to create", failed)
	}
	return nil
}
