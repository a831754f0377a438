// Package listingRepo reads listing ownership from the catalog collection
// maintained by the listings service. This service never writes listings.
package listingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	ownerCachePrefix = "listing:owner:"
	ownerCacheTTL    = 10 * time.Minute
)

// ErrListingNotFound is returned when the listing does not exist.
var ErrListingNotFound = errors.New("listing not found")

// ListingDirectory resolves the renter who owns a listing.
type ListingDirectory interface {
	OwnerOf(ctx context.Context, listingID string) (string, error)
}

// listingOwner is the projection of a catalog listing this service needs.
type listingOwner struct {
	ID      string `bson:"id"`
	OwnerID string `bson:"ownerId"`
}

// MongoListingDirectory implements ListingDirectory with a read-through Redis cache.
type MongoListingDirectory struct {
	coll   *mongo.Collection
	cache  *redis.Client
	logger *zap.Logger
}

// NewMongoListingDirectory reads from the listings collection. cache may be nil.
func NewMongoListingDirectory(db *mongo.Database, cache *redis.Client, logger *zap.Logger) *MongoListingDirectory {
	return &MongoListingDirectory{
		coll:   db.Collection("listings"),
		cache:  cache,
		logger: logger,
	}
}

// OwnerOf returns the owner id of a listing.
func (d *MongoListingDirectory) OwnerOf(ctx context.Context, listingID string) (string, error) {
	if listingID == "" {
		return "", ErrListingNotFound
	}

	cacheKey := ownerCachePrefix + listingID
	if d.cache != nil {
		owner, err := d.cache.Get(ctx, cacheKey).Result()
		if err == nil && owner != "" {
			return owner, nil
		}
		if err != nil && err != redis.Nil {
			d.logger.Warn("listing owner cache read failed", zap.String("listingID", listingID), zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var l listingOwner
	opts := options.FindOne().SetProjection(bson.M{"id": 1, "ownerId": 1})
	if err := d.coll.FindOne(ctx, bson.M{"id": listingID}, opts).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrListingNotFound
		}
		return "", fmt.Errorf("failed to fetch listing %s: %w", listingID, err)
	}
	if l.OwnerID == "" {
		return "", fmt.Errorf("listing %s has no owner: %w", listingID, ErrListingNotFound)
	}

	if d.cache != nil {
		if err := d.cache.Set(ctx, cacheKey, l.OwnerID, ownerCacheTTL).Err(); err != nil {
			d.logger.Warn("listing owner cache write failed", zap.String("listingID", listingID), zap.Error(err))
		}
	}
	return l.OwnerID, nil
}
