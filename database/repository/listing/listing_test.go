package listingRepo

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/zap"
)

func TestOwnerOf(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("owner found", func(mt *mtest.T) {
		dir := NewMongoListingDirectory(mt.DB, nil, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.listings", mtest.FirstBatch,
			bson.D{{Key: "id", Value: "l1"}, {Key: "ownerId", Value: "renter-1"}}))

		owner, err := dir.OwnerOf(ctx, "l1")
		if err != nil {
			t.Fatalf("OwnerOf: %v", err)
		}
		if owner != "renter-1" {
			t.Errorf("owner = %q, want renter-1", owner)
		}
	})

	mt.Run("listing missing", func(mt *mtest.T) {
		dir := NewMongoListingDirectory(mt.DB, nil, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.listings", mtest.FirstBatch))

		if _, err := dir.OwnerOf(ctx, "l2"); !errors.Is(err, ErrListingNotFound) {
			t.Fatalf("expected ErrListingNotFound, got %v", err)
		}
	})

	mt.Run("listing without owner", func(mt *mtest.T) {
		dir := NewMongoListingDirectory(mt.DB, nil, zap.NewNop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.listings", mtest.FirstBatch,
			bson.D{{Key: "id", Value: "l3"}}))

		if _, err := dir.OwnerOf(ctx, "l3"); !errors.Is(err, ErrListingNotFound) {
			t.Fatalf("expected ErrListingNotFound, got %v", err)
		}
	})

	mt.Run("empty id", func(mt *mtest.T) {
		dir := NewMongoListingDirectory(mt.DB, nil, zap.NewNop())
		if _, err := dir.OwnerOf(ctx, ""); !errors.Is(err, ErrListingNotFound) {
			t.Fatalf("expected ErrListingNotFound, got %v", err)
		}
	})
}
