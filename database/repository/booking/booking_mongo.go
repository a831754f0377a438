package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomrental/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "bookings"

// MongoBookingRepo implements BookingRepository using MongoDB.
type MongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo creates a BookingRepository backed by the bookings collection.
func NewMongoBookingRepo(db *mongo.Database) *MongoBookingRepo {
	return newMongoBookingRepo(db.Collection(collectionName))
}

func newMongoBookingRepo(coll *mongo.Collection) *MongoBookingRepo {
	return &MongoBookingRepo{coll: coll}
}

// newContext derives a bounded context for a single store operation.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}

// Create inserts a new booking document.
func (r *MongoBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, booking); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("booking %s: %w", booking.ID, ErrConflict)
		}
		return fmt.Errorf("error creating booking: %w", err)
	}
	return nil
}

// Get retrieves a booking document by id.
func (r *MongoBookingRepo) Get(ctx context.Context, id string) (*models.Booking, error) {
	return r.findOne(ctx, bson.M{"id": id})
}

// FindByPaymentReference retrieves the booking that owns an authorization.
func (r *MongoBookingRepo) FindByPaymentReference(ctx context.Context, paymentReference string) (*models.Booking, error) {
	if paymentReference == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"paymentReference": paymentReference})
}

func (r *MongoBookingRepo) findOne(ctx context.Context, filter bson.M) (*models.Booking, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	if err := r.coll.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching booking: %w", err)
	}
	return &booking, nil
}

// Transition is a compare-and-swap on status: the update only matches a
// document whose status is still expected. A payment reference is only ever
// written onto a document that has none.
func (r *MongoBookingRepo) Transition(
	ctx context.Context,
	id string,
	expected, next models.BookingStatus,
	patch TransitionPatch,
) (*models.Booking, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": id, "status": expected}
	set := bson.M{
		"status":    next,
		"updatedAt": time.Now().UTC(),
	}
	if patch.PaymentReference != nil {
		filter["paymentReference"] = bson.M{"$exists": false}
		set["paymentReference"] = *patch.PaymentReference
	}
	if patch.FailureReason != nil {
		set["failureReason"] = *patch.FailureReason
	}
	if patch.CaptureRetryable != nil {
		set["captureRetryable"] = *patch.CaptureRetryable
	}
	if patch.ActorID != "" {
		set["updatedBy"] = patch.ActorID
	}

	update := bson.M{"$set": set}
	if patch.CaptureAttempts != 0 {
		update["$inc"] = bson.M{"captureAttempts": patch.CaptureAttempts}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Booking
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("payment reference already bound to another booking: %w", ErrConflict)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error transitioning booking %s: %w", id, err)
	}

	// Nothing matched: tell a missing booking apart from a lost race.
	current, getErr := r.findOne(ctx, bson.M{"id": id})
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("booking %s is %s, expected %s: %w", id, current.Status, expected, ErrConflict)
}

// ListByListing returns all bookings referencing a listing.
func (r *MongoBookingRepo) ListByListing(ctx context.Context, listingID string) ([]models.Booking, error) {
	return r.find(ctx, bson.M{"listingId": listingID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListByParticipant returns bookings where the user is either party.
func (r *MongoBookingRepo) ListByParticipant(ctx context.Context, userID string) ([]models.Booking, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"renterId": userID},
		bson.M{"customerId": userID},
	}}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// List returns bookings for the admin dashboard.
func (r *MongoBookingRepo) List(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.ListingID != "" {
		filter["listingId"] = f.ListingID
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		opts.SetSkip(f.Offset)
	}
	return r.find(ctx, filter, opts)
}

// ListExpiredHolds returns bookings still holding funds after their hold window.
func (r *MongoBookingRepo) ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int64) ([]models.Booking, error) {
	filter := bson.M{
		"holdExpiresAt": bson.M{"$lte": cutoff},
		"$or": bson.A{
			bson.M{"status": bson.M{"$in": bson.A{models.StatusPendingAuthorization, models.StatusAuthorized}}},
			bson.M{"status": models.StatusFailed, "captureRetryable": true},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "holdExpiresAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.find(ctx, filter, opts)
}

func (r *MongoBookingRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Booking, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	for cursor.Next(ctx) {
		var b models.Booking
		if err := cursor.Decode(&b); err != nil {
			return nil, fmt.Errorf("error decoding booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return bookings, nil
}
