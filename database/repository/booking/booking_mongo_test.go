package bookingRepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"roomrental/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func bookingDoc(id string, status models.BookingStatus, ref string) bson.D {
	doc := bson.D{
		{Key: "id", Value: id},
		{Key: "listingId", Value: "listing-1"},
		{Key: "renterId", Value: "renter-1"},
		{Key: "customerId", Value: "customer-1"},
		{Key: "amount", Value: int64(5000)},
		{Key: "currency", Value: "usd"},
		{Key: "status", Value: string(status)},
		{Key: "createdAt", Value: time.Now().UTC()},
	}
	if ref != "" {
		doc = append(doc, bson.E{Key: "paymentReference", Value: ref})
	}
	return doc
}

func TestMongoBookingRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("get decodes booking", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.bookings", mtest.FirstBatch,
			bookingDoc("b1", models.StatusAuthorized, "pi_1")))

		b, err := repo.Get(ctx, "b1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if b.ID != "b1" || b.Status != models.StatusAuthorized || b.PaymentReference != "pi_1" {
			t.Errorf("unexpected booking: %+v", b)
		}
	})

	mt.Run("get missing booking", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.bookings", mtest.FirstBatch))

		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("find by empty payment reference", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		if _, err := repo.FindByPaymentReference(ctx, ""); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("create duplicate id", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := repo.Create(ctx, &models.Booking{ID: "b1", Status: models.StatusPendingAuthorization})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	mt.Run("transition applies", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bookingDoc("b1", models.StatusAuthorized, "pi_1")},
		})

		ref := "pi_1"
		b, err := repo.Transition(ctx, "b1", models.StatusPendingAuthorization, models.StatusAuthorized,
			TransitionPatch{PaymentReference: &ref})
		if err != nil {
			t.Fatalf("Transition: %v", err)
		}
		if b.Status != models.StatusAuthorized || b.PaymentReference != "pi_1" {
			t.Errorf("unexpected booking: %+v", b)
		}
	})

	mt.Run("transition lost race", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "db.bookings", mtest.FirstBatch,
				bookingDoc("b1", models.StatusConfirmed, "pi_1")),
		)

		_, err := repo.Transition(ctx, "b1", models.StatusAuthorized, models.StatusFailed, TransitionPatch{})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	mt.Run("transition unknown booking", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "db.bookings", mtest.FirstBatch),
		)

		_, err := repo.Transition(ctx, "ghost", models.StatusAuthorized, models.StatusConfirmed, TransitionPatch{})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	mt.Run("list by participant", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.bookings", mtest.FirstBatch,
			bookingDoc("b1", models.StatusConfirmed, "pi_1"),
			bookingDoc("b2", models.StatusPendingAuthorization, ""),
		))

		got, err := repo.ListByParticipant(ctx, "customer-1")
		if err != nil {
			t.Fatalf("ListByParticipant: %v", err)
		}
		if len(got) != 2 || got[0].ID != "b1" || got[1].ID != "b2" {
			t.Errorf("unexpected bookings: %+v", got)
		}
	})

	mt.Run("empty list is not nil", func(mt *mtest.T) {
		repo := newMongoBookingRepo(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.bookings", mtest.FirstBatch))

		got, err := repo.List(ctx, models.BookingFilter{Status: models.StatusFailed, Limit: 10})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty slice, got %#v", got)
		}
	})
}
