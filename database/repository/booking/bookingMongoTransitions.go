package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursebook/database/repository"
	"coursebook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// updateWhere applies update to the booking matching filter and returns the
// post-image. A miss is reported as ErrConditionFailed.
func (r *MongoBookingRepo) updateWhere(ctx context.Context, filter, update bson.M) (*models.Booking, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Booking
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrConditionFailed
		}
		return nil, err
	}
	return &updated, nil
}

func stamp(set bson.M) bson.M {
	set["updatedAt"] = time.Now().UTC()
	return set
}

// AttachPayment stores the gateway reference on an online booking that has none yet.
func (r *MongoBookingRepo) AttachPayment(ctx context.Context, id, paymentID string) error {
	filter := bson.M{
		"id":            id,
		"paymentMethod": models.PaymentOnline,
		"paymentId":     bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": stamp(bson.M{"paymentId": paymentID}),
		"$inc": bson.M{"version": 1},
	}
	if _, err := r.updateWhere(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to attach payment to booking %s: %w", id, err)
	}
	return nil
}

// TransitionPayment moves paymentStatus from one value to another.
func (r *MongoBookingRepo) TransitionPayment(ctx context.Context, id string, from, to models.PaymentStatus) (*models.Booking, error) {
	filter := bson.M{
		"id":            id,
		"status":        models.BookingConfirmed,
		"paymentStatus": from,
	}
	update := bson.M{
		"$set": stamp(bson.M{"paymentStatus": to}),
		"$inc": bson.M{"version": 1},
	}
	b, err := r.updateWhere(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to move booking %s payment %s -> %s: %w", id, from, to, err)
	}
	return b, nil
}

// Cancel marks an active booking cancelled without touching paymentStatus.
func (r *MongoBookingRepo) Cancel(ctx context.Context, id string, expected models.PaymentStatus) (*models.Booking, error) {
	filter := bson.M{
		"id":                id,
		"status":            bson.M{"$in": bson.A{models.BookingConfirmed, models.BookingAttended}},
		"paymentStatus":     expected,
		"refundRequestedAt": bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": stamp(bson.M{"status": models.BookingCancelled}),
		"$inc": bson.M{"version": 1},
	}
	b, err := r.updateWhere(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking %s: %w", id, err)
	}
	return b, nil
}

// ClaimRefund is the write-ahead record taken before the gateway refund call.
// Only one caller can hold the claim, so a booking is refunded at most once.
func (r *MongoBookingRepo) ClaimRefund(ctx context.Context, id string, at time.Time) (*models.Booking, error) {
	filter := bson.M{
		"id":                id,
		"status":            bson.M{"$in": bson.A{models.BookingConfirmed, models.BookingAttended}},
		"paymentMethod":     models.PaymentOnline,
		"paymentStatus":     models.PaymentCompleted,
		"refundRequestedAt": bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": stamp(bson.M{"refundRequestedAt": at.UTC()}),
		"$inc": bson.M{"version": 1},
	}
	b, err := r.updateWhere(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to claim refund for booking %s: %w", id, err)
	}
	return b, nil
}

// ReleaseRefundClaim removes a claim whose refund the gateway rejected.
func (r *MongoBookingRepo) ReleaseRefundClaim(ctx context.Context, id string) error {
	filter := bson.M{
		"id":                id,
		"paymentStatus":     models.PaymentCompleted,
		"refundRequestedAt": bson.M{"$exists": true},
	}
	update := bson.M{
		"$unset": bson.M{"refundRequestedAt": ""},
		"$set":   stamp(bson.M{}),
		"$inc":   bson.M{"version": 1},
	}
	if _, err := r.updateWhere(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release refund claim on booking %s: %w", id, err)
	}
	return nil
}

// CommitRefund records a confirmed refund and cancels the booking in one write.
func (r *MongoBookingRepo) CommitRefund(ctx context.Context, id, refundID string) (*models.Booking, error) {
	filter := bson.M{
		"id":                id,
		"paymentStatus":     models.PaymentCompleted,
		"refundRequestedAt": bson.M{"$exists": true},
	}
	update := bson.M{
		"$set": stamp(bson.M{
			"status":        models.BookingCancelled,
			"paymentStatus": models.PaymentRefunded,
			"refundId":      refundID,
		}),
		"$unset": bson.M{"refundRequestedAt": ""},
		"$inc":   bson.M{"version": 1},
	}
	b, err := r.updateWhere(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to commit refund on booking %s: %w", id, err)
	}
	return b, nil
}

// OverwriteStatus sets whichever fields are given, with no transition checks.
func (r *MongoBookingRepo) OverwriteStatus(ctx context.Context, id string, status *models.BookingStatus, paymentStatus *models.PaymentStatus) (*models.Booking, error) {
	set := bson.M{}
	if status != nil {
		set["status"] = *status
	}
	if paymentStatus != nil {
		set["paymentStatus"] = *paymentStatus
	}
	update := bson.M{
		"$set": stamp(set),
		"$inc": bson.M{"version": 1},
	}
	b, err := r.updateWhere(ctx, bson.M{"id": id}, update)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			err = repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to overwrite status of booking %s: %w", id, err)
	}
	return b, nil
}
