package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ensureIndexes creates indexes for fields frequently used in queries.
func (r *MongoBookingRepo) ensureIndexes() error {
	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		// paymentId is only present on online bookings.
		{
			Keys: bson.D{{Key: "paymentId", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(
				bson.M{"paymentId": bson.M{"$exists": true}},
			),
		},
		{Keys: bson.D{{Key: "student", Value: 1}, {Key: "bookingDate", Value: -1}}},
		{Keys: bson.D{{Key: "course", Value: 1}, {Key: "bookingDate", Value: -1}}},
		{
			Keys:    bson.D{{Key: "refundRequestedAt", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
