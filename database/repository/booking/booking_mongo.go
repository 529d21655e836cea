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

// MongoBookingRepo implements BookingRepository using MongoDB.
type MongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo creates a BookingRepository backed by the "bookings" collection.
func NewMongoBookingRepo(db *mongo.Database) BookingRepository {
	repo := &MongoBookingRepo{coll: db.Collection("bookings")}

	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create booking indexes: %v\n", err)
	}
	return repo
}

// newContext bounds a single database round trip.
func newContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}

// Create inserts a new booking document.
func (r *MongoBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *MongoBookingRepo) findOne(ctx context.Context, filter bson.M) (*models.Booking, error) {
	ctx, cancel := newContext(ctx, 5*time.Second)
	defer cancel()

	var booking models.Booking
	if err := r.coll.FindOne(ctx, filter).Decode(&booking); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// GetByID retrieves a booking by its ID.
func (r *MongoBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b, err := r.findOne(ctx, bson.M{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking %s: %w", id, err)
	}
	return b, nil
}

// GetByPaymentID retrieves a booking by its gateway payment reference.
func (r *MongoBookingRepo) GetByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error) {
	b, err := r.findOne(ctx, bson.M{"paymentId": paymentID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch booking for payment %s: %w", paymentID, err)
	}
	return b, nil
}

func (r *MongoBookingRepo) find(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	ctx, cancel := newContext(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "bookingDate", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListByStudent returns every booking a student has made.
func (r *MongoBookingRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Booking, error) {
	bookings, err := r.find(ctx, bson.M{"student": studentID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for student %s: %w", studentID, err)
	}
	return bookings, nil
}

// ListByCourses returns every booking across the given courses.
func (r *MongoBookingRepo) ListByCourses(ctx context.Context, courseIDs []string) ([]models.Booking, error) {
	if len(courseIDs) == 0 {
		return []models.Booking{}, nil
	}
	bookings, err := r.find(ctx, bson.M{"course": bson.M{"$in": courseIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings for courses: %w", err)
	}
	return bookings, nil
}

// ListStaleRefundClaims returns bookings whose refund was claimed before the cutoff
// but never committed.
func (r *MongoBookingRepo) ListStaleRefundClaims(ctx context.Context, before time.Time) ([]models.Booking, error) {
	bookings, err := r.find(ctx, bson.M{
		"refundRequestedAt": bson.M{"$lte": before},
		"paymentStatus":     models.PaymentCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stale refund claims: %w", err)
	}
	return bookings, nil
}
