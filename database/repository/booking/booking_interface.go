package bookingRepo

import (
	"context"
	"time"

	"coursebook/models"
)

// BookingRepository is the booking ledger. Every state-changing method is a
// single conditional write and returns repository.ErrConditionFailed when the
// stored booking is not in the expected state.
type BookingRepository interface {
	// Create inserts a new booking.
	Create(ctx context.Context, booking *models.Booking) error
	// GetByID retrieves a booking by its ID.
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// GetByPaymentID retrieves the booking linked to a gateway payment.
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error)
	// ListByStudent returns a student's bookings, newest first.
	ListByStudent(ctx context.Context, studentID string) ([]models.Booking, error)
	// ListByCourses returns bookings across the given courses, newest first.
	ListByCourses(ctx context.Context, courseIDs []string) ([]models.Booking, error)

	// AttachPayment sets paymentId once; it is never reassigned.
	AttachPayment(ctx context.Context, id, paymentID string) error
	// TransitionPayment moves paymentStatus from -> to on a confirmed booking.
	TransitionPayment(ctx context.Context, id string, from, to models.PaymentStatus) (*models.Booking, error)
	// Cancel sets status=cancelled provided the booking is active, has no
	// refund in flight and its payment status still equals expected.
	Cancel(ctx context.Context, id string, expected models.PaymentStatus) (*models.Booking, error)
	// ClaimRefund records the intent to refund before the gateway is called.
	ClaimRefund(ctx context.Context, id string, at time.Time) (*models.Booking, error)
	// ReleaseRefundClaim drops a claim after the gateway refused the refund.
	ReleaseRefundClaim(ctx context.Context, id string) error
	// CommitRefund finishes a claimed refund: cancelled + refunded.
	CommitRefund(ctx context.Context, id, refundID string) (*models.Booking, error)
	// ListStaleRefundClaims returns claims older than before.
	ListStaleRefundClaims(ctx context.Context, before time.Time) ([]models.Booking, error)
	// OverwriteStatus is the administrative override; nil leaves a field alone.
	OverwriteStatus(ctx context.Context, id string, status *models.BookingStatus, paymentStatus *models.PaymentStatus) (*models.Booking, error)
}
