package booking

import (
	"context"
	"errors"
	"fmt"

	"coursebook/database/repository"
	"coursebook/models"

	"go.uber.org/zap"
)

func refundKey(bookingID string) string {
	return "refund-" + bookingID
}

// holdsSeat reports whether the booking put its student on the roster.
// Online bookings only do so once paid.
func holdsSeat(b *models.Booking) bool {
	return b.PaymentMethod == models.PaymentCash || b.PaymentStatus == models.PaymentCompleted
}

// CancelBooking cancels a booking on behalf of its student or an admin. Paid
// online bookings are refunded first; a failed refund leaves everything as it was.
func (s *DefaultBookingService) CancelBooking(ctx context.Context, bookingID string, requester models.Requester) (*models.Booking, error) {
	b, err := s.reload(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.StudentID != requester.ID && !requester.IsAdmin() {
		return nil, forbidden("You are not allowed to cancel this booking")
	}
	if b.Status == models.BookingCancelled {
		return nil, conflict("Booking is already cancelled")
	}
	if b.RefundRequestedAt != nil {
		return nil, conflict("A refund for this booking is already in progress")
	}

	rostered := holdsSeat(b)

	var cancelled *models.Booking
	if b.NeedsRefund() {
		cancelled, err = s.cancelWithRefund(ctx, b)
	} else {
		cancelled, err = s.cancelWithoutRefund(ctx, b)
	}
	if err != nil {
		return nil, err
	}

	if rostered {
		s.releaseSeat(ctx, cancelled)
	}

	s.logger.Info("Booking cancelled",
		zap.String("bookingId", cancelled.ID),
		zap.String("requester", requester.ID),
		zap.String("paymentStatus", string(cancelled.PaymentStatus)))

	s.notifyCancelled(ctx, cancelled)
	return cancelled, nil
}

func (s *DefaultBookingService) cancelWithoutRefund(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	cancelled, err := s.bookings.Cancel(ctx, b.ID, b.PaymentStatus)
	if err == nil {
		return cancelled, nil
	}
	if errors.Is(err, repository.ErrConditionFailed) {
		return nil, conflict("Booking changed while it was being cancelled, please try again")
	}
	return nil, internalError("failed to cancel booking", err)
}

// cancelWithRefund claims the refund, calls the gateway, then commits. The
// claim is what keeps two concurrent cancellations from refunding twice.
func (s *DefaultBookingService) cancelWithRefund(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	if _, err := s.bookings.ClaimRefund(ctx, b.ID, s.now()); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, conflict("A refund for this booking is already in progress")
		}
		return nil, internalError("failed to start refund", err)
	}

	refund, err := s.gateway.Refund(ctx, b.PaymentID, refundKey(b.ID))
	if err != nil {
		if relErr := s.bookings.ReleaseRefundClaim(context.WithoutCancel(ctx), b.ID); relErr != nil {
			// The sweep finds no refund at the gateway and releases it later.
			s.logger.Error("Failed to release refund claim",
				zap.String("bookingId", b.ID),
				zap.Error(relErr))
		}
		s.logger.Warn("Refund failed, cancellation aborted",
			zap.String("bookingId", b.ID),
			zap.String("paymentId", b.PaymentID),
			zap.Error(err))
		return nil, external(fmt.Sprintf("Refund failed: %v", err), err)
	}

	cancelled, err := s.bookings.CommitRefund(context.WithoutCancel(ctx), b.ID, refund.RefundID)
	if err != nil {
		s.logger.Error("Refund issued but booking not updated; reconciliation will finish it",
			zap.String("bookingId", b.ID),
			zap.String("refundId", refund.RefundID),
			zap.Error(err))
		return nil, internalError("refund issued but the booking could not be updated", err)
	}
	return cancelled, nil
}

// releaseSeat removes the student from the roster. The booking is already
// cancelled at this point so failures are logged, not returned.
func (s *DefaultBookingService) releaseSeat(ctx context.Context, b *models.Booking) {
	if err := s.courses.RemoveStudent(context.WithoutCancel(ctx), b.CourseID, b.StudentID); err != nil {
		s.logger.Error("Failed to remove student from roster",
			zap.String("bookingId", b.ID),
			zap.String("courseId", b.CourseID),
			zap.String("studentId", b.StudentID),
			zap.Error(err))
	}
}

func (s *DefaultBookingService) notifyCancelled(ctx context.Context, b *models.Booking) {
	course, err := s.courses.GetByID(ctx, b.CourseID)
	if err != nil {
		s.logger.Warn("Skipping cancellation notice, course unavailable",
			zap.String("courseId", b.CourseID),
			zap.Error(err))
		return
	}
	s.dispatch(ctx, cancelledEffects(course, b))
}
