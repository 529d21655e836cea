package booking

import (
	"context"
	"errors"

	"coursebook/database/repository"
	"coursebook/models"

	"go.uber.org/zap"
)

// HandlePaymentWebhook verifies and applies a gateway callback. Delivery is at
// least once, so every branch is safe to run again with the same event.
func (s *DefaultBookingService) HandlePaymentWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.gateway.ParseWebhook(payload, signatureHeader)
	if err != nil {
		s.logger.Warn("Rejected webhook", zap.Error(err))
		return invalid("Webhook signature verification failed", err)
	}

	if s.alreadyProcessed(ctx, event.EventID) {
		s.logger.Debug("Duplicate webhook event skipped", zap.String("eventId", event.EventID))
		return nil
	}

	switch event.Type {
	case models.PaymentEventSucceeded:
		err = s.applyPaymentSucceeded(ctx, event)
	case models.PaymentEventFailed:
		err = s.applyPaymentFailed(ctx, event)
	default:
		s.logger.Debug("Ignoring webhook event", zap.String("type", event.Type), zap.String("eventId", event.EventID))
	}
	if err != nil {
		return err
	}

	s.rememberEvent(ctx, event.EventID)
	return nil
}

func (s *DefaultBookingService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.deduper == nil || eventID == "" {
		return false
	}
	seen, err := s.deduper.Seen(ctx, eventID)
	if err != nil {
		s.logger.Warn("Webhook dedupe lookup failed", zap.String("eventId", eventID), zap.Error(err))
		return false
	}
	return seen
}

func (s *DefaultBookingService) rememberEvent(ctx context.Context, eventID string) {
	if s.deduper == nil || eventID == "" {
		return
	}
	if err := s.deduper.Remember(ctx, eventID); err != nil {
		s.logger.Warn("Failed to remember webhook event", zap.String("eventId", eventID), zap.Error(err))
	}
}

// bookingForPayment returns nil, nil when no booking carries paymentID.
func (s *DefaultBookingService) bookingForPayment(ctx context.Context, paymentID string) (*models.Booking, error) {
	if paymentID == "" {
		return nil, nil
	}
	b, err := s.bookings.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, internalError("failed to look up booking for payment", err)
	}
	return b, nil
}

func (s *DefaultBookingService) applyPaymentSucceeded(ctx context.Context, event *models.PaymentEvent) error {
	b, err := s.bookingForPayment(ctx, event.PaymentID)
	if err != nil {
		return err
	}
	if b == nil {
		s.logger.Info("No booking for succeeded payment", zap.String("paymentId", event.PaymentID))
		return nil
	}

	if b.Status == models.BookingCancelled {
		return s.refundLatePayment(ctx, b)
	}

	transitioned := false
	// A failed intent can still be paid by a later attempt on the same intent.
	if b.PaymentStatus == models.PaymentPending || b.PaymentStatus == models.PaymentFailed {
		updated, err := s.bookings.TransitionPayment(ctx, b.ID, b.PaymentStatus, models.PaymentCompleted)
		switch {
		case err == nil:
			b = updated
			transitioned = true
		case errors.Is(err, repository.ErrConditionFailed):
			// A concurrent delivery or a cancellation got there first.
			if b, err = s.reload(ctx, b.ID); err != nil {
				return err
			}
		default:
			return internalError("failed to complete booking payment", err)
		}
	}

	if b.Status == models.BookingCancelled {
		return s.refundLatePayment(ctx, b)
	}
	if b.PaymentStatus != models.PaymentCompleted {
		s.logger.Warn("Succeeded payment for booking in unexpected state",
			zap.String("bookingId", b.ID),
			zap.String("paymentStatus", string(b.PaymentStatus)))
		return nil
	}

	course, err := s.courses.GetByID(ctx, b.CourseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Paid booking references a missing course", zap.String("bookingId", b.ID), zap.String("courseId", b.CourseID))
			return nil
		}
		return internalError("failed to load course for paid booking", err)
	}

	// Runs on every delivery so a crash between the two writes heals on retry.
	err = s.courses.AddStudent(ctx, b.CourseID, b.StudentID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrConditionFailed):
		fresh, getErr := s.courses.GetByID(ctx, b.CourseID)
		if getErr != nil {
			return internalError("failed to reload course", getErr)
		}
		if !fresh.HasStudent(b.StudentID) {
			s.logger.Error("Paid booking could not take a seat; refund or extra seat required",
				zap.String("bookingId", b.ID),
				zap.String("courseId", b.CourseID),
				zap.String("studentId", b.StudentID),
				zap.Int("capacity", fresh.Capacity))
			if transitioned {
				s.dispatch(ctx, overbookedEffects(fresh, b))
			}
			return nil
		}
	default:
		return internalError("failed to update course roster", err)
	}

	// A cancellation that committed after our read has already released the
	// seat, so an append that landed after it must be undone.
	if err == nil {
		current, getErr := s.reload(ctx, b.ID)
		if getErr != nil {
			return getErr
		}
		if current.Status == models.BookingCancelled {
			s.releaseSeat(ctx, current)
			s.logger.Warn("Booking cancelled during payment confirmation, seat released",
				zap.String("bookingId", b.ID),
				zap.String("courseId", b.CourseID))
			return nil
		}
	}

	if transitioned {
		s.logger.Info("Payment completed",
			zap.String("bookingId", b.ID),
			zap.String("paymentId", b.PaymentID))
		s.dispatch(ctx, paymentCompletedEffects(course, b))
	}
	return nil
}

// refundLatePayment returns money captured for a booking cancelled before its
// payment settled. The refund key matches the cancel flow so a retry cannot
// refund twice.
func (s *DefaultBookingService) refundLatePayment(ctx context.Context, b *models.Booking) error {
	if b.PaymentStatus != models.PaymentPending && b.PaymentStatus != models.PaymentFailed {
		return nil
	}
	s.logger.Warn("Payment succeeded on cancelled booking, refunding",
		zap.String("bookingId", b.ID),
		zap.String("paymentId", b.PaymentID))

	refund, err := s.gateway.Refund(ctx, b.PaymentID, refundKey(b.ID))
	if err != nil {
		return external("Refund of late payment failed", err)
	}
	refunded := models.PaymentRefunded
	if _, err := s.bookings.OverwriteStatus(ctx, b.ID, nil, &refunded); err != nil {
		return internalError("failed to record late refund", err)
	}
	s.logger.Info("Late payment refunded", zap.String("bookingId", b.ID), zap.String("refundId", refund.RefundID))
	return nil
}

func (s *DefaultBookingService) applyPaymentFailed(ctx context.Context, event *models.PaymentEvent) error {
	b, err := s.bookingForPayment(ctx, event.PaymentID)
	if err != nil || b == nil {
		return err
	}
	if b.PaymentStatus != models.PaymentPending || b.Status != models.BookingConfirmed {
		return nil
	}

	updated, err := s.bookings.TransitionPayment(ctx, b.ID, models.PaymentPending, models.PaymentFailed)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil
		}
		return internalError("failed to record payment failure", err)
	}

	s.logger.Info("Payment failed",
		zap.String("bookingId", updated.ID),
		zap.String("reason", event.Failure))
	s.dispatch(ctx, paymentFailedEffects(updated, event.Failure))
	return nil
}

func (s *DefaultBookingService) reload(ctx context.Context, bookingID string) (*models.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Booking not found")
		}
		return nil, internalError("failed to reload booking", err)
	}
	return b, nil
}
