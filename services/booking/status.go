package booking

import (
	"context"
	"errors"

	"coursebook/database/repository"
	"coursebook/models"

	"go.uber.org/zap"
)

// UpdateBookingStatus is the instructor/admin override. Values are validated
// but transitions are not.
func (s *DefaultBookingService) UpdateBookingStatus(ctx context.Context, bookingID string, req models.UpdateBookingStatusRequest, requester models.Requester) (*models.Booking, error) {
	if req.Status == nil && req.PaymentStatus == nil {
		return nil, invalid("status or paymentStatus is required", nil)
	}

	var status *models.BookingStatus
	if req.Status != nil {
		st, err := models.ParseBookingStatus(*req.Status)
		if err != nil {
			return nil, invalid("Invalid booking status", err)
		}
		status = &st
	}
	var paymentStatus *models.PaymentStatus
	if req.PaymentStatus != nil {
		ps, err := models.ParsePaymentStatus(*req.PaymentStatus)
		if err != nil {
			return nil, invalid("Invalid payment status", err)
		}
		paymentStatus = &ps
	}

	b, err := s.reload(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeInstructor(ctx, b, requester, "You are not allowed to update this booking"); err != nil {
		return nil, err
	}

	updated, err := s.bookings.OverwriteStatus(ctx, b.ID, status, paymentStatus)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Booking not found")
		}
		return nil, internalError("failed to update booking", err)
	}

	s.logger.Info("Booking status overridden",
		zap.String("bookingId", updated.ID),
		zap.String("requester", requester.ID),
		zap.String("status", string(updated.Status)),
		zap.String("paymentStatus", string(updated.PaymentStatus)))

	s.dispatch(ctx, statusUpdatedEffects(updated))
	return updated, nil
}

// authorizeInstructor allows admins and the instructor of the booking's course.
func (s *DefaultBookingService) authorizeInstructor(ctx context.Context, b *models.Booking, requester models.Requester, msg string) error {
	if requester.IsAdmin() {
		return nil
	}
	course, err := s.courses.GetByID(ctx, b.CourseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return forbidden(msg)
		}
		return internalError("failed to load course", err)
	}
	if course.InstructorID != requester.ID {
		return forbidden(msg)
	}
	return nil
}
