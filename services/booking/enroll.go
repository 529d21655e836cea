package booking

import (
	"context"
	"errors"
	"fmt"

	"coursebook/database/repository"
	"coursebook/models"

	"go.uber.org/zap"
)

const (
	msgCourseNotFound  = "Course not found"
	msgCourseFull      = "Course is already full"
	msgAlreadyEnrolled = "You are already enrolled in this course"
)

// EnrollStudent creates a booking. Cash bookings take their seat immediately;
// online bookings only take it once the payment webhook confirms the charge.
func (s *DefaultBookingService) EnrollStudent(ctx context.Context, courseID, studentID, method string) (*models.BookingResponse, error) {
	if courseID == "" || studentID == "" {
		return nil, invalid("courseId is required", nil)
	}
	pm, err := models.ParsePaymentMethod(method)
	if err != nil {
		return nil, invalid("Invalid payment method", err)
	}

	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.HasStudent(studentID) {
		return nil, conflict(msgAlreadyEnrolled)
	}
	if course.IsFull() {
		return nil, conflict(msgCourseFull)
	}

	if pm == models.PaymentCash {
		return s.enrollCash(ctx, course, studentID)
	}
	return s.enrollOnline(ctx, course, studentID)
}

func (s *DefaultBookingService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(msgCourseNotFound)
		}
		return nil, internalError("failed to load course", err)
	}
	if !course.IsActive {
		return nil, notFound(msgCourseNotFound)
	}
	return course, nil
}

func (s *DefaultBookingService) newBooking(course *models.Course, studentID string, pm models.PaymentMethod) *models.Booking {
	now := s.now()
	return &models.Booking{
		ID:            s.newID(),
		CourseID:      course.ID,
		StudentID:     studentID,
		Amount:        course.Price,
		Currency:      s.currency,
		PaymentMethod: pm,
		PaymentStatus: models.PaymentPending,
		Status:        models.BookingConfirmed,
		BookingDate:   now,
		UpdatedAt:     now,
	}
}

func (s *DefaultBookingService) enrollCash(ctx context.Context, course *models.Course, studentID string) (*models.BookingResponse, error) {
	if err := s.addToRoster(ctx, course.ID, studentID); err != nil {
		return nil, err
	}

	b := s.newBooking(course, studentID, models.PaymentCash)
	if err := s.bookings.Create(ctx, b); err != nil {
		// Give the seat back; nothing references it yet.
		if rmErr := s.courses.RemoveStudent(ctx, course.ID, studentID); rmErr != nil {
			s.logger.Error("Failed to release seat after booking insert failed",
				zap.String("courseId", course.ID),
				zap.String("studentId", studentID),
				zap.Error(rmErr))
		}
		return nil, internalError("failed to create booking", err)
	}

	s.logger.Info("Cash booking confirmed",
		zap.String("bookingId", b.ID),
		zap.String("courseId", course.ID),
		zap.String("studentId", studentID))

	s.dispatch(ctx, cashEnrollEffects(course, b))
	return &models.BookingResponse{Booking: b}, nil
}

func (s *DefaultBookingService) enrollOnline(ctx context.Context, course *models.Course, studentID string) (*models.BookingResponse, error) {
	b := s.newBooking(course, studentID, models.PaymentOnline)
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, internalError("failed to create booking", err)
	}

	intent, err := s.gateway.CreateIntent(ctx, models.PaymentIntentRequest{
		BookingID:      b.ID,
		CourseID:       course.ID,
		StudentID:      studentID,
		Amount:         b.Amount,
		Currency:       b.Currency,
		IdempotencyKey: b.ID,
		Description:    fmt.Sprintf("Enrollment in %s", course.Title),
	})
	if err != nil {
		s.logger.Warn("Payment intent creation failed",
			zap.String("bookingId", b.ID),
			zap.Error(err))
		if _, markErr := s.bookings.TransitionPayment(ctx, b.ID, models.PaymentPending, models.PaymentFailed); markErr != nil {
			s.logger.Error("Failed to mark booking payment failed", zap.String("bookingId", b.ID), zap.Error(markErr))
		}
		return nil, external(fmt.Sprintf("Payment could not be started: %v", err), err)
	}

	if err := s.bookings.AttachPayment(ctx, b.ID, intent.PaymentID); err != nil {
		s.logger.Error("Failed to store payment reference",
			zap.String("bookingId", b.ID),
			zap.String("paymentId", intent.PaymentID),
			zap.Error(err))
		return nil, internalError("failed to store payment reference", err)
	}
	b.PaymentID = intent.PaymentID

	s.logger.Info("Online booking awaiting payment",
		zap.String("bookingId", b.ID),
		zap.String("paymentId", b.PaymentID),
		zap.String("courseId", course.ID))

	return &models.BookingResponse{Booking: b, ClientSecret: intent.ClientSecret}, nil
}

// addToRoster performs the conditional append and turns a rejected condition
// into the Conflict the caller should see.
func (s *DefaultBookingService) addToRoster(ctx context.Context, courseID, studentID string) error {
	err := s.courses.AddStudent(ctx, courseID, studentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrConditionFailed) {
		return internalError("failed to update course roster", err)
	}

	course, getErr := s.loadCourse(ctx, courseID)
	if getErr != nil {
		return getErr
	}
	if course.HasStudent(studentID) {
		return conflict(msgAlreadyEnrolled)
	}
	return conflict(msgCourseFull)
}
