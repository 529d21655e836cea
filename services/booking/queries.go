package booking

import (
	"context"

	"coursebook/models"
)

// GetBooking returns a booking to its student, the course instructor or an admin.
func (s *DefaultBookingService) GetBooking(ctx context.Context, bookingID string, requester models.Requester) (*models.Booking, error) {
	b, err := s.reload(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.StudentID == requester.ID {
		return b, nil
	}
	if err := s.authorizeInstructor(ctx, b, requester, "You are not allowed to view this booking"); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *DefaultBookingService) ListStudentBookings(ctx context.Context, studentID string) ([]models.Booking, error) {
	bookings, err := s.bookings.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, internalError("failed to list bookings", err)
	}
	return bookings, nil
}

// ListInstructorBookings returns bookings across every course the instructor owns.
func (s *DefaultBookingService) ListInstructorBookings(ctx context.Context, instructorID string) ([]models.Booking, error) {
	courses, err := s.courses.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, internalError("failed to list instructor courses", err)
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	bookings, err := s.bookings.ListByCourses(ctx, ids)
	if err != nil {
		return nil, internalError("failed to list bookings", err)
	}
	return bookings, nil
}
