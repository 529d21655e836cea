package courseRepo

import (
	"context"

	"coursebook/models"
)

// CourseRepository exposes the capacity and roster of a course. Roster writes
// are single conditional updates so concurrent enrollments cannot overfill.
type CourseRepository interface {
	// GetByID retrieves a course by its ID.
	GetByID(ctx context.Context, id string) (*models.Course, error)
	// ListByInstructor returns every course an instructor owns.
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Course, error)
	// AddStudent appends studentID only if the course is active, has a free
	// seat and does not already list the student.
	AddStudent(ctx context.Context, courseID, studentID string) error
	// RemoveStudent drops studentID from the roster; absent ids are a no-op.
	RemoveStudent(ctx context.Context, courseID, studentID string) error
}
