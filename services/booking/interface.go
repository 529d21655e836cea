package booking

import (
	"context"
	"fmt"
	"time"

	bookingRepo "coursebook/database/repository/booking"
	courseRepo "coursebook/database/repository/course"
	"coursebook/models"
	"coursebook/services/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService is the enrollment coordinator. It is the only code path that
// mutates course rosters or booking payment fields.
type BookingService interface {
	EnrollStudent(ctx context.Context, courseID, studentID, method string) (*models.BookingResponse, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, signatureHeader string) error
	CancelBooking(ctx context.Context, bookingID string, requester models.Requester) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, req models.UpdateBookingStatusRequest, requester models.Requester) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID string, requester models.Requester) (*models.Booking, error)
	ListStudentBookings(ctx context.Context, studentID string) ([]models.Booking, error)
	ListInstructorBookings(ctx context.Context, instructorID string) ([]models.Booking, error)
	ReconcilePendingRefunds(ctx context.Context, olderThan time.Duration) (int, error)
}

// EffectDispatcher receives the side effects of a committed transition.
// Dispatch never reports failure back to the coordinator.
type EffectDispatcher interface {
	Dispatch(ctx context.Context, effects ...models.Effect)
}

// EventDeduper remembers processed webhook event ids. It is an optimisation
// only; every webhook path is idempotent without it.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// Dependencies are the collaborators the coordinator is built from.
type Dependencies struct {
	Bookings bookingRepo.BookingRepository
	Courses  courseRepo.CourseRepository
	Gateway  payment.Gateway
	Effects  EffectDispatcher
	Deduper  EventDeduper
	Logger   *zap.Logger
	Currency string
}

// DefaultBookingService implements BookingService.
type DefaultBookingService struct {
	bookings bookingRepo.BookingRepository
	courses  courseRepo.CourseRepository
	gateway  payment.Gateway
	effects  EffectDispatcher
	deduper  EventDeduper
	logger   *zap.Logger
	currency string

	now   func() time.Time
	newID func() string
}

// NewDefaultBookingService validates deps and builds the coordinator.
func NewDefaultBookingService(deps Dependencies) (*DefaultBookingService, error) {
	if deps.Bookings == nil || deps.Courses == nil || deps.Gateway == nil || deps.Effects == nil {
		return nil, fmt.Errorf("booking service initialization error: bookings, courses, gateway and effects are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := deps.Currency
	if currency == "" {
		currency = "usd"
	}
	return &DefaultBookingService{
		bookings: deps.Bookings,
		courses:  deps.Courses,
		gateway:  deps.Gateway,
		effects:  deps.Effects,
		deduper:  deps.Deduper,
		logger:   logger.Named("booking"),
		currency: currency,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}, nil
}
