package models

import (
	"fmt"
	"strings"
	"time"
)

// BookingStatus is the enrollment side of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingAttended  BookingStatus = "attended"
)

// PaymentStatus is the money side of a booking.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod is fixed when the booking is created.
type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "online"
	PaymentCash   PaymentMethod = "cash"
)

// ParseBookingStatus validates a raw status coming from a request body.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch s := BookingStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case BookingConfirmed, BookingCancelled, BookingAttended:
		return s, nil
	default:
		return "", fmt.Errorf("invalid booking status %q", raw)
	}
}

// ParsePaymentStatus validates a raw payment status.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return s, nil
	default:
		return "", fmt.Errorf("invalid payment status %q", raw)
	}
}

// ParsePaymentMethod validates a raw payment method.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case PaymentOnline, PaymentCash:
		return m, nil
	default:
		return "", fmt.Errorf("invalid payment method %q: expected online or cash", raw)
	}
}

// Booking is one student's relationship to one course.
type Booking struct {
	ID                string        `bson:"id" json:"id"`
	CourseID          string        `bson:"course" json:"course"`
	StudentID         string        `bson:"student" json:"student"`
	Amount            float64       `bson:"amount" json:"amount"`
	Currency          string        `bson:"currency" json:"currency"`
	PaymentMethod     PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	PaymentID         string        `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	PaymentStatus     PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	Status            BookingStatus `bson:"status" json:"status"`
	RefundID          string        `bson:"refundId,omitempty" json:"refundId,omitempty"`
	RefundRequestedAt *time.Time    `bson:"refundRequestedAt,omitempty" json:"-"`
	BookingDate       time.Time     `bson:"bookingDate" json:"bookingDate"`
	UpdatedAt         time.Time     `bson:"updatedAt" json:"updatedAt"`
	Version           int           `bson:"version" json:"-"`
}

// IsActive reports whether the booking still holds (or is waiting for) a seat.
func (b *Booking) IsActive() bool {
	return b.Status != BookingCancelled
}

// IsSettled reports whether the booking is paid for enrollment purposes.
// Cash bookings keep paymentStatus=pending for their whole life and are
// settled from creation.
func (b *Booking) IsSettled() bool {
	if b.PaymentMethod == PaymentCash {
		return true
	}
	return b.PaymentStatus == PaymentCompleted
}

// NeedsRefund reports whether cancelling this booking must go through the gateway.
func (b *Booking) NeedsRefund() bool {
	return b.PaymentMethod == PaymentOnline && b.PaymentStatus == PaymentCompleted
}

// CreateBookingRequest is the POST /bookings body.
type CreateBookingRequest struct {
	CourseID      string `json:"courseId" binding:"required"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

// UpdateBookingStatusRequest is the PUT /bookings/:id/status body.
type UpdateBookingStatusRequest struct {
	Status        *string `json:"status,omitempty"`
	PaymentStatus *string `json:"paymentStatus,omitempty"`
}

// BookingResponse is returned from the create endpoint. ClientSecret is only
// present for online bookings.
type BookingResponse struct {
	Booking      *Booking `json:"booking"`
	ClientSecret string   `json:"clientSecret,omitempty"`
}
