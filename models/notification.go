package models

import "time"

// Notification types written by the booking lifecycle.
const (
	NotificationNewBooking       = "new_booking"
	NotificationBookingConfirmed = "booking_confirmed"
	NotificationPaymentCompleted = "payment_completed"
	NotificationPaymentFailed    = "payment_failed"
	NotificationBookingCancelled = "booking_cancelled"
	NotificationBookingUpdated   = "booking_updated"
	NotificationSeatOverbooked   = "seat_overbooked"
)

// Notification is a user-directed message. The booking core writes these and
// never reads them back.
type Notification struct {
	ID              string    `bson:"id" json:"id"`
	Recipient       string    `bson:"recipient" json:"recipient"`
	Type            string    `bson:"type" json:"type"`
	Title           string    `bson:"title" json:"title"`
	Message         string    `bson:"message" json:"message"`
	RelatedResource string    `bson:"relatedResource" json:"relatedResource"`
	ResourceID      string    `bson:"resourceId" json:"resourceId"`
	Read            bool      `bson:"read" json:"read"`
	CreatedAt       time.Time `bson:"createdAt" json:"createdAt"`
}
