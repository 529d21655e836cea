package booking

import (
	"context"
	"fmt"
	"strings"

	"coursebook/models"

	"go.uber.org/zap"
)

const relatedBooking = "booking"

func notify(recipient, kind, title, message, bookingID string) models.Effect {
	return models.Effect{
		Kind:            models.EffectNotify,
		Recipient:       recipient,
		Type:            kind,
		Title:           title,
		Message:         message,
		RelatedResource: relatedBooking,
		ResourceID:      bookingID,
	}
}

func email(recipient, subject, message, bookingID string) models.Effect {
	return models.Effect{
		Kind:            models.EffectEmail,
		Recipient:       recipient,
		Type:            models.NotificationBookingConfirmed,
		Title:           subject,
		Message:         message,
		RelatedResource: relatedBooking,
		ResourceID:      bookingID,
	}
}

func money(currency string, amount float64) string {
	return fmt.Sprintf("%s %.2f", strings.ToUpper(currency), amount)
}

func cashEnrollEffects(course *models.Course, b *models.Booking) []models.Effect {
	return []models.Effect{
		notify(course.InstructorID, models.NotificationNewBooking, "New enrollment",
			fmt.Sprintf("A student enrolled in %s and will pay %s in cash.", course.Title, money(b.Currency, b.Amount)), b.ID),
		email(b.StudentID, "Your booking is confirmed",
			fmt.Sprintf("You are enrolled in %s. Please bring %s in cash to your first session.", course.Title, money(b.Currency, b.Amount)), b.ID),
	}
}

func paymentCompletedEffects(course *models.Course, b *models.Booking) []models.Effect {
	return []models.Effect{
		notify(b.StudentID, models.NotificationPaymentCompleted, "Payment received",
			fmt.Sprintf("We received your payment of %s. You are enrolled in %s.", money(b.Currency, b.Amount), course.Title), b.ID),
		notify(course.InstructorID, models.NotificationNewBooking, "New enrollment",
			fmt.Sprintf("A student paid %s and enrolled in %s.", money(b.Currency, b.Amount), course.Title), b.ID),
		email(b.StudentID, "Your booking is confirmed",
			fmt.Sprintf("Your payment of %s was successful and you are enrolled in %s.", money(b.Currency, b.Amount), course.Title), b.ID),
	}
}

func paymentFailedEffects(b *models.Booking, reason string) []models.Effect {
	msg := "Your payment could not be completed. You have not been charged."
	if reason != "" {
		msg = fmt.Sprintf("Your payment could not be completed: %s", reason)
	}
	return []models.Effect{
		notify(b.StudentID, models.NotificationPaymentFailed, "Payment failed", msg, b.ID),
	}
}

func overbookedEffects(course *models.Course, b *models.Booking) []models.Effect {
	return []models.Effect{
		notify(course.InstructorID, models.NotificationSeatOverbooked, "Course over capacity",
			fmt.Sprintf("A payment for %s completed after the course filled up. Booking %s needs a refund or an extra seat.", course.Title, b.ID), b.ID),
	}
}

func cancelledEffects(course *models.Course, b *models.Booking) []models.Effect {
	msg := fmt.Sprintf("A student cancelled their booking for %s.", course.Title)
	if b.PaymentStatus == models.PaymentRefunded {
		msg = fmt.Sprintf("A student cancelled their booking for %s and was refunded %s.", course.Title, money(b.Currency, b.Amount))
	}
	return []models.Effect{
		notify(course.InstructorID, models.NotificationBookingCancelled, "Booking cancelled", msg, b.ID),
	}
}

func statusUpdatedEffects(b *models.Booking) []models.Effect {
	return []models.Effect{
		notify(b.StudentID, models.NotificationBookingUpdated, "Booking updated",
			fmt.Sprintf("Your booking is now %s with payment %s.", b.Status, b.PaymentStatus), b.ID),
	}
}

// dispatch hands effects over once the transition they describe has committed.
func (s *DefaultBookingService) dispatch(ctx context.Context, effects []models.Effect) {
	if len(effects) == 0 {
		return
	}
	s.logger.Debug("Dispatching side effects", zap.Int("count", len(effects)))
	s.effects.Dispatch(ctx, effects...)
}
