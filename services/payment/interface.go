package payment

import (
	"context"
	"errors"

	"coursebook/models"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Gateway is the payment provider as seen by the booking flows.
type Gateway interface {
	// CreateIntent asks the provider for a payment the client will confirm.
	CreateIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error)
	// Refund returns the full amount of a completed payment. Calls with the
	// same idempotency key resolve to the same refund.
	Refund(ctx context.Context, paymentID, idempotencyKey string) (*models.Refund, error)
	// FindRefund returns the live refund already made against paymentID, or
	// nil when there is none.
	FindRefund(ctx context.Context, paymentID string) (*models.Refund, error)
	// ParseWebhook verifies the signature over the raw payload and decodes it.
	ParseWebhook(payload []byte, signatureHeader string) (*models.PaymentEvent, error)
}
