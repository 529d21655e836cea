package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"coursebook/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// StripeGateway implements Gateway on top of the Stripe API.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
	logger        *zap.Logger
}

// NewStripeGateway builds a Stripe client whose HTTP calls are bounded by timeout.
func NewStripeGateway(secretKey, webhookSecret string, timeout time.Duration, logger *zap.Logger) (*StripeGateway, error) {
	if secretKey == "" || webhookSecret == "" {
		return nil, fmt.Errorf("stripe gateway initialization error: secret key and webhook secret are required")
	}
	httpClient := &http.Client{Timeout: timeout}
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(httpClient))

	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// toMinorUnits converts a decimal price into the smallest currency unit.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateIntent creates a PaymentIntent tagged with the booking it pays for.
func (g *StripeGateway) CreateIntent(ctx context.Context, req models.PaymentIntentRequest) (*models.PaymentIntent, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toMinorUnits(req.Amount)),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("bookingId", req.BookingID)
	params.AddMetadata("courseId", req.CourseID)
	params.AddMetadata("studentId", req.StudentID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %s", gatewayMessage(err))
	}

	g.logger.Info("Payment intent created",
		zap.String("paymentId", pi.ID),
		zap.String("bookingId", req.BookingID),
		zap.Int64("amount", pi.Amount))

	return &models.PaymentIntent{
		PaymentID:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// Refund issues a full refund against a PaymentIntent.
func (g *StripeGateway) Refund(ctx context.Context, paymentID, idempotencyKey string) (*models.Refund, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentID)}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("refund failed: %s", gatewayMessage(err))
	}
	if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
		return nil, fmt.Errorf("refund %s ended with status %s", r.ID, r.Status)
	}

	g.logger.Info("Refund issued", zap.String("paymentId", paymentID), zap.String("refundId", r.ID))
	return &models.Refund{RefundID: r.ID, PaymentID: paymentID, Status: string(r.Status)}, nil
}

// FindRefund lists the refunds on a PaymentIntent and returns the first one
// that has not failed or been canceled.
func (g *StripeGateway) FindRefund(ctx context.Context, paymentID string) (*models.Refund, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundListParams{PaymentIntent: stripe.String(paymentID)}
	params.Context = ctx
	params.Limit = stripe.Int64(10)

	it := g.api.Refunds.List(params)
	for it.Next() {
		r := it.Refund()
		if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
			continue
		}
		return &models.Refund{RefundID: r.ID, PaymentID: paymentID, Status: string(r.Status)}, nil
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list refunds: %s", gatewayMessage(err))
	}
	return nil, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes payment events.
// Event types other than the PaymentIntent ones come back with only EventID and Type set.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*models.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*models.PaymentEvent, error) {
	out := &models.PaymentEvent{EventID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		if event.Data == nil {
			return nil, fmt.Errorf("event %s has no data", event.ID)
		}
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to decode payment intent in event %s: %w", event.ID, err)
		}
		out.PaymentID = pi.ID
		out.Amount = pi.Amount
		out.Currency = string(pi.Currency)
		out.Metadata = pi.Metadata
		if pi.LastPaymentError != nil {
			out.Failure = pi.LastPaymentError.Msg
		}
	}
	return out, nil
}

// gatewayMessage extracts the human-readable part of a Stripe error.
func gatewayMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
