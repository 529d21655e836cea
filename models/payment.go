package models

// PaymentIntentRequest asks the gateway for a charge the client will confirm.
type PaymentIntentRequest struct {
	BookingID      string
	CourseID       string
	StudentID      string
	Amount         float64
	Currency       string
	IdempotencyKey string
	Description    string
}

// PaymentIntent is what the gateway hands back after creating an intent.
type PaymentIntent struct {
	PaymentID    string
	ClientSecret string
	Status       string
}

// Refund is the gateway's answer to a refund request.
type Refund struct {
	RefundID  string
	PaymentID string
	Status    string
}

// Gateway event kinds the coordinator reacts to.
const (
	PaymentEventSucceeded = "payment_intent.succeeded"
	PaymentEventFailed    = "payment_intent.payment_failed"
)

// PaymentEvent is a verified, parsed webhook callback.
type PaymentEvent struct {
	EventID   string
	Type      string
	PaymentID string
	Amount    int64
	Currency  string
	Metadata  map[string]string
	Failure   string
}
