// Package payments wraps the Stripe SDK behind a small provider
// interface so handlers can be exercised without hitting Stripe.
package payments

import "context"

type Intent struct {
	ID           string
	ClientSecret string
}

type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_intent.succeeded"
	EventPaymentFailed    EventKind = "payment_intent.payment_failed"
	EventChargeRefunded   EventKind = "charge.refunded"
	EventRefundUpdated    EventKind = "charge.refund.updated"
)

// Event is the decoded, signature-verified webhook payload. OrderID
// comes from the metadata attached at intent/refund creation time.
type Event struct {
	ID            string
	Kind          EventKind
	OrderID       string
	IntentID      string
	PaymentMethod string
	ErrorMessage  string
	RefundStatus  string
}

type Provider interface {
	// CreateIntent opens a processor transaction for the given amount
	// in minor units and returns its id plus the client confirmation
	// secret.
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	// Refund refunds the whole payment behind intentID.
	Refund(ctx context.Context, intentID string, metadata map[string]string) (refundID string, err error)
	// VerifyWebhook checks the processor signature over the raw body
	// and decodes the event. Event kinds outside the closed set above
	// come back with their raw kind; callers ignore them.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
