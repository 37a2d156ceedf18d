package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"github.com/stripe/stripe-go/v78/refund"
	"github.com/stripe/stripe-go/v78/webhook"
)

type StripeProvider struct {
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProvider) Refund(ctx context.Context, intentID string, metadata map[string]string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create refund: %w", err)
	}
	return r.ID, nil
}

func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe: verify webhook signature: %w", err)
	}

	out := &Event{ID: event.ID, Kind: EventKind(event.Type)}

	switch out.Kind {
	case EventPaymentSucceeded, EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("stripe: decode payment intent: %w", err)
		}
		out.OrderID = pi.Metadata["order_id"]
		out.IntentID = pi.ID
		if len(pi.PaymentMethodTypes) > 0 {
			out.PaymentMethod = pi.PaymentMethodTypes[0]
		}
		if pi.LastPaymentError != nil {
			out.ErrorMessage = pi.LastPaymentError.Msg
		}
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("stripe: decode charge: %w", err)
		}
		out.OrderID = ch.Metadata["order_id"]
	case EventRefundUpdated:
		var r stripe.Refund
		if err := json.Unmarshal(event.Data.Raw, &r); err != nil {
			return nil, fmt.Errorf("stripe: decode refund: %w", err)
		}
		out.OrderID = r.Metadata["order_id"]
		out.RefundStatus = string(r.Status)
	}

	return out, nil
}
