package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhookendpoint"
)

// StripeSubscriptions uses the process-wide stripe.Key.
type StripeSubscriptions struct {
	get    func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	update func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

func NewStripeSubscriptions() *StripeSubscriptions {
	return &StripeSubscriptions{
		get:    subscription.Get,
		update: subscription.Update,
	}
}

func (s *StripeSubscriptions) Metadata(ctx context.Context, subscriptionID string) (map[string]string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.get(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	return sub.Metadata, nil
}

// UpdateMetadata merges metadata into the subscription's existing keys.
func (s *StripeSubscriptions) UpdateMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	_, err := s.update(subscriptionID, params)
	return err
}

// Endpoints registers the webhook endpoint that receives fulfilment events.
type Endpoints struct {
	create func(*stripe.WebhookEndpointParams) (*stripe.WebhookEndpoint, error)
}

func NewEndpoints() *Endpoints {
	return &Endpoints{create: webhookendpoint.New}
}

// Register subscribes url to the events Handler processes and returns the
// endpoint id and its signing secret.
func (e *Endpoints) Register(ctx context.Context, url string) (id, secret string, err error) {
	if url == "" {
		return "", "", errors.New("webhook url is empty")
	}

	params := &stripe.WebhookEndpointParams{
		URL: stripe.String(url),
		EnabledEvents: stripe.StringSlice([]string{
			EventCheckoutCompleted,
			EventInvoicePaid,
		}),
	}
	params.Context = ctx

	endpoint, err := e.create(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create webhook endpoint: %w", err)
	}
	return endpoint.ID, endpoint.Secret, nil
}
