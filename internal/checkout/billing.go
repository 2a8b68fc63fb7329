package checkout

import (
	"context"

	"nimble.viom.tech/site/models"
)

type SessionParams struct {
	CustomerID   string
	PriceID      string
	SuccessURL   string
	CancelURL    string
	Metadata     models.CheckoutMetadata
	Subscription models.SubscriptionMetadata
}

// Billing is the payment provider as seen by the orchestrator.
type Billing interface {
	// FindCustomerByEmail returns nil when no customer has that email.
	FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer models.Customer) (*models.Customer, error)
	CreateCheckoutSession(ctx context.Context, params SessionParams) (string, error)
}
