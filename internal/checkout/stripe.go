package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"

	"nimble.viom.tech/site/models"
)

const metaOrganizationDomain = "organization_domain"

type StripeBilling struct {
	listCustomers         func(*stripe.CustomerListParams) ([]*stripe.Customer, error)
	createCustomer        func(*stripe.CustomerParams) (*stripe.Customer, error)
	createCheckoutSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeBilling sets the process-wide Stripe key.
func NewStripeBilling(secretKey string) *StripeBilling {
	stripe.Key = secretKey

	return &StripeBilling{
		listCustomers:         listCustomers,
		createCustomer:        customer.New,
		createCheckoutSession: stripesession.New,
	}
}

func listCustomers(params *stripe.CustomerListParams) ([]*stripe.Customer, error) {
	var out []*stripe.Customer

	iter := customer.List(params)
	for iter.Next() {
		out = append(out, iter.Customer())
		if params.Limit != nil && int64(len(out)) >= *params.Limit {
			break
		}
	}
	return out, iter.Err()
}

func (b *StripeBilling) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	customers, err := b.listCustomers(params)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return toCustomer(customers[0]), nil
}

func (b *StripeBilling) CreateCustomer(ctx context.Context, c models.Customer) (*models.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(c.Email),
		Name:  stripe.String(c.Name),
	}
	params.AddMetadata(metaOrganizationDomain, c.OrganizationDomain)
	params.Context = ctx

	created, err := b.createCustomer(params)
	if err != nil {
		return nil, err
	}
	return toCustomer(created), nil
}

func (b *StripeBilling) CreateCheckoutSession(ctx context.Context, p SessionParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		Metadata:   p.Metadata.Map(),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata:    p.Subscription.Map(),
			Description: stripe.String(p.Subscription.Description()),
		},
	}
	params.Context = ctx

	session, err := b.createCheckoutSession(params)
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

func toCustomer(c *stripe.Customer) *models.Customer {
	return &models.Customer{
		ID:                 c.ID,
		Email:              c.Email,
		Name:               c.Name,
		OrganizationDomain: c.Metadata[metaOrganizationDomain],
	}
}
