package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"nimble.viom.tech/site/models"
)

type fakeBilling struct {
	existing   *models.Customer
	findErr    error
	createErr  error
	sessionErr error

	calls    []string
	created  []models.Customer
	sessions []SessionParams
}

func (f *fakeBilling) FindCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	f.calls = append(f.calls, "find:"+email)
	return f.existing, f.findErr
}

func (f *fakeBilling) CreateCustomer(ctx context.Context, c models.Customer) (*models.Customer, error) {
	f.calls = append(f.calls, "create:"+c.Email)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, c)
	c.ID = "cus_new"
	return &c, nil
}

func (f *fakeBilling) CreateCheckoutSession(ctx context.Context, p SessionParams) (string, error) {
	f.calls = append(f.calls, "session")
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	f.sessions = append(f.sessions, p)
	return "cs_test_123", nil
}

var testPrices = map[string]string{
	"ver-web":   "price_web",
	"ver-cross": "price_cross",
}

func validRequest() models.CheckoutRequest {
	return models.CheckoutRequest{
		OrganizationEmail: "billing@acme.com",
		UserEmail:         "jane@acme.com",
		FirstName:         "Jane",
		LastName:          "Doe",
		ProductID:         "prod-nimble",
		ProductVersionID:  "ver-web",
	}
}

func TestCreateSession_NewCustomer(t *testing.T) {
	billing := &fakeBilling{}
	o := NewOrchestrator(billing, testPrices)

	id, err := o.CreateSession(context.Background(), validRequest(), "https://nimble.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", id)

	assert.Equal(t, []string{"find:billing@acme.com", "create:billing@acme.com", "session"}, billing.calls)
	require.Len(t, billing.created, 1)
	assert.Equal(t, "ACME", billing.created[0].Name)
	assert.Equal(t, "acme.com", billing.created[0].OrganizationDomain)

	require.Len(t, billing.sessions, 1)
	s := billing.sessions[0]
	assert.Equal(t, "cus_new", s.CustomerID)
	assert.Equal(t, "price_web", s.PriceID)
	assert.Equal(t, "https://nimble.example.com/success.html", s.SuccessURL)
	assert.Equal(t, "https://nimble.example.com/cancel.html", s.CancelURL)
	assert.Equal(t, models.NewCheckoutMetadata(validRequest()), s.Metadata)
	assert.Equal(t, "Jane Doe (jane@acme.com)", s.Subscription.UserInfo)
	assert.Equal(t, "prod-nimble", s.Subscription.ProductID)
	assert.Equal(t, "billing@acme.com", s.Subscription.OrganizationEmail)
}

func TestCreateSession_ExistingCustomerReused(t *testing.T) {
	billing := &fakeBilling{existing: &models.Customer{ID: "cus_existing", Email: "billing@acme.com"}}
	o := NewOrchestrator(billing, testPrices)

	_, err := o.CreateSession(context.Background(), validRequest(), "http://localhost:4242")
	require.NoError(t, err)

	assert.Equal(t, []string{"find:billing@acme.com", "session"}, billing.calls)
	assert.Equal(t, "cus_existing", billing.sessions[0].CustomerID)
	assert.Equal(t, "http://localhost:4242/success.html", billing.sessions[0].SuccessURL)
}

func TestCreateSession_DomainRule(t *testing.T) {
	tests := []struct {
		name      string
		orgEmail  string
		userEmail string
		wantErr   string
	}{
		{"same domain", "billing@acme.com", "jane@acme.com", ""},
		{"domain compared case-insensitively", "billing@ACME.com", "jane@acme.COM", ""},
		{"different domains", "billing@acme.com", "jane@other.com", "User email domain (other.com) must match organization domain (acme.com)"},
		{"exempt organization domain", "founder@gmail.com", "jane@acme.com", ""},
		{"exempt user domain", "billing@acme.com", "jane@gmail.com", ""},
		{"outlook organization", "me@outlook.com", "jane@acme.com", ""},
		{"hotmail user", "billing@acme.com", "jane@hotmail.com", ""},
		{"yahoo user", "billing@acme.com", "jane@yahoo.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billing := &fakeBilling{}
			o := NewOrchestrator(billing, testPrices)

			req := validRequest()
			req.OrganizationEmail = tt.orgEmail
			req.UserEmail = tt.userEmail

			_, err := o.CreateSession(context.Background(), req, "https://nimble.example.com")
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			var mismatch *DomainMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tt.wantErr, err.Error())
			assert.Empty(t, billing.calls, "no provider call may happen on a domain mismatch")
		})
	}
}

func TestCreateSession_UnknownVersion(t *testing.T) {
	billing := &fakeBilling{}
	o := NewOrchestrator(billing, testPrices)

	req := validRequest()
	req.ProductVersionID = "ver-unknown"

	_, err := o.CreateSession(context.Background(), req, "https://nimble.example.com")
	require.Error(t, err)

	var unknown *UnknownVersionError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "No matching Stripe price for version ID: ver-unknown", err.Error())
	assert.Empty(t, billing.calls)
}

func TestCreateSession_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.CheckoutRequest)
		wantErr string
	}{
		{"organization email", func(r *models.CheckoutRequest) { r.OrganizationEmail = "" }, "organizationEmail is required"},
		{"user email", func(r *models.CheckoutRequest) { r.UserEmail = "" }, "userEmail is required"},
		{"first name", func(r *models.CheckoutRequest) { r.FirstName = "" }, "firstName is required"},
		{"last name", func(r *models.CheckoutRequest) { r.LastName = "" }, "lastName is required"},
		{"product id", func(r *models.CheckoutRequest) { r.ProductID = "" }, "productId is required"},
		{"product version", func(r *models.CheckoutRequest) { r.ProductVersionID = "" }, "productVersionId is required"},
		{"email without at sign", func(r *models.CheckoutRequest) { r.UserEmail = "jane.acme.com" }, "userEmail must be an email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			billing := &fakeBilling{}
			o := NewOrchestrator(billing, testPrices)

			req := validRequest()
			tt.mutate(&req)

			_, err := o.CreateSession(context.Background(), req, "https://nimble.example.com")
			require.Error(t, err)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.wantErr, cerr.Message)
			assert.Empty(t, billing.calls)
		})
	}
}

func TestCreateSession_ProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		billing *fakeBilling
		wantMsg string
	}{
		{"lookup fails", &fakeBilling{findErr: errors.New("api down")}, "failed to look up customer: api down"},
		{"create fails", &fakeBilling{createErr: errors.New("invalid email")}, "failed to create customer: invalid email"},
		{"session fails", &fakeBilling{sessionErr: errors.New("No such price: 'price_web'")}, "No such price: 'price_web'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOrchestrator(tt.billing, testPrices)

			_, err := o.CreateSession(context.Background(), validRequest(), "https://nimble.example.com")
			require.Error(t, err)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.wantMsg, cerr.Error())
		})
	}
}

func TestCreateSession_NotIdempotent(t *testing.T) {
	billing := &fakeBilling{}
	o := NewOrchestrator(billing, testPrices)

	for i := 0; i < 2; i++ {
		_, err := o.CreateSession(context.Background(), validRequest(), "https://nimble.example.com")
		require.NoError(t, err)
	}
	assert.Len(t, billing.sessions, 2)
}

func TestEmailDomainAndOrganizationName(t *testing.T) {
	assert.Equal(t, "acme.co.uk", EmailDomain("Billing@Acme.Co.UK"))
	assert.Equal(t, "", EmailDomain("no-at-sign"))
	assert.Equal(t, "b", EmailDomain("a@b@c"))
	assert.Equal(t, "ACME", OrganizationName("acme.co.uk"))
}

type requestKey struct{}

func requestContext() context.Context {
	return context.WithValue(context.Background(), requestKey{}, "req-1")
}

func TestStripeBilling_FindCustomerByEmail(t *testing.T) {
	var got *stripe.CustomerListParams
	b := &StripeBilling{
		listCustomers: func(p *stripe.CustomerListParams) ([]*stripe.Customer, error) {
			got = p
			return []*stripe.Customer{{
				ID:       "cus_1",
				Email:    "billing@acme.com",
				Name:     "ACME",
				Metadata: map[string]string{"organization_domain": "acme.com"},
			}}, nil
		},
	}

	c, err := b.FindCustomerByEmail(requestContext(), "billing@acme.com")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.Context.Value(requestKey{}))
	assert.Equal(t, &models.Customer{ID: "cus_1", Email: "billing@acme.com", Name: "ACME", OrganizationDomain: "acme.com"}, c)
	assert.Equal(t, "billing@acme.com", *got.Email)
	assert.Equal(t, int64(1), *got.Limit)
}

func TestStripeBilling_FindCustomerByEmail_None(t *testing.T) {
	b := &StripeBilling{
		listCustomers: func(p *stripe.CustomerListParams) ([]*stripe.Customer, error) { return nil, nil },
	}

	c, err := b.FindCustomerByEmail(context.Background(), "billing@acme.com")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestStripeBilling_CreateCustomer(t *testing.T) {
	var got *stripe.CustomerParams
	b := &StripeBilling{
		createCustomer: func(p *stripe.CustomerParams) (*stripe.Customer, error) {
			got = p
			return &stripe.Customer{ID: "cus_2", Email: *p.Email, Name: *p.Name}, nil
		},
	}

	c, err := b.CreateCustomer(requestContext(), models.Customer{Email: "billing@acme.com", Name: "ACME", OrganizationDomain: "acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.Context.Value(requestKey{}))
	assert.Equal(t, "cus_2", c.ID)
	assert.Equal(t, "ACME", *got.Name)
	assert.Equal(t, "acme.com", got.Metadata["organization_domain"])
}

func TestStripeBilling_CreateCheckoutSession(t *testing.T) {
	var got *stripe.CheckoutSessionParams
	b := &StripeBilling{
		createCheckoutSession: func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			got = p
			return &stripe.CheckoutSession{ID: "cs_live_1"}, nil
		},
	}

	req := validRequest()
	sub := models.SubscriptionMetadata{UserInfo: "Jane Doe (jane@acme.com)", ProductID: "prod-nimble", OrganizationEmail: "billing@acme.com"}

	id, err := b.CreateCheckoutSession(requestContext(), SessionParams{
		CustomerID:   "cus_1",
		PriceID:      "price_web",
		SuccessURL:   "https://nimble.example.com/success.html",
		CancelURL:    "https://nimble.example.com/cancel.html",
		Metadata:     models.NewCheckoutMetadata(req),
		Subscription: sub,
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_live_1", id)
	assert.Equal(t, "req-1", got.Context.Value(requestKey{}))

	assert.Equal(t, "cus_1", *got.Customer)
	assert.Equal(t, "subscription", *got.Mode)
	assert.Equal(t, []*string{stripe.String("card")}, got.PaymentMethodTypes)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "price_web", *got.LineItems[0].Price)
	assert.Equal(t, int64(1), *got.LineItems[0].Quantity)
	assert.Equal(t, "https://nimble.example.com/success.html", *got.SuccessURL)
	assert.Equal(t, "https://nimble.example.com/cancel.html", *got.CancelURL)
	assert.Equal(t, "ver-web", got.Metadata["productVersionId"])
	assert.Equal(t, "jane@acme.com", got.Metadata["userEmail"])
	assert.Equal(t, "Jane Doe (jane@acme.com)", got.SubscriptionData.Metadata["User Info"])
	assert.Equal(t, "Subscription for Jane Doe (jane@acme.com)", *got.SubscriptionData.Description)
}
