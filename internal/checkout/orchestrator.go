// Package checkout turns a purchase request into a provider checkout session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/metrics"
	"nimble.viom.tech/site/models"
)

var tracer = otel.Tracer("nimble/checkout")

type Orchestrator struct {
	billing  Billing
	prices   map[string]string
	validate *validator.Validate
}

// NewOrchestrator takes the productVersionId -> price id table.
func NewOrchestrator(billing Billing, prices map[string]string) *Orchestrator {
	return &Orchestrator{
		billing:  billing,
		prices:   prices,
		validate: NewValidator(),
	}
}

// NewValidator reports field errors by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// FieldError renders the first validation failure as a sentence.
func FieldError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "contains":
		return fe.Field() + " must be an email address"
	default:
		return fe.Field() + " is invalid"
	}
}

// CreateSession validates req, upserts the billing customer and opens a
// subscription checkout. baseURL is scheme://host used for the return pages.
// Every call creates a new session.
func (o *Orchestrator) CreateSession(ctx context.Context, req models.CheckoutRequest, baseURL string) (string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.CreateSession", trace.WithAttributes(
		attribute.String("checkout.product_version_id", req.ProductVersionID),
	))
	defer span.End()

	id, err := o.createSession(ctx, req, baseURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.CheckoutSessions.WithLabelValues(outcome(err)).Inc()
		logger.Warn("Checkout session not created", map[string]interface{}{
			"organization_email": req.OrganizationEmail,
			"user_email":         req.UserEmail,
			"product_version_id": req.ProductVersionID,
			"error":              err.Error(),
		})
		return "", err
	}

	metrics.CheckoutSessions.WithLabelValues("created").Inc()
	logger.Info("Checkout session created", map[string]interface{}{
		"session_id":         id,
		"organization_email": req.OrganizationEmail,
		"product_version_id": req.ProductVersionID,
	})
	return id, nil
}

func (o *Orchestrator) createSession(ctx context.Context, req models.CheckoutRequest, baseURL string) (string, error) {
	if err := o.validate.Struct(req); err != nil {
		return "", &Error{Message: FieldError(err), Err: err}
	}

	if err := CheckDomains(req.OrganizationEmail, req.UserEmail); err != nil {
		return "", err
	}

	priceID, ok := o.prices[req.ProductVersionID]
	if !ok {
		return "", &UnknownVersionError{VersionID: req.ProductVersionID}
	}

	cust, err := o.upsertCustomer(ctx, req.OrganizationEmail)
	if err != nil {
		return "", &Error{Message: err.Error(), Err: err}
	}

	base := strings.TrimRight(baseURL, "/")
	sub := models.SubscriptionMetadata{
		UserInfo:          models.UserInfo(req.FirstName, req.LastName, req.UserEmail),
		ProductID:         req.ProductID,
		OrganizationEmail: req.OrganizationEmail,
	}

	id, err := o.billing.CreateCheckoutSession(ctx, SessionParams{
		CustomerID:   cust.ID,
		PriceID:      priceID,
		SuccessURL:   base + "/success.html",
		CancelURL:    base + "/cancel.html",
		Metadata:     models.NewCheckoutMetadata(req),
		Subscription: sub,
	})
	if err != nil {
		return "", &Error{Message: err.Error(), Err: err}
	}

	return id, nil
}

func (o *Orchestrator) upsertCustomer(ctx context.Context, organizationEmail string) (*models.Customer, error) {
	existing, err := o.billing.FindCustomerByEmail(ctx, organizationEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	domain := EmailDomain(organizationEmail)
	created, err := o.billing.CreateCustomer(ctx, models.Customer{
		Email:              organizationEmail,
		Name:               OrganizationName(domain),
		OrganizationDomain: domain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	logger.Info("Billing customer created", map[string]interface{}{
		"customer_id":        created.ID,
		"organization_email": organizationEmail,
	})
	return created, nil
}

func outcome(err error) string {
	var (
		mismatch *DomainMismatchError
		unknown  *UnknownVersionError
	)
	switch {
	case errors.As(err, &mismatch):
		return "domain_mismatch"
	case errors.As(err, &unknown):
		return "unknown_version"
	default:
		return "error"
	}
}
