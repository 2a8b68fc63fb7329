// Package fulfillment provisions and renews licenses from Stripe events.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nimble.viom.tech/site/internal/checkout"
	"nimble.viom.tech/site/internal/licensing"
	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/models"
)

const (
	LicenseValidity     = 30 * 24 * time.Hour
	RenewalGracePeriod  = 24 * time.Hour
	OrganizationSeats   = 500
	billingReasonCreate = "subscription_create"
)

var tracer = otel.Tracer("nimble/fulfillment")

// Licensing is the part of the licensing API fulfilment drives.
type Licensing interface {
	FindOrganizationByEmail(ctx context.Context, email string) (*models.Organization, error)
	CreateOrganization(ctx context.Context, org models.Organization) (*models.Organization, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, params licensing.CreateUserParams) (*models.User, error)
	CreateLicense(ctx context.Context, params licensing.CreateLicenseParams) (*models.License, error)
	GetLicense(ctx context.Context, id string) (*models.License, error)
	RenewLicense(ctx context.Context, id string) (*models.License, error)
	ExtendLicense(ctx context.Context, id string, d time.Duration) (*models.License, error)
}

// Subscriptions reads and writes Stripe subscription metadata.
type Subscriptions interface {
	Metadata(ctx context.Context, subscriptionID string) (map[string]string, error)
	UpdateMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error
}

type Service struct {
	licenses      Licensing
	subscriptions Subscriptions
	now           func() time.Time
}

func NewService(licenses Licensing, subscriptions Subscriptions) *Service {
	return &Service{
		licenses:      licenses,
		subscriptions: subscriptions,
		now:           time.Now,
	}
}

type Provisioned struct {
	Organization *models.Organization
	User         *models.User
	License      *models.License
}

type Renewal struct {
	LicenseID string
	Message   string
}

// Provision handles a completed checkout: it makes sure the organization and
// user exist, issues a license and records its id on the subscription.
func (s *Service) Provision(ctx context.Context, subscriptionID string, metadata map[string]string) (*Provisioned, error) {
	ctx, span := tracer.Start(ctx, "Service.Provision", trace.WithAttributes(
		attribute.String("stripe.subscription_id", subscriptionID),
	))
	defer span.End()

	meta := models.ParseCheckoutMetadata(metadata)
	if missing := meta.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required metadata: %s", strings.Join(missing, ", "))
	}

	if err := checkout.CheckDomains(meta.OrganizationEmail, meta.UserEmail); err != nil {
		return nil, err
	}

	org, err := s.organization(ctx, meta.OrganizationEmail)
	if err != nil {
		return nil, err
	}

	user, err := s.user(ctx, meta, org.ID)
	if err != nil {
		return nil, err
	}

	license, err := s.licenses.CreateLicense(ctx, licensing.CreateLicenseParams{
		UserID:           user.ID,
		ProductID:        meta.ProductID,
		ProductVersionID: meta.ProductVersionID,
		Type:             models.LicenseTypeNodeLocked,
		Validity:         int64(LicenseValidity / time.Second),
		Metadata: []models.MetadataEntry{
			{Key: "organizationName", Value: org.Name, Visible: true},
			{Key: "userName", Value: meta.FullName(), Visible: true},
			{Key: "productVersionId", Value: meta.ProductVersionID, Visible: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	logger.Info("License created", map[string]interface{}{
		"license_id":         license.ID,
		"user_id":            user.ID,
		"organization_id":    org.ID,
		"product_version_id": meta.ProductVersionID,
	})

	if subscriptionID == "" {
		logger.Error("No subscription ID found in checkout session", map[string]interface{}{
			"license_id": license.ID,
		})
	} else {
		sub := models.SubscriptionMetadata{
			UserInfo:          models.UserInfo(meta.FirstName, meta.LastName, meta.UserEmail),
			ProductID:         meta.ProductID,
			OrganizationEmail: meta.OrganizationEmail,
			LicenseID:         license.ID,
		}
		if err := s.subscriptions.UpdateMetadata(ctx, subscriptionID, sub.Map()); err != nil {
			return nil, fmt.Errorf("failed to update subscription metadata: %w", err)
		}
	}

	return &Provisioned{Organization: org, User: user, License: license}, nil
}

func (s *Service) organization(ctx context.Context, email string) (*models.Organization, error) {
	org, err := s.licenses.FindOrganizationByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization by email: %w", err)
	}
	if org != nil {
		return org, nil
	}

	domain := checkout.EmailDomain(email)
	org, err = s.licenses.CreateOrganization(ctx, models.Organization{
		Name:         checkout.OrganizationName(domain),
		Email:        email,
		Domain:       domain,
		AllowedUsers: OrganizationSeats,
		Description:  fmt.Sprintf("Organization for %s domain users", domain),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	logger.Info("Organization created", map[string]interface{}{
		"organization_id": org.ID,
		"domain":          domain,
	})
	return org, nil
}

func (s *Service) user(ctx context.Context, meta models.CheckoutMetadata, organizationID string) (*models.User, error) {
	user, err := s.licenses.FindUserByEmail(ctx, meta.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	if user != nil {
		return user, nil
	}

	password, err := randomPassword()
	if err != nil {
		return nil, err
	}

	user, err = s.licenses.CreateUser(ctx, licensing.CreateUserParams{
		Email:          meta.UserEmail,
		FirstName:      meta.FirstName,
		LastName:       meta.LastName,
		Password:       password,
		Role:           models.RoleUser,
		OrganizationID: organizationID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.Info("Licensing user created", map[string]interface{}{
		"user_id":         user.ID,
		"organization_id": organizationID,
	})
	return user, nil
}

// Renew handles a paid invoice. The first invoice of a subscription is
// skipped since Provision already issued the license. A license still inside
// the grace period is renewed; an older one is extended by the days it has
// been expired plus a full period.
func (s *Service) Renew(ctx context.Context, subscriptionID, billingReason string) (*Renewal, error) {
	ctx, span := tracer.Start(ctx, "Service.Renew", trace.WithAttributes(
		attribute.String("stripe.subscription_id", subscriptionID),
		attribute.String("stripe.billing_reason", billingReason),
	))
	defer span.End()

	if billingReason == billingReasonCreate {
		logger.Info("Skipping initial invoice payment", map[string]interface{}{
			"subscription_id": subscriptionID,
		})
		return &Renewal{Message: "Initial payment ignored - license already created"}, nil
	}

	if subscriptionID == "" {
		return nil, errors.New("invoice has no subscription")
	}

	raw, err := s.subscriptions.Metadata(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}

	meta := models.ParseSubscriptionMetadata(raw)
	if meta.UserInfo == "" || meta.LicenseID == "" {
		return nil, errors.New("User Info or License ID metadata missing from subscription")
	}
	userEmail := meta.UserEmail()
	if userEmail == "" {
		return nil, fmt.Errorf("failed to extract email from User Info: %s", meta.UserInfo)
	}

	license, err := s.licenses.GetLicense(ctx, meta.LicenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch license details: %w", err)
	}

	now := s.now()
	if license.ExpiresAt == nil || !license.ExpiresAt.Before(now.Add(-RenewalGracePeriod)) {
		if _, err := s.licenses.RenewLicense(ctx, meta.LicenseID); err != nil {
			return nil, fmt.Errorf("failed to renew license: %w", err)
		}

		logger.Info("License renewed", map[string]interface{}{
			"license_id": meta.LicenseID,
			"user_email": userEmail,
		})
		return &Renewal{LicenseID: meta.LicenseID, Message: "License extended successfully"}, nil
	}

	daysSinceExpiry := int(now.Sub(*license.ExpiresAt) / (24 * time.Hour))
	extensionDays := daysSinceExpiry + int(LicenseValidity/(24*time.Hour))

	if _, err := s.licenses.ExtendLicense(ctx, meta.LicenseID, time.Duration(extensionDays)*24*time.Hour); err != nil {
		return nil, fmt.Errorf("failed to extend license: %w", err)
	}

	logger.Info("Expired license extended", map[string]interface{}{
		"license_id":        meta.LicenseID,
		"user_email":        userEmail,
		"days_since_expiry": daysSinceExpiry,
		"extension_days":    extensionDays,
	})
	return &Renewal{
		LicenseID: meta.LicenseID,
		Message:   fmt.Sprintf("License extended by %d days from expiry", extensionDays),
	}, nil
}
