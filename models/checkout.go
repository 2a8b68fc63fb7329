package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Stripe metadata keys.
const (
	MetaProductID         = "productId"
	MetaProductVersionID  = "productVersionId"
	MetaUserEmail         = "userEmail"
	MetaOrganizationEmail = "organizationEmail"
	MetaFirstName         = "firstName"
	MetaLastName          = "lastName"

	SubMetaUserInfo          = "User Info"
	SubMetaProductID         = "Product ID"
	SubMetaOrganizationEmail = "Organization Email"
	SubMetaLicenseID         = "License ID"

	// written by the previous fulfilment worker
	legacySubMetaLicenseID = "licenseId"
)

type CheckoutRequest struct {
	OrganizationEmail string `json:"organizationEmail" validate:"required,contains=@"`
	UserEmail         string `json:"userEmail" validate:"required,contains=@"`
	FirstName         string `json:"firstName" validate:"required"`
	LastName          string `json:"lastName" validate:"required"`
	ProductID         string `json:"productId" validate:"required"`
	ProductVersionID  string `json:"productVersionId" validate:"required"`
}

// CheckoutMetadata is attached to the checkout session and read back by
// fulfilment.
type CheckoutMetadata struct {
	ProductID         string
	ProductVersionID  string
	UserEmail         string
	OrganizationEmail string
	FirstName         string
	LastName          string
}

func NewCheckoutMetadata(req CheckoutRequest) CheckoutMetadata {
	return CheckoutMetadata{
		ProductID:         req.ProductID,
		ProductVersionID:  req.ProductVersionID,
		UserEmail:         req.UserEmail,
		OrganizationEmail: req.OrganizationEmail,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
	}
}

func (m CheckoutMetadata) Map() map[string]string {
	return map[string]string{
		MetaProductID:         m.ProductID,
		MetaProductVersionID:  m.ProductVersionID,
		MetaUserEmail:         m.UserEmail,
		MetaOrganizationEmail: m.OrganizationEmail,
		MetaFirstName:         m.FirstName,
		MetaLastName:          m.LastName,
	}
}

func ParseCheckoutMetadata(m map[string]string) CheckoutMetadata {
	return CheckoutMetadata{
		ProductID:         m[MetaProductID],
		ProductVersionID:  m[MetaProductVersionID],
		UserEmail:         m[MetaUserEmail],
		OrganizationEmail: m[MetaOrganizationEmail],
		FirstName:         m[MetaFirstName],
		LastName:          m[MetaLastName],
	}
}

// Missing lists the metadata keys fulfilment cannot work without.
func (m CheckoutMetadata) Missing() []string {
	var missing []string
	for _, f := range []struct{ key, value string }{
		{MetaOrganizationEmail, m.OrganizationEmail},
		{MetaUserEmail, m.UserEmail},
		{MetaProductID, m.ProductID},
		{MetaProductVersionID, m.ProductVersionID},
	} {
		if f.value == "" {
			missing = append(missing, f.key)
		}
	}
	return missing
}

func (m CheckoutMetadata) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// SubscriptionMetadata is attached to the Stripe subscription.
type SubscriptionMetadata struct {
	UserInfo          string
	ProductID         string
	OrganizationEmail string
	LicenseID         string
}

// UserInfo formats "First Last (email)".
func UserInfo(firstName, lastName, email string) string {
	return fmt.Sprintf("%s %s (%s)", firstName, lastName, email)
}

func (m SubscriptionMetadata) Map() map[string]string {
	out := map[string]string{
		SubMetaUserInfo:          m.UserInfo,
		SubMetaProductID:         m.ProductID,
		SubMetaOrganizationEmail: m.OrganizationEmail,
	}
	if m.LicenseID != "" {
		out[SubMetaLicenseID] = m.LicenseID
	}
	return out
}

func ParseSubscriptionMetadata(m map[string]string) SubscriptionMetadata {
	licenseID := m[SubMetaLicenseID]
	if licenseID == "" {
		licenseID = m[legacySubMetaLicenseID]
	}
	return SubscriptionMetadata{
		UserInfo:          m[SubMetaUserInfo],
		ProductID:         m[SubMetaProductID],
		OrganizationEmail: m[SubMetaOrganizationEmail],
		LicenseID:         licenseID,
	}
}

var userInfoEmail = regexp.MustCompile(`\((.+)\)$`)

// UserEmail extracts the email from the "First Last (email)" form.
func (m SubscriptionMetadata) UserEmail() string {
	match := userInfoEmail.FindStringSubmatch(m.UserInfo)
	if match == nil {
		return ""
	}
	return match[1]
}

// Description is the subscription description shown in Stripe.
func (m SubscriptionMetadata) Description() string {
	return "Subscription for " + m.UserInfo
}
