package models

import "time"

const (
	LicenseTypeNodeLocked = "node-locked"
	RoleUser              = "user"
)

// MessageActiveLicense is returned when a checkout should not proceed.
const MessageActiveLicense = "This user already has an active license. Please contact support."

type LicenseQuery struct {
	UserEmail string `json:"userEmail"`
}

type LicenseLookupResult struct {
	HasActiveLicense bool   `json:"hasActiveLicense"`
	Message          string `json:"message,omitempty"`
}

type License struct {
	ID               string     `json:"id"`
	Key              string     `json:"key"`
	Type             string     `json:"type,omitempty"`
	Validity         int64      `json:"validity,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	Revoked          bool       `json:"revoked,omitempty"`
	Suspended        bool       `json:"suspended,omitempty"`
	ProductID        string     `json:"productId,omitempty"`
	ProductVersionID string     `json:"productVersionId,omitempty"`
	UserID           string     `json:"userId,omitempty"`
}

// Expired reports whether the license expired before t.
func (l *License) Expired(t time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(t)
}

type Organization struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Domain       string `json:"domain,omitempty"`
	AllowedUsers int    `json:"allowedUsers,omitempty"`
	Description  string `json:"description,omitempty"`
}

type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Role           string `json:"role,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

type MetadataEntry struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Visible bool   `json:"visible"`
}
