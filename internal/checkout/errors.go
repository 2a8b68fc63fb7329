package checkout

import "fmt"

// Error is a checkout failure reported back to the caller as-is.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type DomainMismatchError struct {
	UserDomain         string
	OrganizationDomain string
}

func (e *DomainMismatchError) Error() string {
	return fmt.Sprintf("User email domain (%s) must match organization domain (%s)", e.UserDomain, e.OrganizationDomain)
}

type UnknownVersionError struct {
	VersionID string
}

func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("No matching Stripe price for version ID: %s", e.VersionID)
}
