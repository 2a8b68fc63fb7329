package models

// Customer is a billing customer keyed by organization email.
type Customer struct {
	ID                 string
	Email              string
	Name               string
	OrganizationDomain string
}
