package checkout

import "strings"

// ExemptDomains are consumer mailbox providers. Buyers on these domains may
// purchase for any organization.
var ExemptDomains = map[string]bool{
	"gmail.com":   true,
	"outlook.com": true,
	"hotmail.com": true,
	"yahoo.com":   true,
}

// EmailDomain returns the lower-cased part after the first '@', or "".
func EmailDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// CheckDomains requires the user and organization emails to share a domain
// unless either side is an exempt consumer domain.
func CheckDomains(organizationEmail, userEmail string) error {
	orgDomain := EmailDomain(organizationEmail)
	userDomain := EmailDomain(userEmail)

	if orgDomain == userDomain || ExemptDomains[orgDomain] || ExemptDomains[userDomain] {
		return nil
	}

	return &DomainMismatchError{UserDomain: userDomain, OrganizationDomain: orgDomain}
}

// OrganizationName is the upper-cased first label of the domain,
// "acme.co.uk" -> "ACME".
func OrganizationName(domain string) string {
	return strings.ToUpper(strings.Split(domain, ".")[0])
}
