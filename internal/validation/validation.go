// Package validation checks lead form input before anything is sent or stored.
package validation

import (
	"regexp"
	"unicode/utf8"
)

const (
	MaxNameLength    = 100
	MaxMessageLength = 2000
)

const (
	MsgAllFieldsRequired = "All fields are required"
	MsgNameTooLong       = "Name must be less than 100 characters"
	MsgInvalidEmail      = "Please enter a valid email address"
	MsgInvalidPhone      = "Please enter a valid phone number (6-20 digits)"
	MsgMessageTooLong    = "Message must be less than 2000 characters"
	MsgInvalidSubscriber = "Please provide a valid email address"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9+\-\(\) ]{6,20}$`)
)

// Error is a user-facing validation failure.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func fail(msg string) error {
	return &Error{Message: msg}
}

// ValidEmail reports whether email has the shape local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateContact checks a contact submission. Rules run in order and the
// first failure is returned.
func ValidateContact(name, email, phone, message string) error {
	if name == "" || email == "" || phone == "" || message == "" {
		return fail(MsgAllFieldsRequired)
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return fail(MsgNameTooLong)
	}

	if !ValidEmail(email) {
		return fail(MsgInvalidEmail)
	}

	if !phonePattern.MatchString(phone) {
		return fail(MsgInvalidPhone)
	}

	if utf8.RuneCountInString(message) > MaxMessageLength {
		return fail(MsgMessageTooLong)
	}

	return nil
}

func ValidateSubscriberEmail(email string) error {
	if email == "" || !ValidEmail(email) {
		return fail(MsgInvalidSubscriber)
	}
	return nil
}
