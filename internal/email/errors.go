package email

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured  = errors.New("email sending is not configured")
	ErrAuthentication = errors.New("email authentication failed")
	ErrSendFailed     = errors.New("failed to send email")
)

const (
	msgCredentialsMissing = "Email credentials not configured. Please set EMAIL_USERNAME and EMAIL_PASSWORD environment variables."
	msgAppPassword        = "You need to use an App Password for your Gmail account. Go to your Google Account → Security → App Passwords to create one."

	// Messages shown to site visitors.
	UserMessageNotConfigured = "Email sending is not configured"
	UserMessageSendFailed    = "Failed to send your message. Please try again later."
)

// Error carries the failure kind and the detail that is logged.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configError(detail string) error {
	return &Error{Kind: ErrNotConfigured, Detail: detail}
}

func authError(err error) error {
	detail := "Email authentication failed. "
	if isAppPasswordRequired(err) {
		detail += msgAppPassword
	} else {
		detail += fmt.Sprintf("Please check your email credentials. Error: %v", err)
	}
	return &Error{Kind: ErrAuthentication, Detail: detail, Err: err}
}

func sendError(err error) error {
	return &Error{Kind: ErrSendFailed, Detail: fmt.Sprintf("Failed to send email: %v", err), Err: err}
}

// UserMessage converts a send failure into text safe to show a visitor.
func UserMessage(err error) string {
	if errors.Is(err, ErrNotConfigured) {
		return UserMessageNotConfigured
	}
	return UserMessageSendFailed
}
