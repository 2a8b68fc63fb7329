// Package leads runs the contact and newsletter form workflows.
package leads

import (
	"context"
	"errors"
	"fmt"

	"nimble.viom.tech/site/internal/email"
	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/metrics"
	"nimble.viom.tech/site/internal/validation"
	"nimble.viom.tech/site/models"
	"nimble.viom.tech/site/storage"
)

const (
	SubjectContact          = "New Contact Form Submission - NIMBLE"
	SubjectWelcome          = "Thank you for subscribing to NIMBLE Newsletter"
	SubjectSubscriberNotice = "New Newsletter Subscriber"

	// PublicContact is the address printed in subscriber mail.
	PublicContact = "nimble@viom.tech"
)

var ErrSaveFailed = errors.New("Failed to save your subscription")

// MessageSender delivers one composed message.
type MessageSender interface {
	Send(ctx context.Context, msg email.Message) error
}

// UserMessage maps a workflow error to the text shown on the site.
func UserMessage(err error) string {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrSaveFailed):
		return ErrSaveFailed.Error()
	default:
		return email.UserMessage(err)
	}
}

type Contact struct {
	mail      MessageSender
	recipient string
}

func NewContact(mail MessageSender, recipient string) *Contact {
	return &Contact{mail: mail, recipient: recipient}
}

// Submit validates the submission and mails it to the sales inbox with
// Reply-To set to the submitter. Nothing is stored.
func (c *Contact) Submit(ctx context.Context, sub models.FormSubmission) error {
	if err := validation.ValidateContact(sub.Name, sub.Email, sub.Phone, sub.Message); err != nil {
		metrics.FormSubmissions.WithLabelValues("contact", "invalid").Inc()
		logger.Warn("Contact form validation failed", map[string]interface{}{
			"email": sub.Email,
			"error": err.Error(),
		})
		return err
	}

	text, err := renderText("contact.txt.tmpl", sub)
	if err != nil {
		return fmt.Errorf("failed to render contact text: %w", err)
	}
	html, err := renderHTML("contact.html.tmpl", sub)
	if err != nil {
		return fmt.Errorf("failed to render contact html: %w", err)
	}

	err = c.mail.Send(ctx, email.Message{
		To:      c.recipient,
		Subject: SubjectContact,
		Text:    text,
		HTML:    html,
		ReplyTo: sub.Email,
		Kind:    "contact",
	})
	if err != nil {
		metrics.FormSubmissions.WithLabelValues("contact", "error").Inc()
		return err
	}

	metrics.FormSubmissions.WithLabelValues("contact", "ok").Inc()
	logger.Info("Contact form delivered", map[string]interface{}{
		"name":  sub.Name,
		"email": sub.Email,
	})
	return nil
}

type Newsletter struct {
	store storage.SubscriberStore
	mail  MessageSender
	admin string
}

func NewNewsletter(store storage.SubscriberStore, mail MessageSender, admin string) *Newsletter {
	return &Newsletter{store: store, mail: mail, admin: admin}
}

// Subscribe validates and records the address, then sends a welcome mail and
// an admin notice. Mail failures are logged and never fail the subscription.
func (n *Newsletter) Subscribe(ctx context.Context, address string) error {
	if err := validation.ValidateSubscriberEmail(address); err != nil {
		metrics.FormSubmissions.WithLabelValues("newsletter", "invalid").Inc()
		logger.Warn("Invalid newsletter email", map[string]interface{}{
			"email": address,
		})
		return err
	}

	if err := n.store.Append(ctx, address); err != nil {
		metrics.FormSubmissions.WithLabelValues("newsletter", "error").Inc()
		logger.Error("Failed to save subscriber", map[string]interface{}{
			"email": address,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	metrics.FormSubmissions.WithLabelValues("newsletter", "ok").Inc()
	logger.Info("Subscriber saved", map[string]interface{}{
		"email": address,
	})

	n.sendWelcome(ctx, address)
	n.sendNotice(ctx, address)
	return nil
}

func (n *Newsletter) sendWelcome(ctx context.Context, address string) {
	data := struct{ Contact string }{PublicContact}

	text, err := renderText("welcome.txt.tmpl", data)
	if err == nil {
		var html string
		html, err = renderHTML("welcome.html.tmpl", data)
		if err == nil {
			err = n.mail.Send(ctx, email.Message{
				To:      address,
				Subject: SubjectWelcome,
				Text:    text,
				HTML:    html,
				Kind:    "newsletter_welcome",
			})
		}
	}
	if err != nil {
		logger.Warn("Skipped subscriber confirmation email", map[string]interface{}{
			"email": address,
			"error": err.Error(),
		})
	}
}

func (n *Newsletter) sendNotice(ctx context.Context, address string) {
	text, err := renderText("subscriber_notice.txt.tmpl", models.Subscriber{Email: address})
	if err == nil {
		err = n.mail.Send(ctx, email.Message{
			To:      n.admin,
			Subject: SubjectSubscriberNotice,
			Text:    text,
			Kind:    "newsletter_admin",
		})
	}
	if err != nil {
		logger.Warn("Skipped admin subscriber notification", map[string]interface{}{
			"email": address,
			"error": err.Error(),
		})
	}
}
