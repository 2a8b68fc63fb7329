package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"nimble.viom.tech/site/internal/config"
	"nimble.viom.tech/site/internal/logger"
	"nimble.viom.tech/site/internal/metrics"
)

type Message struct {
	To      string
	Subject string
	Text    string
	// HTML is optional. When set the message is multipart/alternative.
	HTML    string
	ReplyTo string
	// Kind labels the message in logs and metrics, e.g. "contact".
	Kind string
}

type Sender struct {
	Name    string
	Address string
}

func (s Sender) String() string {
	return (&mail.Address{Name: s.Name, Address: s.Address}).String()
}

// Transport delivers a rendered message. Implementations return *Error.
type Transport interface {
	Deliver(ctx context.Context, from Sender, msg Message) error
	Name() string
}

type Mailer struct {
	transport Transport
	from      Sender
}

func NewMailer(transport Transport, from Sender) *Mailer {
	return &Mailer{transport: transport, from: from}
}

// New builds the mailer selected by MAIL_TRANSPORT.
func New(cfg *config.Config) (*Mailer, error) {
	var transport Transport
	switch cfg.MailTransport {
	case "smtp", "":
		transport = NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUsername, cfg.EmailPassword)
	case "postmark":
		transport = NewPostmarkTransport(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	case "log":
		transport = LogTransport{}
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}

	if cfg.EmailFrom == "" && cfg.EmailUsername != "" {
		logger.Warn("EMAIL_FROM not set, using EMAIL_USERNAME as sender")
	}

	return NewMailer(transport, Sender{Name: cfg.EmailFromName, Address: cfg.SenderAddress()}), nil
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	fields := map[string]interface{}{
		"transport": m.transport.Name(),
		"kind":      msg.Kind,
		"to":        msg.To,
		"subject":   msg.Subject,
	}

	var err error
	if m.from.Address == "" {
		err = configError(msgCredentialsMissing)
	} else {
		err = m.transport.Deliver(ctx, m.from, msg)
	}

	if err != nil {
		fields["error"] = err.Error()
		logger.Error("Email send failed", fields)
		metrics.MailSends.WithLabelValues(msg.Kind, outcome(err)).Inc()
		return err
	}

	logger.Info("Email sent", fields)
	metrics.MailSends.WithLabelValues(msg.Kind, "sent").Inc()
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrAuthentication):
		return "auth_failed"
	default:
		return "failed"
	}
}
