package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// smtpClient is the part of *smtp.Client the transport uses once the
// connection is upgraded.
type smtpClient interface {
	Auth(a sasl.Client) error
	SendMail(from string, to []string, r io.Reader) error
	Quit() error
	Close() error
}

// SMTPTransport sends through a relay using STARTTLS and AUTH PLAIN.
type SMTPTransport struct {
	host     string
	port     int
	username string
	password string

	// rootCAs verifies the relay certificate; nil uses the system pool.
	rootCAs *x509.CertPool

	dial func(addr string, config *tls.Config) (smtpClient, error)
	now  func() time.Time
}

func NewSMTPTransport(host string, port int, username, password string) *SMTPTransport {
	return &SMTPTransport{
		host:     host,
		port:     port,
		username: username,
		password: password,
		dial: func(addr string, config *tls.Config) (smtpClient, error) {
			c, err := smtp.DialStartTLS(addr, config)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		now: time.Now,
	}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Deliver(ctx context.Context, from Sender, msg Message) error {
	if t.username == "" || t.password == "" {
		return configError(msgCredentialsMissing)
	}

	body, err := buildMessage(from, msg, t.now())
	if err != nil {
		return sendError(err)
	}

	addr := net.JoinHostPort(t.host, strconv.Itoa(t.port))
	c, err := t.dial(addr, &tls.Config{ServerName: t.host, RootCAs: t.rootCAs})
	if err != nil {
		return sendError(err)
	}
	defer c.Close()

	if err := c.Auth(sasl.NewPlainClient("", t.username, t.password)); err != nil {
		return authError(err)
	}

	if err := c.SendMail(from.Address, []string{msg.To}, bytes.NewReader(body)); err != nil {
		return sendError(err)
	}

	if err := c.Quit(); err != nil {
		return sendError(err)
	}
	return nil
}

func isAppPasswordRequired(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Application-specific password required")
}
