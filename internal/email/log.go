package email

import (
	"context"

	"nimble.viom.tech/site/internal/logger"
)

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct{}

func (LogTransport) Name() string { return "log" }

func (LogTransport) Deliver(ctx context.Context, from Sender, msg Message) error {
	logger.Info("Email delivery skipped (log transport)", map[string]interface{}{
		"from":     from.String(),
		"to":       msg.To,
		"reply_to": msg.ReplyTo,
		"subject":  msg.Subject,
		"text":     msg.Text,
		"has_html": msg.HTML != "",
	})
	return nil
}
