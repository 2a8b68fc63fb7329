package email

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Postmark error code for a bad or missing server token.
const postmarkInvalidToken = 10

type PostmarkTransport struct {
	client      *postmark.Client
	serverToken string
}

func NewPostmarkTransport(serverToken, accountToken string) *PostmarkTransport {
	return &PostmarkTransport{
		client:      postmark.NewClient(serverToken, accountToken),
		serverToken: serverToken,
	}
}

func (t *PostmarkTransport) Name() string { return "postmark" }

func (t *PostmarkTransport) Deliver(ctx context.Context, from Sender, msg Message) error {
	if t.serverToken == "" {
		return configError("Email credentials not configured. Please set POSTMARK_SERVER_TOKEN.")
	}

	resp, err := t.client.SendEmail(ctx, postmark.Email{
		From:     from.String(),
		To:       msg.To,
		ReplyTo:  msg.ReplyTo,
		Subject:  msg.Subject,
		Tag:      msg.Kind,
		TextBody: msg.Text,
		HTMLBody: msg.HTML,
	})
	if err != nil {
		return sendError(err)
	}

	if resp.ErrorCode == postmarkInvalidToken {
		return authError(fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	if resp.ErrorCode > 0 {
		return sendError(fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}

	return nil
}
