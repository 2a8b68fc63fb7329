package email

import (
	"bytes"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// buildMessage renders msg as RFC 5322 bytes. Plain only mail is a single
// text/plain part, otherwise multipart/alternative with text then HTML.
func buildMessage(from Sender, msg Message, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: from.Name, Address: from.Address}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	if msg.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: msg.ReplyTo}})
	}
	h.SetSubject(msg.Subject)

	var buf bytes.Buffer

	if msg.HTML == "" {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, msg.Text); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	iw, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		var ph mail.InlineHeader
		ph.SetContentType(p.contentType, map[string]string{"charset": "utf-8"})
		w, err := iw.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, p.body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}

	if err := iw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
