// Package platformmail sends through the platform's own transactional
// email account. It is the only channel with no per-user setup, so the
// cascade can always fall back to it.
package platformmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/mrz1836/postmark"

	maildomain "tradework-backend/internal/mail/domain"
)

type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Sender delivers mail via Postmark using a server-held token.
type Sender struct {
	client      postmarkAPI
	senderEmail string
}

// New creates a Postmark-backed sender. senderEmail is the verified
// platform sender signature; per-user branding happens through the From
// display name only.
func New(serverToken, accountToken, senderEmail string) *Sender {
	return &Sender{
		client:      postmark.NewClient(serverToken, accountToken),
		senderEmail: senderEmail,
	}
}

// Configured reports whether the platform account is set up.
func (s *Sender) Configured() bool {
	return s.senderEmail != ""
}

func (s *Sender) Channel() maildomain.Channel {
	return maildomain.ChannelPostmark
}

// Send implements the sender contract for the platform fallback. The
// userID is unused: every user shares the platform account.
func (s *Sender) Send(ctx context.Context, _ string, msg *maildomain.OutgoingMessage) (*maildomain.SendResult, error) {
	if !s.Configured() {
		return nil, maildomain.ErrChannelUnavailable
	}
	from := s.senderEmail
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", msg.FromName, s.senderEmail)
	}

	email := postmark.Email{
		From:     from,
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTML,
		TextBody: msg.Text,
		ReplyTo:  msg.ReplyTo,
	}
	for _, a := range msg.Attachments {
		email.Attachments = append(email.Attachments, postmark.Attachment{
			Name:        a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: a.ContentType,
		})
	}

	resp, err := s.client.SendEmail(ctx, email)
	if err != nil {
		return nil, maildomain.NewChannelError(maildomain.ChannelPostmark, "", fmt.Errorf("postmark send failed: %w", err))
	}
	if resp.ErrorCode > 0 {
		return nil, maildomain.NewChannelError(maildomain.ChannelPostmark, "",
			fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}

	return &maildomain.SendResult{MessageID: resp.MessageID}, nil
}
