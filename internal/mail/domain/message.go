package domain

import "context"

// Channel identifies one delivery channel in the send cascade.
type Channel string

const (
	ChannelSMTP     Channel = "smtp"
	ChannelOutlook  Channel = "outlook"
	ChannelPostmark Channel = "postmark"
	ChannelGmail    Channel = "gmail"
)

// Attachment is a binary file included with an outgoing message.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     []byte `json:"content"`
	ContentType string `json:"content_type"`
}

// OutgoingMessage is a fully-rendered message ready for any sender.
// Rendering (templates, entity lookups) happens upstream; by the time a
// message reaches a sender it is just recipient, subject, and bodies.
type OutgoingMessage struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	FromName    string
	ReplyTo     string
	Attachments []Attachment
}

// SendResult is returned by a sender after a successful delivery.
// IntegrationID is set when a per-user integration carried the message.
type SendResult struct {
	MessageID     string
	IntegrationID string
}

// Sender is the uniform attempt-to-send contract implemented by every
// channel. The orchestrator tries senders in priority order and stops at
// the first success. A sender with no usable connection for the user
// returns ErrChannelUnavailable so the cascade moves on quietly.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, userID string, msg *OutgoingMessage) (*SendResult, error)
}

// ChannelError carries a failed attempt's channel plus the side effect the
// orchestrator should apply. Senders never write integration state
// themselves; an auth-class failure is reported here and the orchestrator
// marks the integration centrally.
type ChannelError struct {
	Channel       Channel
	IntegrationID string
	Auth          bool
	Err           error
}

func (e *ChannelError) Error() string {
	return string(e.Channel) + ": " + e.Err.Error()
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// NewChannelError wraps err as a transient channel failure.
func NewChannelError(ch Channel, integrationID string, err error) *ChannelError {
	return &ChannelError{Channel: ch, IntegrationID: integrationID, Err: err}
}

// NewAuthChannelError wraps err as an authentication failure. The
// orchestrator reacts by marking the channel's integration as errored.
func NewAuthChannelError(ch Channel, integrationID string, err error) *ChannelError {
	return &ChannelError{Channel: ch, IntegrationID: integrationID, Auth: true, Err: err}
}
