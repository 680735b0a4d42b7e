package dto

import "time"

// AttachmentRequest is a file carried on an outgoing email. Content is
// base64 on the wire and decoded by encoding/json into raw bytes.
type AttachmentRequest struct {
	Filename    string `json:"filename" binding:"required"`
	Content     []byte `json:"content" binding:"required"`
	ContentType string `json:"content_type"`
}

// SendEmailRequest is the payload for POST /mail/send.
type SendEmailRequest struct {
	To          string              `json:"to" binding:"required"`
	Subject     string              `json:"subject" binding:"required"`
	HTML        string              `json:"html" binding:"required"`
	Text        string              `json:"text"`
	FromName    string              `json:"from_name"`
	ReplyTo     string              `json:"reply_to"`
	Type        string              `json:"type"`
	RelatedID   string              `json:"related_id"`
	Attachments []AttachmentRequest `json:"attachments"`
}

// EmailResult reports the outcome of a send. Success false means every
// configured channel was tried and none delivered.
type EmailResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	SentVia   string `json:"sent_via,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DeliveryLogResponse is one row of the delivery history listing.
type DeliveryLogResponse struct {
	ID          string     `json:"id"`
	Recipient   string     `json:"recipient"`
	Subject     string     `json:"subject"`
	MessageType string     `json:"message_type"`
	RelatedID   string     `json:"related_id,omitempty"`
	Status      string     `json:"status"`
	SentVia     string     `json:"sent_via,omitempty"`
	MessageID   string     `json:"message_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
