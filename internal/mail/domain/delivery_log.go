package domain

import "time"

// MessageType classifies what business document a message carries.
type MessageType string

const (
	MessageTypeQuote       MessageType = "quote"
	MessageTypeInvoice     MessageType = "invoice"
	MessageTypeReceipt     MessageType = "receipt"
	MessageTypeReminder    MessageType = "reminder"
	MessageTypePaymentLink MessageType = "payment_link"
)

// Delivery log statuses. A log row is created pending before the first
// channel attempt and receives exactly one terminal update.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSent    = "sent"
	DeliveryStatusFailed  = "failed"
)

// DeliveryLog records one send attempt sequence (not one row per channel
// try). Owned by the orchestrator; read-only everywhere else.
type DeliveryLog struct {
	ID            string      `json:"id" gorm:"primaryKey"`
	UserID        string      `json:"user_id" gorm:"index;not null"`
	IntegrationID *string     `json:"integration_id,omitempty"`
	Recipient     string      `json:"recipient" gorm:"not null"`
	Subject       string      `json:"subject"`
	Type          MessageType `json:"type"`
	RelatedID     *string     `json:"related_id,omitempty"`
	Status        string      `json:"status" gorm:"not null;default:pending"`
	SentVia       string      `json:"sent_via,omitempty"`
	MessageID     string      `json:"message_id,omitempty"`
	ErrorMessage  string      `json:"error_message,omitempty" gorm:"type:text"`
	SentAt        *time.Time  `json:"sent_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (DeliveryLog) TableName() string {
	return "delivery_logs"
}
