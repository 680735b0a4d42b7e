package domain

import "time"

// Email sending providers a user can connect.
const (
	ProviderSMTP    = "smtp"
	ProviderOutlook = "outlook"
	ProviderGmail   = "gmail"
)

// Integration statuses.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

// EmailIntegration is a user's stored connection to one sending channel:
// SMTP credentials or an OAuth grant. One row per (user, provider).
// Disconnecting nulls the secrets but keeps the row for audit.
type EmailIntegration struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"not null;uniqueIndex:idx_email_integrations_user_provider,priority:1"`
	Provider string `json:"provider" gorm:"not null;uniqueIndex:idx_email_integrations_user_provider,priority:2"`
	Status   string `json:"status" gorm:"not null;default:disconnected"`

	// SMTP settings. Password is encrypted by the vault before storage.
	SMTPHost     string `json:"smtp_host,omitempty"`
	SMTPPort     int    `json:"smtp_port,omitempty"`
	SMTPUsername string `json:"smtp_username,omitempty"`
	SMTPPassword string `json:"-" gorm:"type:text"`
	SMTPSecure   bool   `json:"smtp_secure,omitempty"`

	// OAuth grant. Tokens are encrypted by the vault before storage.
	AccessToken    string     `json:"-" gorm:"type:text"`
	RefreshToken   string     `json:"-" gorm:"type:text"`
	TokenExpiry    *time.Time `json:"token_expiry,omitempty"`
	ConnectedEmail string     `json:"connected_email,omitempty"`

	DisplayName string     `json:"display_name,omitempty"`
	LastError   string     `json:"last_error,omitempty" gorm:"type:text"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (EmailIntegration) TableName() string {
	return "email_integrations"
}

// Connected reports whether this integration is usable for sending.
func (i *EmailIntegration) Connected() bool {
	return i != nil && i.Status == StatusConnected
}
