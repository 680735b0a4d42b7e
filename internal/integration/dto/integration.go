package dto

import "time"

// ConnectSMTPRequest carries a user's SMTP submission settings.
type ConnectSMTPRequest struct {
	Host        string `json:"host" binding:"required"`
	Port        int    `json:"port" binding:"required"`
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Secure      bool   `json:"secure"`
	DisplayName string `json:"display_name"`
}

// IntegrationStatus is the per-provider connection summary shown in
// settings.
type IntegrationStatus struct {
	Provider       string     `json:"provider"`
	Status         string     `json:"status"`
	ConnectedEmail string     `json:"connected_email,omitempty"`
	DisplayName    string     `json:"display_name,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
}

// AuthURLResponse returns the provider authorization URL the client should
// open in a browser.
type AuthURLResponse struct {
	URL string `json:"url"`
}
