package usecase

import (
	"context"

	"tradework-backend/internal/integration/dto"
)

// IntegrationUsecase manages a user's email sending connections.
type IntegrationUsecase interface {
	Status(ctx context.Context, userID string) ([]dto.IntegrationStatus, error)

	// ConnectSMTP verifies the credentials against the server before
	// saving them, so a typo'd password fails at setup time.
	ConnectSMTP(ctx context.Context, userID string, req *dto.ConnectSMTPRequest) error
	DisconnectSMTP(ctx context.Context, userID string) error

	OutlookAuthURL(userID string) (string, error)
	HandleOutlookCallback(ctx context.Context, code, state string) error
	DisconnectOutlook(ctx context.Context, userID string) error

	GmailConnectURL(userID string) (string, error)
	HandleGmailCallback(ctx context.Context, state string) error
	DisconnectGmail(ctx context.Context, userID string) error
}
