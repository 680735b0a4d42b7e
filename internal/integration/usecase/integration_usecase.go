package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tradework-backend/internal/integration/domain"
	"tradework-backend/internal/integration/dto"
	"tradework-backend/internal/integration/repository"
	"tradework-backend/pkg/gmailconn"
	"tradework-backend/pkg/oauthstate"
	"tradework-backend/pkg/outlook"
	"tradework-backend/pkg/smtpmail"
	"tradework-backend/pkg/vault"
)

// outlookOAuthAPI is the slice of the Outlook client the connect flow uses.
type outlookOAuthAPI interface {
	Configured() bool
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*outlook.TokenResponse, error)
	ProfileEmail(ctx context.Context, accessToken string) (string, error)
}

// gmailBrokerAPI is the slice of the connector client the connect flow uses.
type gmailBrokerAPI interface {
	Configured() bool
	ConnectURL(userID, state, redirectURI string) string
	Connection(ctx context.Context, userID string) (*gmailconn.Connection, error)
	Disconnect(ctx context.Context, userID string) error
}

// integrationUsecase implements IntegrationUsecase.
type integrationUsecase struct {
	repo          repository.IntegrationRepository
	vault         *vault.Vault
	state         *oauthstate.Manager
	outlook       outlookOAuthAPI
	gmail         gmailBrokerAPI
	gmailRedirect string
	logger        *slog.Logger

	// Injectable for tests; defaults to smtpmail.Verify.
	verifySMTP func(ctx context.Context, cfg smtpmail.Settings) error
}

// NewIntegrationUsecase creates a new instance of integrationUsecase.
func NewIntegrationUsecase(
	repo repository.IntegrationRepository,
	v *vault.Vault,
	state *oauthstate.Manager,
	outlookClient outlookOAuthAPI,
	gmailClient gmailBrokerAPI,
	gmailRedirectURI string,
	logger *slog.Logger,
) IntegrationUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &integrationUsecase{
		repo:          repo,
		vault:         v,
		state:         state,
		outlook:       outlookClient,
		gmail:         gmailClient,
		gmailRedirect: gmailRedirectURI,
		logger:        logger,
		verifySMTP:    smtpmail.Verify,
	}
}

func (u *integrationUsecase) Status(ctx context.Context, userID string) ([]dto.IntegrationStatus, error) {
	integrations, err := u.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load integrations: %w", err)
	}

	byProvider := make(map[string]*domain.EmailIntegration, len(integrations))
	for i := range integrations {
		byProvider[integrations[i].Provider] = &integrations[i]
	}

	providers := []string{domain.ProviderSMTP, domain.ProviderOutlook, domain.ProviderGmail}
	statuses := make([]dto.IntegrationStatus, 0, len(providers))
	for _, provider := range providers {
		status := dto.IntegrationStatus{Provider: provider, Status: domain.StatusDisconnected}
		if integration, ok := byProvider[provider]; ok {
			status.Status = integration.Status
			status.ConnectedEmail = integration.ConnectedEmail
			status.DisplayName = integration.DisplayName
			status.LastError = integration.LastError
			status.LastUsedAt = integration.LastUsedAt
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (u *integrationUsecase) ConnectSMTP(ctx context.Context, userID string, req *dto.ConnectSMTPRequest) error {
	settings := smtpmail.Settings{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		Secure:   req.Secure,
	}
	if err := u.verifySMTP(ctx, settings); err != nil {
		return fmt.Errorf("smtp verification failed: %w", err)
	}

	integration, err := u.repo.FindByUserAndProvider(ctx, userID, domain.ProviderSMTP)
	if err != nil {
		return fmt.Errorf("failed to load smtp integration: %w", err)
	}
	if integration == nil {
		integration = &domain.EmailIntegration{UserID: userID, Provider: domain.ProviderSMTP}
	}

	integration.Status = domain.StatusConnected
	integration.SMTPHost = req.Host
	integration.SMTPPort = req.Port
	integration.SMTPUsername = req.Username
	integration.SMTPPassword = u.vault.Encrypt(req.Password)
	integration.SMTPSecure = req.Secure
	integration.ConnectedEmail = req.Username
	integration.DisplayName = req.DisplayName
	integration.LastError = ""

	if err := u.repo.Upsert(ctx, integration); err != nil {
		return fmt.Errorf("failed to save smtp integration: %w", err)
	}
	u.logger.Info("smtp integration connected", "user_id", userID, "host", req.Host)
	return nil
}

func (u *integrationUsecase) DisconnectSMTP(ctx context.Context, userID string) error {
	return u.disconnect(ctx, userID, domain.ProviderSMTP, map[string]any{
		"status":        domain.StatusDisconnected,
		"smtp_password": "",
	})
}

func (u *integrationUsecase) OutlookAuthURL(userID string) (string, error) {
	if !u.outlook.Configured() {
		return "", errors.New("outlook integration is not configured")
	}
	state, err := u.state.Issue(userID)
	if err != nil {
		return "", err
	}
	return u.outlook.AuthCodeURL(state), nil
}

func (u *integrationUsecase) HandleOutlookCallback(ctx context.Context, code, state string) error {
	userID, ok := u.state.Validate(state)
	if !ok {
		return domain.ErrStateInvalid
	}

	token, err := u.outlook.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}

	// Profile email is best-effort metadata; a failure here must not
	// abort the connect.
	connectedEmail, err := u.outlook.ProfileEmail(ctx, token.AccessToken)
	if err != nil {
		u.logger.Warn("failed to fetch outlook profile email", "user_id", userID, "error", err)
		connectedEmail = ""
	}

	integration, err := u.repo.FindByUserAndProvider(ctx, userID, domain.ProviderOutlook)
	if err != nil {
		return fmt.Errorf("failed to load outlook integration: %w", err)
	}
	if integration == nil {
		integration = &domain.EmailIntegration{UserID: userID, Provider: domain.ProviderOutlook}
	}

	expiry := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	integration.Status = domain.StatusConnected
	integration.AccessToken = u.vault.Encrypt(token.AccessToken)
	integration.RefreshToken = u.vault.Encrypt(token.RefreshToken)
	integration.TokenExpiry = &expiry
	integration.ConnectedEmail = connectedEmail
	integration.LastError = ""

	if err := u.repo.Upsert(ctx, integration); err != nil {
		return fmt.Errorf("failed to save outlook integration: %w", err)
	}
	u.logger.Info("outlook integration connected", "user_id", userID, "email", connectedEmail)
	return nil
}

func (u *integrationUsecase) DisconnectOutlook(ctx context.Context, userID string) error {
	return u.disconnect(ctx, userID, domain.ProviderOutlook, map[string]any{
		"status":          domain.StatusDisconnected,
		"access_token":    "",
		"refresh_token":   "",
		"connected_email": "",
	})
}

func (u *integrationUsecase) GmailConnectURL(userID string) (string, error) {
	if !u.gmail.Configured() {
		return "", errors.New("gmail connector is not configured")
	}
	state, err := u.state.Issue(userID)
	if err != nil {
		return "", err
	}
	return u.gmail.ConnectURL(userID, state, u.gmailRedirect), nil
}

func (u *integrationUsecase) HandleGmailCallback(ctx context.Context, state string) error {
	userID, ok := u.state.Validate(state)
	if !ok {
		return domain.ErrStateInvalid
	}

	conn, err := u.gmail.Connection(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to confirm broker connection: %w", err)
	}
	if !conn.Connected {
		return errors.New("broker reports no active gmail connection")
	}

	integration, err := u.repo.FindByUserAndProvider(ctx, userID, domain.ProviderGmail)
	if err != nil {
		return fmt.Errorf("failed to load gmail integration: %w", err)
	}
	if integration == nil {
		integration = &domain.EmailIntegration{UserID: userID, Provider: domain.ProviderGmail}
	}

	integration.Status = domain.StatusConnected
	integration.ConnectedEmail = conn.Email
	integration.LastError = ""

	if err := u.repo.Upsert(ctx, integration); err != nil {
		return fmt.Errorf("failed to save gmail integration: %w", err)
	}
	u.logger.Info("gmail connector integration connected", "user_id", userID, "email", conn.Email)
	return nil
}

func (u *integrationUsecase) DisconnectGmail(ctx context.Context, userID string) error {
	if u.gmail.Configured() {
		if err := u.gmail.Disconnect(ctx, userID); err != nil {
			u.logger.Warn("broker disconnect failed", "user_id", userID, "error", err)
		}
	}
	return u.disconnect(ctx, userID, domain.ProviderGmail, map[string]any{
		"status":          domain.StatusDisconnected,
		"connected_email": "",
	})
}

// disconnect nulls secrets and marks the row disconnected. Idempotent:
// a missing row is already disconnected.
func (u *integrationUsecase) disconnect(ctx context.Context, userID, provider string, fields map[string]any) error {
	integration, err := u.repo.FindByUserAndProvider(ctx, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to load %s integration: %w", provider, err)
	}
	if integration == nil {
		return nil
	}
	if err := u.repo.UpdateFields(ctx, integration.ID, fields); err != nil {
		return fmt.Errorf("failed to disconnect %s integration: %w", provider, err)
	}
	u.logger.Info("integration disconnected", "user_id", userID, "provider", provider)
	return nil
}
