package usecase

import (
	"context"
	"errors"
	"fmt"

	integrationdomain "tradework-backend/internal/integration/domain"
	integrationrepo "tradework-backend/internal/integration/repository"
	"tradework-backend/internal/mail/domain"
	"tradework-backend/pkg/gmailconn"
	"tradework-backend/pkg/smtpmail"
	"tradework-backend/pkg/vault"
)

// outlookSendAPI is the slice of the Outlook client the sender needs.
type outlookSendAPI interface {
	SendMail(ctx context.Context, accessToken string, msg *domain.OutgoingMessage) error
}

// outlookTokenSource hands out a currently-valid access token, refreshing
// behind the scenes when needed.
type outlookTokenSource interface {
	ValidAccessToken(ctx context.Context, userID string) (string, error)
}

// gmailSendAPI is the slice of the connection broker client the sender needs.
type gmailSendAPI interface {
	AccessToken(ctx context.Context, userID string) (string, error)
	SendRaw(ctx context.Context, accessToken, fromEmail string, msg *domain.OutgoingMessage) (string, error)
}

// smtpSender delivers through the user's own SMTP server using stored,
// vault-encrypted credentials.
type smtpSender struct {
	integrations integrationrepo.IntegrationRepository
	vault        *vault.Vault

	// send is swapped out in tests.
	send func(ctx context.Context, cfg smtpmail.Settings, msg *domain.OutgoingMessage) error
}

// NewSMTPSender builds the SMTP channel over the integration store.
func NewSMTPSender(integrations integrationrepo.IntegrationRepository, v *vault.Vault) domain.Sender {
	return &smtpSender{integrations: integrations, vault: v, send: smtpmail.Send}
}

func (s *smtpSender) Channel() domain.Channel {
	return domain.ChannelSMTP
}

func (s *smtpSender) Send(ctx context.Context, userID string, msg *domain.OutgoingMessage) (*domain.SendResult, error) {
	integration, err := s.integrations.FindByUserAndProvider(ctx, userID, integrationdomain.ProviderSMTP)
	if err != nil {
		return nil, domain.NewChannelError(domain.ChannelSMTP, "", fmt.Errorf("failed to load smtp integration: %w", err))
	}
	if !integration.Connected() || integration.SMTPHost == "" {
		return nil, domain.ErrChannelUnavailable
	}

	fromEmail := integration.ConnectedEmail
	if fromEmail == "" {
		fromEmail = integration.SMTPUsername
	}
	fromName := msg.FromName
	if fromName == "" {
		fromName = integration.DisplayName
	}
	cfg := smtpmail.Settings{
		Host:      integration.SMTPHost,
		Port:      integration.SMTPPort,
		Username:  integration.SMTPUsername,
		Password:  s.vault.Decrypt(integration.SMTPPassword),
		Secure:    integration.SMTPSecure,
		FromName:  fromName,
		FromEmail: fromEmail,
	}

	if err := s.send(ctx, cfg, msg); err != nil {
		if smtpmail.IsAuthError(err) {
			return nil, domain.NewAuthChannelError(domain.ChannelSMTP, integration.ID, err)
		}
		return nil, domain.NewChannelError(domain.ChannelSMTP, integration.ID, err)
	}
	return &domain.SendResult{IntegrationID: integration.ID}, nil
}

// outlookSender delivers through Microsoft Graph with the user's OAuth
// grant. Token freshness is the token source's problem.
type outlookSender struct {
	integrations integrationrepo.IntegrationRepository
	tokens       outlookTokenSource
	client       outlookSendAPI
}

// NewOutlookSender builds the Outlook channel.
func NewOutlookSender(integrations integrationrepo.IntegrationRepository, tokens outlookTokenSource, client outlookSendAPI) domain.Sender {
	return &outlookSender{integrations: integrations, tokens: tokens, client: client}
}

func (s *outlookSender) Channel() domain.Channel {
	return domain.ChannelOutlook
}

func (s *outlookSender) Send(ctx context.Context, userID string, msg *domain.OutgoingMessage) (*domain.SendResult, error) {
	token, err := s.tokens.ValidAccessToken(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, integrationdomain.ErrNotConnected):
			return nil, domain.ErrChannelUnavailable
		case errors.Is(err, integrationdomain.ErrReauthRequired):
			// The token manager already disconnected the integration, so
			// this is reported as a plain failure to avoid a second write.
			return nil, domain.NewChannelError(domain.ChannelOutlook, "", err)
		default:
			return nil, domain.NewChannelError(domain.ChannelOutlook, "", err)
		}
	}

	integration, err := s.integrations.FindByUserAndProvider(ctx, userID, integrationdomain.ProviderOutlook)
	if err != nil {
		return nil, domain.NewChannelError(domain.ChannelOutlook, "", fmt.Errorf("failed to load outlook integration: %w", err))
	}
	integrationID := ""
	if integration != nil {
		integrationID = integration.ID
	}

	if err := s.client.SendMail(ctx, token, msg); err != nil {
		return nil, domain.NewChannelError(domain.ChannelOutlook, integrationID, err)
	}
	// Graph's sendMail endpoint returns 202 with no message id.
	return &domain.SendResult{IntegrationID: integrationID}, nil
}

// gmailSender delivers through the managed Gmail connection broker. The
// sender address is fixed to the connected account; custom display names
// are not supported on this channel.
type gmailSender struct {
	integrations integrationrepo.IntegrationRepository
	broker       gmailSendAPI
}

// NewGmailSender builds the Gmail channel over the broker client.
func NewGmailSender(integrations integrationrepo.IntegrationRepository, broker gmailSendAPI) domain.Sender {
	return &gmailSender{integrations: integrations, broker: broker}
}

func (s *gmailSender) Channel() domain.Channel {
	return domain.ChannelGmail
}

func (s *gmailSender) Send(ctx context.Context, userID string, msg *domain.OutgoingMessage) (*domain.SendResult, error) {
	integration, err := s.integrations.FindByUserAndProvider(ctx, userID, integrationdomain.ProviderGmail)
	if err != nil {
		return nil, domain.NewChannelError(domain.ChannelGmail, "", fmt.Errorf("failed to load gmail integration: %w", err))
	}
	if !integration.Connected() {
		return nil, domain.ErrChannelUnavailable
	}

	token, err := s.broker.AccessToken(ctx, userID)
	if err != nil {
		// Only a revoked grant is an auth failure; a broker outage must
		// not flip the integration into an error state.
		if errors.Is(err, gmailconn.ErrGrantRevoked) {
			return nil, domain.NewAuthChannelError(domain.ChannelGmail, integration.ID, err)
		}
		return nil, domain.NewChannelError(domain.ChannelGmail, integration.ID, err)
	}

	id, err := s.broker.SendRaw(ctx, token, integration.ConnectedEmail, msg)
	if err != nil {
		return nil, domain.NewChannelError(domain.ChannelGmail, integration.ID, err)
	}
	return &domain.SendResult{MessageID: id, IntegrationID: integration.ID}, nil
}
