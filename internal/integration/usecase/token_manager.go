package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradework-backend/internal/integration/domain"
	"tradework-backend/internal/integration/repository"
	"tradework-backend/pkg/outlook"
	"tradework-backend/pkg/retry"
	"tradework-backend/pkg/vault"
)

// refreshBuffer is how far before expiry a stored access token is treated
// as stale and refreshed ahead of use.
const refreshBuffer = 10 * time.Minute

const (
	refreshMaxAttempts     = 3
	refreshInitialInterval = 2 * time.Second
)

// outlookTokenAPI is the slice of the Outlook client the manager needs.
type outlookTokenAPI interface {
	Refresh(ctx context.Context, refreshToken string) (*outlook.TokenResponse, error)
}

// TokenManager returns a currently-valid Outlook access token for a user,
// refreshing transparently when the stored one is expired or near expiry.
// Refreshes for the same user are serialized so concurrent sends cannot
// race each other through a refresh-token rotation.
type TokenManager struct {
	repo   repository.IntegrationRepository
	client outlookTokenAPI
	vault  *vault.Vault
	logger *slog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	retryInitial time.Duration
	now          func() time.Time
}

// NewTokenManager creates a token manager over the integration store.
func NewTokenManager(repo repository.IntegrationRepository, client outlookTokenAPI, v *vault.Vault, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		repo:         repo,
		client:       client,
		vault:        v,
		logger:       logger,
		userLocks:    make(map[string]*sync.Mutex),
		retryInitial: refreshInitialInterval,
		now:          time.Now,
	}
}

// ValidAccessToken returns a usable access token for the user's Outlook
// integration. It fails with domain.ErrNotConnected when no connected
// integration exists, domain.ErrReauthRequired when the grant was revoked,
// and domain.ErrRefreshFailed when transient refresh errors exhaust the
// retry budget.
func (m *TokenManager) ValidAccessToken(ctx context.Context, userID string) (string, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	integration, err := m.repo.FindByUserAndProvider(ctx, userID, domain.ProviderOutlook)
	if err != nil {
		return "", fmt.Errorf("failed to load outlook integration: %w", err)
	}
	if !integration.Connected() || integration.RefreshToken == "" {
		return "", domain.ErrNotConnected
	}

	accessToken := m.vault.Decrypt(integration.AccessToken)
	if accessToken != "" && integration.TokenExpiry != nil &&
		integration.TokenExpiry.After(m.now().Add(refreshBuffer)) {
		return accessToken, nil
	}

	refreshToken := m.vault.Decrypt(integration.RefreshToken)

	var token *outlook.TokenResponse
	err = retry.Do(ctx, refreshMaxAttempts, m.retryInitial,
		func(err error) bool { return errors.Is(err, outlook.ErrInvalidGrant) },
		func() error {
			var refreshErr error
			token, refreshErr = m.client.Refresh(ctx, refreshToken)
			return refreshErr
		})

	if errors.Is(err, outlook.ErrInvalidGrant) {
		m.logger.Warn("outlook refresh token revoked, disconnecting integration", "user_id", userID)
		if updateErr := m.repo.UpdateFields(ctx, integration.ID, map[string]any{
			"status":       domain.StatusDisconnected,
			"access_token": "",
			"last_error":   "authorization revoked by provider",
		}); updateErr != nil {
			m.logger.Error("failed to mark outlook integration disconnected", "user_id", userID, "error", updateErr)
		}
		return "", domain.ErrReauthRequired
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
	}

	fields := map[string]any{
		"access_token": m.vault.Encrypt(token.AccessToken),
		"token_expiry": m.now().Add(time.Duration(token.ExpiresIn) * time.Second),
		"last_error":   "",
	}
	// Providers may rotate the refresh token; keep the stored one when the
	// response omits it.
	if token.RefreshToken != "" {
		fields["refresh_token"] = m.vault.Encrypt(token.RefreshToken)
	}
	if err := m.repo.UpdateFields(ctx, integration.ID, fields); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	return token.AccessToken, nil
}

func (m *TokenManager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[userID] = lock
	}
	return lock
}
