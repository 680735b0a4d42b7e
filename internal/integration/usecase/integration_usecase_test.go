package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradework-backend/internal/integration/domain"
	"tradework-backend/internal/integration/dto"
	"tradework-backend/pkg/gmailconn"
	"tradework-backend/pkg/oauthstate"
	"tradework-backend/pkg/outlook"
	"tradework-backend/pkg/smtpmail"
	"tradework-backend/pkg/vault"
)

type stubOutlookOAuth struct {
	configured   bool
	exchangeResp *outlook.TokenResponse
	exchangeErr  error
	profileEmail string
	profileErr   error
}

func (s *stubOutlookOAuth) Configured() bool { return s.configured }

func (s *stubOutlookOAuth) AuthCodeURL(state string) string {
	return "https://login.example.com/authorize?state=" + state
}

func (s *stubOutlookOAuth) ExchangeCode(context.Context, string) (*outlook.TokenResponse, error) {
	return s.exchangeResp, s.exchangeErr
}

func (s *stubOutlookOAuth) ProfileEmail(context.Context, string) (string, error) {
	return s.profileEmail, s.profileErr
}

type stubGmailBroker struct {
	configured    bool
	conn          *gmailconn.Connection
	connErr       error
	disconnects   int
	disconnectErr error
}

func (s *stubGmailBroker) Configured() bool { return s.configured }

func (s *stubGmailBroker) ConnectURL(userID, state, redirectURI string) string {
	return "https://broker.example.com/connect?user=" + userID + "&state=" + state + "&redirect=" + redirectURI
}

func (s *stubGmailBroker) Connection(context.Context, string) (*gmailconn.Connection, error) {
	return s.conn, s.connErr
}

func (s *stubGmailBroker) Disconnect(context.Context, string) error {
	s.disconnects++
	return s.disconnectErr
}

type usecaseFixture struct {
	repo    *stubIntegrationRepo
	outlook *stubOutlookOAuth
	gmail   *stubGmailBroker
	state   *oauthstate.Manager
	uc      *integrationUsecase
}

func newFixture(integration *domain.EmailIntegration) *usecaseFixture {
	logger := slog.New(slog.DiscardHandler)
	f := &usecaseFixture{
		repo:    newStubIntegrationRepo(integration),
		outlook: &stubOutlookOAuth{configured: true},
		gmail:   &stubGmailBroker{configured: true},
		state:   oauthstate.NewManager([]byte("test-state-secret")),
	}
	f.uc = NewIntegrationUsecase(
		f.repo, vault.New("", logger), f.state, f.outlook, f.gmail,
		"https://app.example.com/settings/email", logger,
	).(*integrationUsecase)
	f.uc.verifySMTP = func(context.Context, smtpmail.Settings) error { return nil }
	return f
}

func smtpRequest() *dto.ConnectSMTPRequest {
	return &dto.ConnectSMTPRequest{
		Host:        "smtp.example.com",
		Port:        587,
		Username:    "pro@example.com",
		Password:    "s3cret",
		Secure:      false,
		DisplayName: "Acme Plumbing",
	}
}

func TestConnectSMTP(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	require.NoError(t, f.uc.ConnectSMTP(context.Background(), "user-1", smtpRequest()))

	saved := f.repo.integration
	require.NotNil(t, saved)
	assert.Equal(t, domain.ProviderSMTP, saved.Provider)
	assert.Equal(t, domain.StatusConnected, saved.Status)
	assert.Equal(t, "pro@example.com", saved.ConnectedEmail)
	assert.Equal(t, "s3cret", saved.SMTPPassword, "passthrough vault stores the password verbatim")
}

func TestConnectSMTP_VerificationFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.uc.verifySMTP = func(context.Context, smtpmail.Settings) error {
		return errors.New("535 authentication failed")
	}

	err := f.uc.ConnectSMTP(context.Background(), "user-1", smtpRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp verification failed")
	assert.Nil(t, f.repo.integration, "nothing is stored when verification fails")
}

func TestDisconnectSMTP(t *testing.T) {
	t.Parallel()

	f := newFixture(&domain.EmailIntegration{
		ID: "int-smtp", UserID: "user-1", Provider: domain.ProviderSMTP,
		Status: domain.StatusConnected, SMTPPassword: "enc",
	})
	require.NoError(t, f.uc.DisconnectSMTP(context.Background(), "user-1"))

	fields := f.repo.updates["int-smtp"]
	require.NotNil(t, fields)
	assert.Equal(t, domain.StatusDisconnected, fields["status"])
	assert.Equal(t, "", fields["smtp_password"])
}

func TestDisconnectSMTP_NoRowIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	assert.NoError(t, f.uc.DisconnectSMTP(context.Background(), "user-1"))
	assert.Empty(t, f.repo.updates)
}

func TestOutlookAuthURL_CarriesIssuedState(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	url, err := f.uc.OutlookAuthURL("user-1")
	require.NoError(t, err)

	_, state, ok := strings.Cut(url, "state=")
	require.True(t, ok)
	userID, valid := f.state.Validate(state)
	assert.True(t, valid)
	assert.Equal(t, "user-1", userID)
}

func TestOutlookAuthURL_NotConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.outlook.configured = false
	_, err := f.uc.OutlookAuthURL("user-1")
	assert.Error(t, err)
}

func TestHandleOutlookCallback(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.outlook.exchangeResp = &outlook.TokenResponse{
		AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600,
	}
	f.outlook.profileEmail = "pro@outlook.com"

	state, err := f.state.Issue("user-1")
	require.NoError(t, err)
	require.NoError(t, f.uc.HandleOutlookCallback(context.Background(), "auth-code", state))

	saved := f.repo.integration
	require.NotNil(t, saved)
	assert.Equal(t, domain.ProviderOutlook, saved.Provider)
	assert.Equal(t, domain.StatusConnected, saved.Status)
	assert.Equal(t, "pro@outlook.com", saved.ConnectedEmail)
	assert.Equal(t, "refresh", saved.RefreshToken)
	require.NotNil(t, saved.TokenExpiry)
}

func TestHandleOutlookCallback_BadState(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	err := f.uc.HandleOutlookCallback(context.Background(), "auth-code", "forged-state")
	assert.ErrorIs(t, err, domain.ErrStateInvalid)
	assert.Nil(t, f.repo.integration)
}

func TestHandleOutlookCallback_ProfileFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.outlook.exchangeResp = &outlook.TokenResponse{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600}
	f.outlook.profileErr = errors.New("graph 503")

	state, err := f.state.Issue("user-1")
	require.NoError(t, err)
	require.NoError(t, f.uc.HandleOutlookCallback(context.Background(), "auth-code", state))

	require.NotNil(t, f.repo.integration)
	assert.Empty(t, f.repo.integration.ConnectedEmail)
	assert.Equal(t, domain.StatusConnected, f.repo.integration.Status)
}

func TestHandleGmailCallback(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.gmail.conn = &gmailconn.Connection{Connected: true, Email: "pro@gmail.com"}

	state, err := f.state.Issue("user-1")
	require.NoError(t, err)
	require.NoError(t, f.uc.HandleGmailCallback(context.Background(), state))

	saved := f.repo.integration
	require.NotNil(t, saved)
	assert.Equal(t, domain.ProviderGmail, saved.Provider)
	assert.Equal(t, domain.StatusConnected, saved.Status)
	assert.Equal(t, "pro@gmail.com", saved.ConnectedEmail)
}

func TestHandleGmailCallback_BrokerNotConnected(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.gmail.conn = &gmailconn.Connection{Connected: false}

	state, err := f.state.Issue("user-1")
	require.NoError(t, err)
	assert.Error(t, f.uc.HandleGmailCallback(context.Background(), state))
	assert.Nil(t, f.repo.integration)
}

func TestDisconnectGmail_NotifiesBroker(t *testing.T) {
	t.Parallel()

	f := newFixture(&domain.EmailIntegration{
		ID: "int-gm", UserID: "user-1", Provider: domain.ProviderGmail,
		Status: domain.StatusConnected, ConnectedEmail: "pro@gmail.com",
	})
	require.NoError(t, f.uc.DisconnectGmail(context.Background(), "user-1"))

	assert.Equal(t, 1, f.gmail.disconnects)
	fields := f.repo.updates["int-gm"]
	require.NotNil(t, fields)
	assert.Equal(t, domain.StatusDisconnected, fields["status"])
	assert.Equal(t, "", fields["connected_email"])
}

func TestDisconnectGmail_BrokerFailureStillDisconnectsLocally(t *testing.T) {
	t.Parallel()

	f := newFixture(&domain.EmailIntegration{
		ID: "int-gm", UserID: "user-1", Provider: domain.ProviderGmail, Status: domain.StatusConnected,
	})
	f.gmail.disconnectErr = errors.New("broker 500")

	require.NoError(t, f.uc.DisconnectGmail(context.Background(), "user-1"))
	assert.Equal(t, domain.StatusDisconnected, f.repo.updates["int-gm"]["status"])
}

func TestStatus_FillsAllProviders(t *testing.T) {
	t.Parallel()

	f := newFixture(&domain.EmailIntegration{
		ID: "int-smtp", UserID: "user-1", Provider: domain.ProviderSMTP,
		Status: domain.StatusConnected, ConnectedEmail: "pro@example.com", DisplayName: "Acme Plumbing",
	})

	statuses, err := f.uc.Status(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	byProvider := make(map[string]dto.IntegrationStatus, len(statuses))
	for _, s := range statuses {
		byProvider[s.Provider] = s
	}
	assert.Equal(t, domain.StatusConnected, byProvider[domain.ProviderSMTP].Status)
	assert.Equal(t, "Acme Plumbing", byProvider[domain.ProviderSMTP].DisplayName)
	assert.Equal(t, domain.StatusDisconnected, byProvider[domain.ProviderOutlook].Status)
	assert.Equal(t, domain.StatusDisconnected, byProvider[domain.ProviderGmail].Status)
}
