package gmailconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	maildomain "tradework-backend/internal/mail/domain"
	"tradework-backend/pkg/retry"
)

// hostHeader is the host-scoped identity header the broker authenticates
// requests with.
const hostHeader = "X-Connect-Host-ID"

// tokenExpiryBuffer is how close to expiry a cached broker token is
// considered stale.
const tokenExpiryBuffer = 5 * time.Minute

// ErrGrantRevoked means the broker no longer holds a usable grant for the
// user; the connection must be re-established. Transient broker failures
// are reported as plain errors and never carry this sentinel.
var ErrGrantRevoked = errors.New("gmailconn: grant revoked")

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// Client talks to the platform connection broker that holds users' Gmail
// grants, and sends raw messages through the Gmail API with broker-issued
// access tokens.
type Client struct {
	brokerURL  string
	hostID     string
	httpClient *http.Client

	mu     sync.Mutex
	tokens map[string]cachedToken
}

// NewClient creates a connector client for the given broker endpoint.
func NewClient(brokerURL, hostID string) *Client {
	return &Client{
		brokerURL:  strings.TrimRight(brokerURL, "/"),
		hostID:     hostID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokens:     make(map[string]cachedToken),
	}
}

// Configured reports whether the broker integration is set up.
func (c *Client) Configured() bool {
	return c.brokerURL != "" && c.hostID != ""
}

// Connection describes the broker's view of a user's Gmail grant.
type Connection struct {
	Connected bool   `json:"connected"`
	Email     string `json:"email"`
}

// Connection asks the broker whether the user has an active Gmail grant.
func (c *Client) Connection(ctx context.Context, userID string) (*Connection, error) {
	endpoint := fmt.Sprintf("%s/v1/connections/%s/gmail", c.brokerURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection request: %w", err)
	}
	req.Header.Set(hostHeader, c.hostID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("broker connection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &Connection{Connected: false}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("broker returned %d", resp.StatusCode)
	}

	var conn Connection
	if err := json.NewDecoder(resp.Body).Decode(&conn); err != nil {
		return nil, fmt.Errorf("failed to decode broker connection: %w", err)
	}
	return &conn, nil
}

// ConnectURL builds the broker-hosted authorization URL for a user. The
// state token binds the eventual callback to the user.
func (c *Client) ConnectURL(userID, state, redirectURI string) string {
	q := url.Values{}
	q.Set("host_id", c.hostID)
	q.Set("user_id", userID)
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	return fmt.Sprintf("%s/v1/connect/gmail?%s", c.brokerURL, q.Encode())
}

// Disconnect revokes the user's Gmail grant at the broker. Idempotent.
func (c *Client) Disconnect(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("%s/v1/connections/%s/gmail", c.brokerURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build disconnect request: %w", err)
	}
	req.Header.Set(hostHeader, c.hostID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("broker disconnect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("broker returned %d", resp.StatusCode)
	}

	c.mu.Lock()
	delete(c.tokens, userID)
	c.mu.Unlock()
	return nil
}

// AccessToken returns a broker-issued access token for the user's grant,
// re-fetching only when the cached one is near expiry.
func (c *Client) AccessToken(ctx context.Context, userID string) (string, error) {
	c.mu.Lock()
	cached, ok := c.tokens[userID]
	c.mu.Unlock()
	if ok && time.Until(cached.expiresAt) > tokenExpiryBuffer {
		return cached.accessToken, nil
	}

	var fetched cachedToken
	err := retry.Do(ctx, 2, 500*time.Millisecond,
		func(err error) bool { return errors.Is(err, ErrGrantRevoked) },
		func() error {
			var fetchErr error
			fetched, fetchErr = c.fetchToken(ctx, userID)
			return fetchErr
		})
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.tokens[userID] = fetched
	c.mu.Unlock()
	return fetched.accessToken, nil
}

func (c *Client) fetchToken(ctx context.Context, userID string) (cachedToken, error) {
	endpoint := fmt.Sprintf("%s/v1/connections/%s/gmail/token", c.brokerURL, url.PathEscape(userID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return cachedToken{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set(hostHeader, c.hostID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("broker token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		// 401/403 mean the broker rejected the grant and 404 means it is
		// gone; anything else is a broker-side problem worth retrying.
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return cachedToken{}, fmt.Errorf("%w: broker returned %d: %s", ErrGrantRevoked, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return cachedToken{}, fmt.Errorf("broker token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return cachedToken{}, fmt.Errorf("failed to decode broker token: %w", err)
	}
	if payload.AccessToken == "" {
		return cachedToken{}, fmt.Errorf("broker returned empty access token")
	}

	return cachedToken{
		accessToken: payload.AccessToken,
		expiresAt:   time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}, nil
}

// SendRaw builds the raw MIME message and sends it through the Gmail API
// as the connected address. The connector cannot set a custom From display
// name; fromEmail is the grant's own address.
func (c *Client) SendRaw(ctx context.Context, accessToken, fromEmail string, msg *maildomain.OutgoingMessage) (string, error) {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	srv, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return "", fmt.Errorf("unable to create Gmail service: %w", err)
	}

	raw := BuildRawMessage(fromEmail, msg)
	sent, err := srv.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Do()
	if err != nil {
		return "", fmt.Errorf("unable to send message: %w", err)
	}
	return sent.Id, nil
}
