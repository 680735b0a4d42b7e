package outlook

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	maildomain "tradework-backend/internal/mail/domain"
)

const (
	defaultAuthorityBase = "https://login.microsoftonline.com"
	defaultGraphBase     = "https://graph.microsoft.com/v1.0"

	// Scopes requested for per-user mail sending.
	scopes = "openid profile email offline_access https://graph.microsoft.com/Mail.Send https://graph.microsoft.com/User.Read"
)

// ErrInvalidGrant means the refresh token was revoked or expired; the grant
// is dead and retrying is pointless.
var ErrInvalidGrant = errors.New("outlook: invalid grant")

// Config holds the OAuth application settings for the Microsoft identity
// platform. AuthorityBase and GraphBase are overridable for tests.
type Config struct {
	ClientID      string
	ClientSecret  string
	Tenant        string
	RedirectURI   string
	AuthorityBase string
	GraphBase     string
}

// Client talks to the Microsoft identity platform and the Graph sendMail
// API on behalf of individual users.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sendClient *http.Client
}

// NewClient creates an Outlook client for the given app registration.
func NewClient(cfg Config) *Client {
	if cfg.Tenant == "" {
		cfg.Tenant = "common"
	}
	if cfg.AuthorityBase == "" {
		cfg.AuthorityBase = defaultAuthorityBase
	}
	if cfg.GraphBase == "" {
		cfg.GraphBase = defaultGraphBase
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		sendClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether the app registration is present.
func (c *Client) Configured() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// AuthCodeURL builds the authorization URL carrying the CSRF state token.
func (c *Client) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("scope", scopes)
	q.Set("response_mode", "query")
	q.Set("state", state)
	q.Set("prompt", "consent")

	return fmt.Sprintf("%s/%s/oauth2/v2.0/authorize?%s", c.cfg.AuthorityBase, c.cfg.Tenant, q.Encode())
}

// TokenResponse is the token endpoint reply for both code exchange and
// refresh. RefreshToken may be empty when the provider does not rotate it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")

	return c.postTokenEndpoint(ctx, form)
}

// Refresh exchanges the stored refresh token for a fresh token pair.
// A revoked grant returns ErrInvalidGrant.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	return c.postTokenEndpoint(ctx, form)
}

func (c *Client) postTokenEndpoint(ctx context.Context, form url.Values) (*TokenResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.cfg.AuthorityBase, c.cfg.Tenant)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.Unmarshal(body, &errResp)
		if errResp.Error == "invalid_grant" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidGrant, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}
	return &token, nil
}

// ProfileEmail fetches the signed-in user's email address from Graph.
// Best-effort metadata: callers treat a failure as non-fatal.
func (c *Client) ProfileEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.GraphBase+"/me", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("profile request returned %d", resp.StatusCode)
	}

	var profile struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("failed to decode profile: %w", err)
	}
	if profile.Mail != "" {
		return profile.Mail, nil
	}
	return profile.UserPrincipalName, nil
}

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

// SendMail posts the message to Graph's /me/sendMail endpoint. The Graph
// API accepts 202 with an empty body on success and assigns no message id.
func (c *Client) SendMail(ctx context.Context, accessToken string, msg *maildomain.OutgoingMessage) error {
	var to graphRecipient
	to.EmailAddress.Address = msg.To

	payload := map[string]any{
		"message": map[string]any{
			"subject": msg.Subject,
			"body": map[string]any{
				"contentType": "HTML",
				"content":     msg.HTML,
			},
			"toRecipients": []graphRecipient{to},
		},
		"saveToSentItems": true,
	}

	if msg.ReplyTo != "" {
		var replyTo graphRecipient
		replyTo.EmailAddress.Address = msg.ReplyTo
		payload["message"].(map[string]any)["replyTo"] = []graphRecipient{replyTo}
	}

	if len(msg.Attachments) > 0 {
		attachments := make([]graphAttachment, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			attachments = append(attachments, graphAttachment{
				ODataType:    "#microsoft.graph.fileAttachment",
				Name:         a.Filename,
				ContentType:  a.ContentType,
				ContentBytes: base64.StdEncoding.EncodeToString(a.Content),
			})
		}
		payload["message"].(map[string]any)["attachments"] = attachments
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode sendMail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphBase+"/me/sendMail", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sendMail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.sendClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendMail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sendMail returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
