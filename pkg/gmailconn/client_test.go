package gmailconn_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	maildomain "tradework-backend/internal/mail/domain"
	"tradework-backend/pkg/gmailconn"
)

func TestBuildRawMessage_NoAttachments(t *testing.T) {
	t.Parallel()

	raw := gmailconn.BuildRawMessage("pro@example.com", &maildomain.OutgoingMessage{
		To:      "client@example.com",
		Subject: "Invoice #12",
		HTML:    "<p>invoice</p>",
		Text:    "invoice",
	})

	// The transport encoding must be base64url without padding.
	assert.NotContains(t, raw, "=")
	assert.NotContains(t, raw, "+")
	assert.NotContains(t, raw, "/")

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	mime := string(decoded)

	assert.Contains(t, mime, "From: pro@example.com\r\n")
	assert.Contains(t, mime, "To: client@example.com\r\n")
	assert.Contains(t, mime, "MIME-Version: 1.0\r\n")
	assert.Contains(t, mime, "Content-Type: multipart/alternative")
	assert.NotContains(t, mime, "multipart/mixed")
	assert.Contains(t, mime, "Content-Type: text/plain; charset=\"UTF-8\"")
	assert.Contains(t, mime, "Content-Type: text/html; charset=\"UTF-8\"")
	assert.Contains(t, mime, "<p>invoice</p>")

	// Subject is RFC 2047 encoded.
	subjectB64 := base64.StdEncoding.EncodeToString([]byte("Invoice #12"))
	assert.Contains(t, mime, "Subject: =?utf-8?B?"+subjectB64+"?=")
}

func TestBuildRawMessage_WithAttachments(t *testing.T) {
	t.Parallel()

	raw := gmailconn.BuildRawMessage("pro@example.com", &maildomain.OutgoingMessage{
		To:      "client@example.com",
		Subject: "Quote",
		HTML:    "<p>quote</p>",
		Attachments: []maildomain.Attachment{
			{Filename: "quote.pdf", Content: []byte("pdf-bytes"), ContentType: "application/pdf"},
		},
	})

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	mime := string(decoded)

	assert.Contains(t, mime, "Content-Type: multipart/mixed")
	assert.Contains(t, mime, "Content-Type: multipart/alternative")
	assert.Contains(t, mime, "Content-Type: application/pdf; name=\"quote.pdf\"")
	assert.Contains(t, mime, "Content-Transfer-Encoding: base64")
	assert.Contains(t, mime, "Content-Disposition: attachment; filename=\"quote.pdf\"")
	assert.Contains(t, mime, base64.StdEncoding.EncodeToString([]byte("pdf-bytes")))
}

func TestAccessToken_CachedUntilNearExpiry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "host-1", r.Header.Get("X-Connect-Host-ID"))
		require.Equal(t, "/v1/connections/user-1/gmail/token", r.URL.Path)
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "broker-token",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	c := gmailconn.NewClient(srv.URL, "host-1")

	for i := 0; i < 3; i++ {
		token, err := c.AccessToken(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Equal(t, "broker-token", token)
	}
	assert.Equal(t, int32(1), calls.Load(), "token must be cached until near expiry")
}

func TestAccessToken_ShortLivedTokenRefetched(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Expires inside the near-expiry buffer, so every call re-fetches.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "broker-token",
			"expires_in":   60,
		})
	}))
	defer srv.Close()

	c := gmailconn.NewClient(srv.URL, "host-1")

	_, err := c.AccessToken(context.Background(), "user-1")
	require.NoError(t, err)
	_, err = c.AccessToken(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestAccessToken_RevokedGrantIsTerminal(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "no connection", status)
		}))

		c := gmailconn.NewClient(srv.URL, "host-1")
		_, err := c.AccessToken(context.Background(), "user-1")
		assert.ErrorIs(t, err, gmailconn.ErrGrantRevoked, "status %d", status)
		assert.Equal(t, int32(1), calls.Load(), "a dead grant is not retried")
		srv.Close()
	}
}

func TestAccessToken_BrokerOutageIsTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := gmailconn.NewClient(srv.URL, "host-1")
	_, err := c.AccessToken(context.Background(), "user-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, gmailconn.ErrGrantRevoked)
	assert.Equal(t, int32(2), calls.Load(), "transient failures use the retry budget")
}

func TestConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/connections/user-1/gmail":
			_ = json.NewEncoder(w).Encode(map[string]any{"connected": true, "email": "pro@gmail.com"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := gmailconn.NewClient(srv.URL, "host-1")

	conn, err := c.Connection(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, conn.Connected)
	assert.Equal(t, "pro@gmail.com", conn.Email)

	conn, err = c.Connection(context.Background(), "user-2")
	require.NoError(t, err)
	assert.False(t, conn.Connected)
}

func TestConnectURL(t *testing.T) {
	t.Parallel()

	c := gmailconn.NewClient("https://broker.example.com", "host-1")
	raw := c.ConnectURL("user-1", "state-token", "https://app.example.com/callback")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u.Path, "/v1/connect/gmail"))

	q := u.Query()
	assert.Equal(t, "host-1", q.Get("host_id"))
	assert.Equal(t, "user-1", q.Get("user_id"))
	assert.Equal(t, "state-token", q.Get("state"))
	assert.Equal(t, "https://app.example.com/callback", q.Get("redirect_uri"))
}
