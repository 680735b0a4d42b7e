package domain

import "errors"

var (
	// ErrNotConnected means the user has no connected integration for the
	// requested provider.
	ErrNotConnected = errors.New("integration not connected")

	// ErrReauthRequired means the stored refresh token was revoked and the
	// user must go through the authorization flow again.
	ErrReauthRequired = errors.New("authorization revoked, reconnect required")

	// ErrRefreshFailed means token refresh exhausted its retries on
	// transient failures. The integration is left untouched.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrStateInvalid means an OAuth callback carried a missing, expired,
	// or tampered state token.
	ErrStateInvalid = errors.New("invalid or expired authorization state")
)
