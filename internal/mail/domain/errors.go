package domain

import "errors"

var (
	// ErrInvalidRecipient means the message failed validation before any
	// channel was attempted.
	ErrInvalidRecipient = errors.New("invalid recipient address")

	// ErrAllChannelsFailed means the cascade exhausted every configured
	// channel without a successful delivery.
	ErrAllChannelsFailed = errors.New("all delivery channels failed")

	// ErrChannelUnavailable means a sender has no usable connection for
	// this user and the cascade should move on without logging a failure.
	ErrChannelUnavailable = errors.New("channel not available for user")
)
