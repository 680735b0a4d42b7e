package config

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-driven settings for the email delivery core.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	AppBaseURL  string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	// Base64-encoded 32-byte key for encrypting stored credentials.
	// Empty means the vault runs in passthrough mode (secrets stored as-is).
	CredentialsEncryptionKey string `env:"CREDENTIALS_ENCRYPTION_KEY"`

	// Secret used to sign OAuth state tokens. Falls back to the Microsoft
	// client secret when unset, which is weaker since that value is also
	// shared with the token endpoint.
	OAuthStateSecret string `env:"OAUTH_STATE_SECRET"`

	// Microsoft / Outlook OAuth
	MSClientID     string `env:"MS_CLIENT_ID"`
	MSClientSecret string `env:"MS_CLIENT_SECRET"`
	MSTenant       string `env:"MS_TENANT" envDefault:"common"`
	MSRedirectURI  string `env:"MS_REDIRECT_URI"`

	// Gmail managed connector (platform connection broker)
	ConnectBrokerURL string `env:"CONNECT_BROKER_URL"`
	ConnectHostID    string `env:"CONNECT_HOST_ID"`
	GmailRedirectURI string `env:"GMAIL_REDIRECT_URI"`

	// Postmark platform fallback
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	PostmarkSenderEmail  string `env:"POSTMARK_SENDER_EMAIL"`

	// Ordered list of channels the send cascade tries.
	ChannelPriority []string `env:"EMAIL_CHANNEL_PRIORITY" envSeparator:"," envDefault:"smtp,outlook,postmark,gmail"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads configuration from the environment, loading .env if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.CredentialsEncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.CredentialsEncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY must be base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
	}

	for i, ch := range cfg.ChannelPriority {
		cfg.ChannelPriority[i] = strings.TrimSpace(ch)
	}

	return cfg, nil
}

// StateSecret returns the key used for signing OAuth state tokens.
func (c *Config) StateSecret() string {
	if c.OAuthStateSecret != "" {
		return c.OAuthStateSecret
	}
	return c.MSClientSecret
}
