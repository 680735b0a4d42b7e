package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	api "tradework-backend/cmd/api"
	integrationdomain "tradework-backend/internal/integration/domain"
	integrationRepo "tradework-backend/internal/integration/repository"
	integrationUsecase "tradework-backend/internal/integration/usecase"
	maildomain "tradework-backend/internal/mail/domain"
	mailRepo "tradework-backend/internal/mail/repository"
	mailUsecase "tradework-backend/internal/mail/usecase"
	"tradework-backend/pkg/config"
	"tradework-backend/pkg/database"
	"tradework-backend/pkg/gmailconn"
	"tradework-backend/pkg/oauthstate"
	"tradework-backend/pkg/outlook"
	"tradework-backend/pkg/platformmail"
	"tradework-backend/pkg/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&integrationdomain.EmailIntegration{}, &maildomain.DeliveryLog{}); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	credVault := vault.New(cfg.CredentialsEncryptionKey, logger)

	if cfg.OAuthStateSecret == "" && cfg.MSClientSecret != "" {
		logger.Warn("OAUTH_STATE_SECRET not set, falling back to MS_CLIENT_SECRET for state signing")
	}
	stateManager := oauthstate.NewManager([]byte(cfg.StateSecret()))

	outlookClient := outlook.NewClient(outlook.Config{
		ClientID:     cfg.MSClientID,
		ClientSecret: cfg.MSClientSecret,
		Tenant:       cfg.MSTenant,
		RedirectURI:  cfg.MSRedirectURI,
	})
	gmailClient := gmailconn.NewClient(cfg.ConnectBrokerURL, cfg.ConnectHostID)
	platformSender := platformmail.New(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.PostmarkSenderEmail)

	integrations := integrationRepo.NewIntegrationRepository(db)
	deliveryLogs := mailRepo.NewDeliveryLogRepository(db)

	tokenManager := integrationUsecase.NewTokenManager(integrations, outlookClient, credVault, logger)

	senders := mailUsecase.OrderSenders(cfg.ChannelPriority, logger,
		mailUsecase.NewSMTPSender(integrations, credVault),
		mailUsecase.NewOutlookSender(integrations, tokenManager, outlookClient),
		platformSender,
		mailUsecase.NewGmailSender(integrations, gmailClient),
	)
	logger.Info("delivery channels configured", "priority", strings.Join(cfg.ChannelPriority, ","))

	mailUc := mailUsecase.NewMailUsecase(deliveryLogs, integrations, senders, logger)
	integrationUc := integrationUsecase.NewIntegrationUsecase(
		integrations, credVault, stateManager, outlookClient, gmailClient, cfg.GmailRedirectURI, logger)

	handler := api.NewHandler(mailUc, integrationUc, cfg)

	addr := ":" + cfg.Port
	logger.Info("starting server", "addr", addr)
	if err := handler.Start(addr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	}
	return slog.New(handler)
}
