package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	integrationdomain "tradework-backend/internal/integration/domain"
	integrationrepo "tradework-backend/internal/integration/repository"
	"tradework-backend/internal/mail/domain"
	"tradework-backend/internal/mail/dto"
	"tradework-backend/internal/mail/repository"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type mailUsecase struct {
	logs         repository.DeliveryLogRepository
	integrations integrationrepo.IntegrationRepository
	senders      []domain.Sender
	logger       *slog.Logger
	now          func() time.Time
}

// NewMailUsecase wires the delivery orchestrator. senders must already be
// in the configured priority order; see OrderSenders.
func NewMailUsecase(
	logs repository.DeliveryLogRepository,
	integrations integrationrepo.IntegrationRepository,
	senders []domain.Sender,
	logger *slog.Logger,
) MailUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &mailUsecase{
		logs:         logs,
		integrations: integrations,
		senders:      senders,
		logger:       logger,
		now:          time.Now,
	}
}

// OrderSenders arranges senders to match the configured channel priority.
// Unknown names are skipped with a warning; channels missing from the
// priority list are left out entirely.
func OrderSenders(priority []string, logger *slog.Logger, senders ...domain.Sender) []domain.Sender {
	if logger == nil {
		logger = slog.Default()
	}
	byChannel := make(map[domain.Channel]domain.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	ordered := make([]domain.Sender, 0, len(priority))
	for _, name := range priority {
		ch := domain.Channel(strings.TrimSpace(name))
		s, ok := byChannel[ch]
		if !ok {
			logger.Warn("unknown channel in priority list, skipping", "channel", name)
			continue
		}
		ordered = append(ordered, s)
	}
	return ordered
}

func (u *mailUsecase) Send(ctx context.Context, userID string, req *dto.SendEmailRequest) (*dto.EmailResult, error) {
	recipient := strings.TrimSpace(req.To)
	if !emailRegex.MatchString(recipient) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRecipient, req.To)
	}

	msg := &domain.OutgoingMessage{
		To:       recipient,
		Subject:  req.Subject,
		HTML:     req.HTML,
		Text:     req.Text,
		FromName: req.FromName,
		ReplyTo:  req.ReplyTo,
	}
	for _, a := range req.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		})
	}

	entry := &domain.DeliveryLog{
		ID:        uuid.NewString(),
		UserID:    userID,
		Recipient: recipient,
		Subject:   req.Subject,
		Type:      domain.MessageType(req.Type),
		Status:    domain.DeliveryStatusPending,
	}
	if req.RelatedID != "" {
		entry.RelatedID = &req.RelatedID
	}
	if err := u.logs.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create delivery log: %w", err)
	}

	var attemptErrs []string
	for _, sender := range u.senders {
		channel := sender.Channel()
		result, err := sender.Send(ctx, userID, msg)
		if err == nil {
			u.recordSuccess(ctx, entry.ID, channel, result)
			u.logger.Info("email sent",
				"user_id", userID, "channel", channel, "message_id", result.MessageID)
			return &dto.EmailResult{
				Success:   true,
				MessageID: result.MessageID,
				SentVia:   string(channel),
			}, nil
		}
		if errors.Is(err, domain.ErrChannelUnavailable) {
			u.logger.Debug("channel not available, trying next", "user_id", userID, "channel", channel)
			continue
		}

		u.logger.Warn("channel attempt failed",
			"user_id", userID, "channel", channel, "error", err)
		attemptErrs = append(attemptErrs, fmt.Sprintf("%s: %v", channel, err))

		var chErr *domain.ChannelError
		if errors.As(err, &chErr) && chErr.Auth && chErr.IntegrationID != "" {
			u.markIntegrationError(ctx, chErr)
		}
	}

	errMsg := domain.ErrAllChannelsFailed.Error()
	if len(attemptErrs) > 0 {
		errMsg = strings.Join(attemptErrs, "; ")
	}
	if err := u.logs.UpdateFields(ctx, entry.ID, map[string]any{
		"status":        domain.DeliveryStatusFailed,
		"error_message": errMsg,
	}); err != nil {
		u.logger.Error("failed to update delivery log", "log_id", entry.ID, "error", err)
	}

	return &dto.EmailResult{Success: false, Error: errMsg}, nil
}

// recordSuccess applies the terminal update for a delivered message and
// bumps the winning integration's last-used timestamp.
func (u *mailUsecase) recordSuccess(ctx context.Context, logID string, channel domain.Channel, result *domain.SendResult) {
	sentAt := u.now()
	fields := map[string]any{
		"status":     domain.DeliveryStatusSent,
		"sent_via":   string(channel),
		"message_id": result.MessageID,
		"sent_at":    sentAt,
	}
	if result.IntegrationID != "" {
		fields["integration_id"] = result.IntegrationID
	}
	if err := u.logs.UpdateFields(ctx, logID, fields); err != nil {
		u.logger.Error("failed to update delivery log", "log_id", logID, "error", err)
	}

	if result.IntegrationID != "" {
		if err := u.integrations.UpdateFields(ctx, result.IntegrationID, map[string]any{
			"last_used_at": sentAt,
		}); err != nil {
			u.logger.Error("failed to bump integration last_used_at",
				"integration_id", result.IntegrationID, "error", err)
		}
	}
}

// markIntegrationError flags an integration after an authentication
// failure so the UI can prompt the user to reconnect.
func (u *mailUsecase) markIntegrationError(ctx context.Context, chErr *domain.ChannelError) {
	if err := u.integrations.UpdateFields(ctx, chErr.IntegrationID, map[string]any{
		"status":     integrationdomain.StatusError,
		"last_error": chErr.Err.Error(),
	}); err != nil {
		u.logger.Error("failed to mark integration error",
			"integration_id", chErr.IntegrationID, "error", err)
	}
}

func (u *mailUsecase) Logs(ctx context.Context, userID string, limit, offset int) ([]dto.DeliveryLogResponse, error) {
	entries, err := u.logs.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery logs: %w", err)
	}

	out := make([]dto.DeliveryLogResponse, 0, len(entries))
	for _, e := range entries {
		resp := dto.DeliveryLogResponse{
			ID:          e.ID,
			Recipient:   e.Recipient,
			Subject:     e.Subject,
			MessageType: string(e.Type),
			Status:      e.Status,
			SentVia:     e.SentVia,
			MessageID:   e.MessageID,
			Error:       e.ErrorMessage,
			SentAt:      e.SentAt,
			CreatedAt:   e.CreatedAt,
		}
		if e.RelatedID != nil {
			resp.RelatedID = *e.RelatedID
		}
		out = append(out, resp)
	}
	return out, nil
}
