package usecase

import (
	"context"

	"tradework-backend/internal/mail/dto"
)

type MailUsecase interface {
	// Send delivers one message through the first working channel in the
	// user's priority order. A result with Success false means every
	// channel was tried; a non-nil error means the send never started.
	Send(ctx context.Context, userID string, req *dto.SendEmailRequest) (*dto.EmailResult, error)

	// Logs lists the user's delivery history, newest first.
	Logs(ctx context.Context, userID string, limit, offset int) ([]dto.DeliveryLogResponse, error)
}
