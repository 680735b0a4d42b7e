package repository

import (
	"context"

	"tradework-backend/internal/mail/domain"
)

// DeliveryLogRepository persists the audit trail of send attempts.
type DeliveryLogRepository interface {
	Create(ctx context.Context, log *domain.DeliveryLog) error

	// UpdateFields applies the single terminal update to a pending row.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error

	FindByUser(ctx context.Context, userID string, limit, offset int) ([]domain.DeliveryLog, error)
}
