package repository

import (
	"context"

	"tradework-backend/internal/integration/domain"
)

// IntegrationRepository persists per-user email integration records.
type IntegrationRepository interface {
	// Upsert inserts the record or replaces the existing row for the same
	// (user, provider) pair.
	Upsert(ctx context.Context, integration *domain.EmailIntegration) error

	// FindByUserAndProvider returns nil, nil when no row exists.
	FindByUserAndProvider(ctx context.Context, userID, provider string) (*domain.EmailIntegration, error)

	FindByUser(ctx context.Context, userID string) ([]domain.EmailIntegration, error)

	// UpdateFields applies a partial update to one row by primary key.
	// Updates are last-writer-wins; UpdatedAt is bumped by GORM.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}
