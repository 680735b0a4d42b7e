package repository

import (
	"context"
	"errors"
	"time"

	"tradework-backend/internal/integration/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// integrationRepository implements IntegrationRepository on GORM.
type integrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository creates a new instance of integrationRepository.
func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) Upsert(ctx context.Context, integration *domain.EmailIntegration) error {
	if integration.ID == "" {
		integration.ID = uuid.New().String()
	}
	now := time.Now()
	if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		UpdateAll: true,
	}).Create(integration).Error
}

func (r *integrationRepository) FindByUserAndProvider(ctx context.Context, userID, provider string) (*domain.EmailIntegration, error) {
	var integration domain.EmailIntegration
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) FindByUser(ctx context.Context, userID string) ([]domain.EmailIntegration, error) {
	var integrations []domain.EmailIntegration
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("provider asc").
		Find(&integrations).Error
	if err != nil {
		return nil, err
	}
	return integrations, nil
}

func (r *integrationRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&domain.EmailIntegration{}).
		Where("id = ?", id).
		Updates(fields).Error
}
