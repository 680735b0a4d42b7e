package repository

import (
	"context"
	"time"

	"tradework-backend/internal/mail/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// deliveryLogRepository implements DeliveryLogRepository on GORM.
type deliveryLogRepository struct {
	db *gorm.DB
}

// NewDeliveryLogRepository creates a new instance of deliveryLogRepository.
func NewDeliveryLogRepository(db *gorm.DB) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

func (r *deliveryLogRepository) Create(ctx context.Context, log *domain.DeliveryLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	now := time.Now()
	log.CreatedAt = now
	log.UpdatedAt = now
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *deliveryLogRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&domain.DeliveryLog{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *deliveryLogRepository) FindByUser(ctx context.Context, userID string, limit, offset int) ([]domain.DeliveryLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var logs []domain.DeliveryLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
