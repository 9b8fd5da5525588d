package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

type OutreachRepository interface {
	Create(ctx context.Context, a *domain.OutreachAttempt) error
	GetLatestByVisitor(ctx context.Context, visitorID string) (*domain.OutreachAttempt, error)
	ListByVisitor(ctx context.Context, visitorID string) ([]domain.OutreachAttempt, error)
	CountByVisitor(ctx context.Context, visitorID string) (int64, error)
	UpdateStatusByProviderMessageID(ctx context.Context, providerMessageID string, status domain.AttemptStatus) error
}

type GormOutreachRepo struct {
	db *gorm.DB
}

func NewGormOutreachRepo(db *gorm.DB) *GormOutreachRepo {
	return &GormOutreachRepo{db: db}
}

func (r *GormOutreachRepo) Create(ctx context.Context, a *domain.OutreachAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormOutreachRepo) GetLatestByVisitor(ctx context.Context, visitorID string) (*domain.OutreachAttempt, error) {
	var model OutreachAttemptModel
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return attemptModelToDomain(&model), nil
}

func (r *GormOutreachRepo) ListByVisitor(ctx context.Context, visitorID string) ([]domain.OutreachAttempt, error) {
	var models []OutreachAttemptModel
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.OutreachAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}

func (r *GormOutreachRepo) CountByVisitor(ctx context.Context, visitorID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&OutreachAttemptModel{}).
		Where("visitor_id = ?", visitorID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateStatusByProviderMessageID applies a provider delivery callback. The
// attempt row stays otherwise immutable.
func (r *GormOutreachRepo) UpdateStatusByProviderMessageID(ctx context.Context, providerMessageID string, status domain.AttemptStatus) error {
	result := r.db.WithContext(ctx).
		Model(&OutreachAttemptModel{}).
		Where("provider_message_id = ? AND provider_message_id <> ''", providerMessageID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
