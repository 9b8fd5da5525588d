package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

type ActivityRepository interface {
	Create(ctx context.Context, a *domain.VisitorActivity) error
	ListByVisitor(ctx context.Context, visitorID string) ([]domain.VisitorActivity, error)
}

type GormActivityRepo struct {
	db *gorm.DB
}

func NewGormActivityRepo(db *gorm.DB) *GormActivityRepo {
	return &GormActivityRepo{db: db}
}

func (r *GormActivityRepo) Create(ctx context.Context, a *domain.VisitorActivity) error {
	model := activityModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *activityModelToDomain(model)
	}
	return nil
}

func (r *GormActivityRepo) ListByVisitor(ctx context.Context, visitorID string) ([]domain.VisitorActivity, error) {
	var models []VisitorActivityModel
	err := r.db.WithContext(ctx).
		Where("visitor_id = ?", visitorID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	activities := make([]domain.VisitorActivity, 0, len(models))
	for i := range models {
		activities = append(activities, *activityModelToDomain(&models[i]))
	}

	return activities, nil
}
