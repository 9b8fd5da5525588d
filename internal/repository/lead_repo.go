package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

// StatusSummary is one row of the lead status breakdown.
type StatusSummary struct {
	Status domain.LeadStatus `gorm:"column:status"`
	Count  int               `gorm:"column:count"`
}

type LeadRepository interface {
	Create(ctx context.Context, l *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error
	UpdateMarketplaceResult(ctx context.Context, id string, submitted bool, boberdooStatus string, price float64, buyerID string) error
	SetDealerFallback(ctx context.Context, id string) error
	GetStatusSummary(ctx context.Context) ([]StatusSummary, error)
	SumAcceptedPrice(ctx context.Context) (float64, error)
}

type GormLeadRepo struct {
	db *gorm.DB
}

func NewGormLeadRepo(db *gorm.DB) *GormLeadRepo {
	return &GormLeadRepo{db: db}
}

func (r *GormLeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	model := leadModelFromDomain(l)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if l != nil {
		*l = *leadModelToDomain(model)
	}
	return nil
}

func (r *GormLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var model LeadModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return leadModelToDomain(&model), nil
}

// UpdateStatus enforces the append-only lifecycle in SQL: the WHERE clause
// refuses to move a lead backwards from a terminal state.
func (r *GormLeadRepo) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error {
	if !status.IsValid() {
		return domain.ErrValidation
	}

	guard := make([]domain.LeadStatus, 0, 4)
	for _, from := range []domain.LeadStatus{
		domain.LeadStatusPending,
		domain.LeadStatusProcessing,
		domain.LeadStatusSubmitted,
		domain.LeadStatusFailed,
	} {
		if from.CanTransitionTo(status) {
			guard = append(guard, from)
		}
	}

	result := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Where("id = ? AND status IN ?", id, guard).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// UpdateMarketplaceResult records the marketplace outcome regardless of
// whether the lead was accepted or rejected.
func (r *GormLeadRepo) UpdateMarketplaceResult(ctx context.Context, id string, submitted bool, boberdooStatus string, price float64, buyerID string) error {
	result := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"boberdoo_submitted": submitted,
			"boberdoo_status":    boberdooStatus,
			"price":              price,
			"buyer_id":           buyerID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormLeadRepo) SetDealerFallback(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Where("id = ?", id).
		Update("dealer_fallback", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormLeadRepo) GetStatusSummary(ctx context.Context) ([]StatusSummary, error) {
	var summaries []StatusSummary
	err := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// SumAcceptedPrice totals revenue across marketplace-accepted leads.
func (r *GormLeadRepo) SumAcceptedPrice(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&LeadModel{}).
		Where("boberdoo_submitted").
		Select("COALESCE(SUM(price), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
