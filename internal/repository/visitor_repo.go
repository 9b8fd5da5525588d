package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

type VisitorRepository interface {
	Upsert(ctx context.Context, v *domain.Visitor) error
	GetByID(ctx context.Context, sessionID string) (*domain.Visitor, error)
	GetByReturnToken(ctx context.Context, token string) (*domain.Visitor, error)
	ListIdleSince(ctx context.Context, cutoff, now time.Time, limit int) ([]domain.Visitor, error)
	ListAbandonedContactable(ctx context.Context, limit int) ([]domain.Visitor, error)
	MarkAbandoned(ctx context.Context, sessionID string, step domain.AbandonmentStep, token string, tokenExpiresAt time.Time) error
	RefreshReturnToken(ctx context.Context, sessionID, token string, tokenExpiresAt, now time.Time) error
	Ping(ctx context.Context) error
}

type GormVisitorRepo struct {
	db *gorm.DB
}

func NewGormVisitorRepo(db *gorm.DB) *GormVisitorRepo {
	return &GormVisitorRepo{db: db}
}

func (r *GormVisitorRepo) Upsert(ctx context.Context, v *domain.Visitor) error {
	model := visitorModelFromDomain(v)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	if v != nil {
		*v = *visitorModelToDomain(model)
	}
	return nil
}

func (r *GormVisitorRepo) GetByID(ctx context.Context, sessionID string) (*domain.Visitor, error) {
	var model VisitorModel
	err := r.db.WithContext(ctx).First(&model, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return visitorModelToDomain(&model), nil
}

func (r *GormVisitorRepo) GetByReturnToken(ctx context.Context, token string) (*domain.Visitor, error) {
	var model VisitorModel
	err := r.db.WithContext(ctx).
		Where("return_token = ? AND return_token <> ''", token).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return visitorModelToDomain(&model), nil
}

// ListIdleSince returns visitors whose last activity predates cutoff and who
// have not completed the form. Unflagged visitors are picked up for first-time
// detection; flagged ones come back only once their return token has expired,
// so the detector can rotate it.
func (r *GormVisitorRepo) ListIdleSince(ctx context.Context, cutoff, now time.Time, limit int) ([]domain.Visitor, error) {
	var models []VisitorModel
	err := r.db.WithContext(ctx).
		Where("last_activity_at <= ? AND NOT form_completed", cutoff).
		Where("NOT abandonment_detected OR return_token_expires_at <= ?", now).
		Order("last_activity_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	visitors := make([]domain.Visitor, 0, len(models))
	for i := range models {
		visitors = append(visitors, *visitorModelToDomain(&models[i]))
	}

	return visitors, nil
}

// ListAbandonedContactable returns flagged visitors with at least one contact
// field on record, oldest activity first.
func (r *GormVisitorRepo) ListAbandonedContactable(ctx context.Context, limit int) ([]domain.Visitor, error) {
	var models []VisitorModel
	err := r.db.WithContext(ctx).
		Where("abandonment_detected AND NOT form_completed").
		Where("phone <> '' OR email <> '' OR email_hash <> ''").
		Order("last_activity_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	visitors := make([]domain.Visitor, 0, len(models))
	for i := range models {
		visitors = append(visitors, *visitorModelToDomain(&models[i]))
	}

	return visitors, nil
}

// MarkAbandoned is idempotent per scan: the abandonment_detected guard keeps a
// concurrent or repeated pass from re-flagging and rotating the token.
func (r *GormVisitorRepo) MarkAbandoned(ctx context.Context, sessionID string, step domain.AbandonmentStep, token string, tokenExpiresAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&VisitorModel{}).
		Where("session_id = ? AND NOT abandonment_detected", sessionID).
		Updates(map[string]any{
			"abandonment_step":        int(step),
			"abandonment_detected":    true,
			"return_token":            token,
			"return_token_expires_at": tokenExpiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

// RefreshReturnToken rotates the token of an already-flagged visitor. The
// expiry guard keeps a concurrent pass from rotating a token twice, and keeps
// live tokens from being invalidated under a visitor who may hold the link.
func (r *GormVisitorRepo) RefreshReturnToken(ctx context.Context, sessionID, token string, tokenExpiresAt, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&VisitorModel{}).
		Where("session_id = ? AND abandonment_detected AND return_token_expires_at <= ?", sessionID, now).
		Updates(map[string]any{
			"return_token":            token,
			"return_token_expires_at": tokenExpiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormVisitorRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.WithContext(ctx).DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
