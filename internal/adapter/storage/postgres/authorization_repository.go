package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

type AuthorizationRepository struct {
	db    *gorm.DB
	guard *Guard
	log   *zap.Logger
}

func NewAuthorizationRepository(db *gorm.DB, guard *Guard, log *zap.Logger) ports.AuthorizationRepository {
	return &AuthorizationRepository{
		db:    db,
		guard: guard,
		log:   log,
	}
}

func (r *AuthorizationRepository) LookupAuthorization(ctx context.Context, idTag string) (*domain.AuthorizationRecord, error) {
	var rec domain.AuthorizationRecord
	found := false
	err := r.guard.Run(ctx, "lookup_authorization", func() error {
		result := r.db.WithContext(ctx).First(&rec, "id_tag = ?", idTag)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return nil
			}
			return result.Error
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (r *AuthorizationRepository) UpsertAuthorization(ctx context.Context, rec *domain.AuthorizationRecord) error {
	return r.guard.Run(ctx, "upsert_authorization", func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id_tag"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "expiry_date", "parent_id_tag", "updated_at",
			}),
		}).Create(rec).Error
	})
}

func (r *AuthorizationRepository) AppendAuthorizationEvent(ctx context.Context, ev *domain.AuthorizationEvent) error {
	return r.guard.Run(ctx, "append_authorization_event", func() error {
		return r.db.WithContext(ctx).Create(ev).Error
	})
}
