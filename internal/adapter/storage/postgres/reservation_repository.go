package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

type ReservationRepository struct {
	db    *gorm.DB
	guard *Guard
	log   *zap.Logger
}

func NewReservationRepository(db *gorm.DB, guard *Guard, log *zap.Logger) ports.ReservationRepository {
	return &ReservationRepository{
		db:    db,
		guard: guard,
		log:   log,
	}
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res *domain.Reservation) error {
	return r.guard.Run(ctx, "create_reservation", func() error {
		return r.db.WithContext(ctx).Create(res).Error
	})
}

func (r *ReservationRepository) UpdateReservationStatus(ctx context.Context, id int, status domain.ReservationStatus) error {
	return r.guard.Run(ctx, "update_reservation_status", func() error {
		return r.db.WithContext(ctx).
			Model(&domain.Reservation{}).
			Where("id = ?", id).
			Update("status", status).Error
	})
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id int) (*domain.Reservation, error) {
	var res domain.Reservation
	found := false
	err := r.guard.Run(ctx, "get_reservation", func() error {
		result := r.db.WithContext(ctx).First(&res, "id = ?", id)
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
	return &res, nil
}

// ExpireOverdue flips accepted reservations whose expiry has passed to
// Expired, returning how many were flipped.
func (r *ReservationRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	var flipped int64
	err := r.guard.Run(ctx, "expire_overdue_reservations", func() error {
		result := r.db.WithContext(ctx).
			Model(&domain.Reservation{}).
			Where("status = ? AND expiry_date < ?", domain.ReservationAccepted, now).
			Update("status", domain.ReservationExpired)
		if result.Error != nil {
			return result.Error
		}
		flipped = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return flipped, nil
}
