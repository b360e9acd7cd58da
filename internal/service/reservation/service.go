// Package reservation books connector holds: it allocates the reservation id,
// quotes it to the station via ReserveNow and tracks the verdict.
package reservation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

type Service struct {
	repo     ports.ReservationRepository
	commands ports.CommandService
	log      *zap.Logger
}

func NewService(repo ports.ReservationRepository, commands ports.CommandService, log *zap.Logger) ports.ReservationService {
	return &Service{
		repo:     repo,
		commands: commands,
		log:      log,
	}
}

// Reserve allocates a reservation row, quotes its id to the station and
// records the verdict. The row is created first so the id sent on the wire
// always exists, even if the process dies mid-call.
func (s *Service) Reserve(ctx context.Context, req *domain.ReservationRequest) (*domain.Reservation, error) {
	res := &domain.Reservation{
		StationID:   req.StationID,
		ConnectorID: req.ConnectorID,
		IdTag:       req.IdTag,
		ParentIdTag: req.ParentIdTag,
		ExpiryDate:  req.ExpiryDate.UTC(),
		Status:      domain.ReservationPending,
	}
	if err := s.repo.CreateReservation(ctx, res); err != nil {
		return nil, err
	}

	verdict, err := s.commands.ReserveNow(ctx, req.StationID, res)
	if err != nil {
		if uerr := s.repo.UpdateReservationStatus(ctx, res.ID, domain.ReservationRejected); uerr != nil {
			s.log.Error("Failed to mark reservation rejected", zap.Int("reservation_id", res.ID), zap.Error(uerr))
		}
		return nil, err
	}

	status := domain.ReservationRejected
	if verdict == "Accepted" {
		status = domain.ReservationAccepted
	}
	if err := s.repo.UpdateReservationStatus(ctx, res.ID, status); err != nil {
		return nil, err
	}
	res.Status = status

	s.log.Info("Reservation resolved",
		zap.Int("reservation_id", res.ID),
		zap.String("station_id", res.StationID),
		zap.Int("connector_id", res.ConnectorID),
		zap.String("verdict", verdict),
	)
	return res, nil
}

// Cancel asks the owning station to release the hold. The row is only marked
// Cancelled when the station confirms; a Rejected verdict leaves it intact.
func (s *Service) Cancel(ctx context.Context, reservationID int) (string, error) {
	res, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", domain.ErrReservationNotFound
	}

	verdict, err := s.commands.CancelReservation(ctx, res.StationID, reservationID)
	if err != nil {
		return "", err
	}
	if verdict == "Accepted" {
		if err := s.repo.UpdateReservationStatus(ctx, reservationID, domain.ReservationCancelled); err != nil {
			return verdict, err
		}
		s.log.Info("Reservation cancelled", zap.Int("reservation_id", reservationID))
	}
	return verdict, nil
}

func (s *Service) Get(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	return s.repo.GetReservation(ctx, reservationID)
}

// ExpireOverdue is one sweep of the expiry job.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	return s.repo.ExpireOverdue(ctx, time.Now().UTC())
}

// RunSweeper expires overdue reservations on a fixed interval until ctx is
// cancelled.
func RunSweeper(ctx context.Context, svc ports.ReservationService, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ExpireOverdue(ctx)
			if err != nil {
				log.Error("Reservation expiry sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("Expired overdue reservations", zap.Int64("count", n))
			}
		}
	}
}
