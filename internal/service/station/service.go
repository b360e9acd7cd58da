// Package station owns charge point lifecycle state: boot registration,
// heartbeat liveness, connector status and the related event history.
package station

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/adapter/queue"
	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// Queue subjects for station lifecycle events.
const (
	SubjectBoot   = "ocpp.events.boot"
	SubjectStatus = "ocpp.events.status"
)

type Service struct {
	repo     ports.StationRepository
	mq       queue.MessageQueue
	denylist map[string]struct{}
	log      *zap.Logger
}

// NewService builds the station service. Stations named in denylist are
// answered Rejected on boot.
func NewService(repo ports.StationRepository, mq queue.MessageQueue, denylist []string, log *zap.Logger) ports.StationService {
	denied := make(map[string]struct{}, len(denylist))
	for _, id := range denylist {
		if id != "" {
			denied[id] = struct{}{}
		}
	}
	return &Service{
		repo:     repo,
		mq:       mq,
		denylist: denied,
		log:      log,
	}
}

type bootEventMsg struct {
	StationID       string    `json:"station_id"`
	Vendor          string    `json:"vendor"`
	Model           string    `json:"model"`
	FirmwareVersion string    `json:"firmware_version,omitempty"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
}

type statusEventMsg struct {
	StationID   string    `json:"station_id"`
	ConnectorID int       `json:"connector_id"`
	Status      string    `json:"status"`
	ErrorCode   string    `json:"error_code"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *Service) RegisterBoot(ctx context.Context, boot *domain.BootRequest) (domain.RegistrationStatus, error) {
	status := domain.RegistrationAccepted
	if _, denied := s.denylist[boot.StationID]; denied {
		status = domain.RegistrationRejected
		s.log.Warn("Boot rejected by denylist", zap.String("station_id", boot.StationID))
	}

	at := boot.Timestamp
	station := &domain.Station{
		ID:                 boot.StationID,
		Vendor:             boot.Vendor,
		Model:              boot.Model,
		SerialNumber:       boot.SerialNumber,
		FirmwareVersion:    boot.FirmwareVersion,
		RegistrationStatus: status,
		LastBootAt:         &at,
	}
	event := &domain.BootEvent{
		StationID:       boot.StationID,
		Vendor:          boot.Vendor,
		Model:           boot.Model,
		FirmwareVersion: boot.FirmwareVersion,
		Timestamp:       at,
	}

	if err := s.repo.RecordBoot(ctx, station, event); err != nil {
		if status == domain.RegistrationRejected {
			// The denylist verdict stands even when the audit write fails.
			s.log.Error("Failed to record rejected boot", zap.String("station_id", boot.StationID), zap.Error(err))
			return status, nil
		}
		return "", err
	}

	s.publish(SubjectBoot, bootEventMsg{
		StationID:       boot.StationID,
		Vendor:          boot.Vendor,
		Model:           boot.Model,
		FirmwareVersion: boot.FirmwareVersion,
		Status:          string(status),
		Timestamp:       at,
	})
	return status, nil
}

func (s *Service) Heartbeat(ctx context.Context, stationID string, at time.Time) error {
	return s.repo.RecordHeartbeat(ctx, stationID, at)
}

func (s *Service) RecordStatus(ctx context.Context, update *domain.StatusUpdate) error {
	applied, err := s.repo.RecordStatus(ctx, &domain.StatusRecord{
		StationID:       update.StationID,
		ConnectorID:     update.ConnectorID,
		Status:          update.Status,
		ErrorCode:       update.ErrorCode,
		Info:            update.Info,
		VendorID:        update.VendorID,
		VendorErrorCode: update.VendorErrorCode,
		Timestamp:       update.Timestamp,
	})
	if err != nil {
		return err
	}
	if !applied {
		s.log.Debug("StatusNotification ignored as stale or unchanged",
			zap.String("station_id", update.StationID),
			zap.Int("connector_id", update.ConnectorID),
			zap.String("status", string(update.Status)),
		)
		return nil
	}

	s.publish(SubjectStatus, statusEventMsg{
		StationID:   update.StationID,
		ConnectorID: update.ConnectorID,
		Status:      string(update.Status),
		ErrorCode:   update.ErrorCode,
		Timestamp:   update.Timestamp,
	})
	return nil
}

func (s *Service) RecordFirmwareStatus(ctx context.Context, stationID, status string, at time.Time) error {
	return s.repo.RecordFirmwareStatus(ctx, &domain.FirmwareStatusEvent{
		StationID: stationID,
		Status:    status,
		Timestamp: at,
	})
}

func (s *Service) RecordDiagnosticsStatus(ctx context.Context, stationID, status string, at time.Time) error {
	return s.repo.RecordDiagnosticsStatus(ctx, &domain.DiagnosticsStatusEvent{
		StationID: stationID,
		Status:    status,
		Timestamp: at,
	})
}

func (s *Service) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	return s.repo.GetStation(ctx, id)
}

func (s *Service) ListStations(ctx context.Context) ([]domain.Station, error) {
	return s.repo.ListStations(ctx)
}

func (s *Service) ListConnectors(ctx context.Context, stationID string) ([]domain.Connector, error) {
	return s.repo.ListConnectors(ctx, stationID)
}

func (s *Service) SetConfigValue(ctx context.Context, stationID, key, value string) error {
	return s.repo.SetConfigValue(ctx, stationID, key, value)
}

// publish emits an event, best effort. Losing an event never fails the
// station-facing operation that produced it.
func (s *Service) publish(subject string, msg interface{}) {
	if s.mq == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("Failed to marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := s.mq.Publish(subject, data); err != nil {
		s.log.Warn("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
