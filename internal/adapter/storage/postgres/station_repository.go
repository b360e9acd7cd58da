package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

type StationRepository struct {
	db    *gorm.DB
	guard *Guard
	log   *zap.Logger
}

func NewStationRepository(db *gorm.DB, guard *Guard, log *zap.Logger) ports.StationRepository {
	return &StationRepository{
		db:    db,
		guard: guard,
		log:   log,
	}
}

// RecordBoot upserts the station row and appends the boot event in one
// transaction. A station that booted before keeps its created_at, config and
// connector rows.
func (r *StationRepository) RecordBoot(ctx context.Context, station *domain.Station, event *domain.BootEvent) error {
	return r.guard.Run(ctx, "record_boot", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"vendor", "model", "serial_number", "firmware",
					"registration_status", "last_boot_at", "updated_at",
				}),
			}).Create(station).Error
			if err != nil {
				return err
			}
			return tx.Create(event).Error
		})
	})
}

func (r *StationRepository) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	var station domain.Station
	found := false
	err := r.guard.Run(ctx, "get_station", func() error {
		result := r.db.WithContext(ctx).Preload("Connectors").First(&station, "id = ?", id)
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
	return &station, nil
}

func (r *StationRepository) ListStations(ctx context.Context) ([]domain.Station, error) {
	var stations []domain.Station
	err := r.guard.Run(ctx, "list_stations", func() error {
		return r.db.WithContext(ctx).Preload("Connectors").Order("id").Find(&stations).Error
	})
	if err != nil {
		return nil, err
	}
	return stations, nil
}

func (r *StationRepository) ListConnectors(ctx context.Context, stationID string) ([]domain.Connector, error) {
	var connectors []domain.Connector
	err := r.guard.Run(ctx, "list_connectors", func() error {
		return r.db.WithContext(ctx).
			Where("station_id = ?", stationID).
			Order("connector_id").
			Find(&connectors).Error
	})
	if err != nil {
		return nil, err
	}
	return connectors, nil
}

// RecordHeartbeat bumps last_heartbeat_at and appends to the heartbeat
// history. Stations that never booted get history rows but no station update.
func (r *StationRepository) RecordHeartbeat(ctx context.Context, stationID string, at time.Time) error {
	return r.guard.Run(ctx, "record_heartbeat", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.Model(&domain.Station{}).
				Where("id = ?", stationID).
				Update("last_heartbeat_at", at).Error
			if err != nil {
				return err
			}
			return tx.Create(&domain.HeartbeatEvent{StationID: stationID, Timestamp: at}).Error
		})
	})
}

// RecordStatus appends to the status history and refreshes the denormalized
// connector state. Reports arriving out of order are skipped: a timestamp
// older than the connector's last applied status changes nothing.
func (r *StationRepository) RecordStatus(ctx context.Context, rec *domain.StatusRecord) (bool, error) {
	applied := false
	err := r.guard.Run(ctx, "record_status", func() error {
		applied = false
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var current domain.Connector
			err := tx.Where("station_id = ? AND connector_id = ?", rec.StationID, rec.ConnectorID).
				First(&current).Error
			switch {
			case err == nil:
				if rec.Timestamp.Before(current.LastStatusAt) {
					return nil
				}
				if rec.Timestamp.Equal(current.LastStatusAt) &&
					rec.Status == current.Status &&
					rec.ErrorCode == current.LastErrorCode {
					return nil
				}
				updates := map[string]interface{}{
					"status":          rec.Status,
					"last_error_code": rec.ErrorCode,
					"last_status_at":  rec.Timestamp,
				}
				if err := tx.Model(&domain.Connector{}).Where("id = ?", current.ID).Updates(updates).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				connector := &domain.Connector{
					StationID:     rec.StationID,
					ConnectorID:   rec.ConnectorID,
					Status:        rec.Status,
					LastErrorCode: rec.ErrorCode,
					LastStatusAt:  rec.Timestamp,
				}
				if err := tx.Create(connector).Error; err != nil {
					return err
				}
			default:
				return err
			}

			// Connector 0 speaks for the station as a whole.
			if rec.ConnectorID == 0 {
				err := tx.Model(&domain.Station{}).
					Where("id = ?", rec.StationID).
					Update("status", rec.Status).Error
				if err != nil {
					return err
				}
			}

			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			applied = true
			return nil
		})
	})
	return applied, err
}

// SetConfigValue merges one key into the station's config column. Unknown
// stations are a no-op.
func (r *StationRepository) SetConfigValue(ctx context.Context, stationID, key, value string) error {
	return r.guard.Run(ctx, "set_config_value", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var station domain.Station
			if err := tx.First(&station, "id = ?", stationID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			if station.Config == nil {
				station.Config = domain.ConfigMap{}
			}
			station.Config[key] = value
			return tx.Model(&station).Update("config", station.Config).Error
		})
	})
}

func (r *StationRepository) RecordFirmwareStatus(ctx context.Context, ev *domain.FirmwareStatusEvent) error {
	return r.guard.Run(ctx, "record_firmware_status", func() error {
		return r.db.WithContext(ctx).Create(ev).Error
	})
}

func (r *StationRepository) RecordDiagnosticsStatus(ctx context.Context, ev *domain.DiagnosticsStatusEvent) error {
	return r.guard.Run(ctx, "record_diagnostics_status", func() error {
		return r.db.WithContext(ctx).Create(ev).Error
	})
}
