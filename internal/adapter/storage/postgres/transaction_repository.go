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

type TransactionRepository struct {
	db    *gorm.DB
	guard *Guard
	log   *zap.Logger
}

func NewTransactionRepository(db *gorm.DB, guard *Guard, log *zap.Logger) ports.TransactionRepository {
	return &TransactionRepository{
		db:    db,
		guard: guard,
		log:   log,
	}
}

// AllocateTransaction inserts the transaction and lets the database assign
// its id. A start retransmitted within dupWindow returns the stored row, so a
// station that never saw our reply gets the same transaction id again. Any
// transaction still open on the connector is closed first: one connector
// feeds one vehicle.
func (r *TransactionRepository) AllocateTransaction(ctx context.Context, tx *domain.Transaction, dupWindow time.Duration) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.guard.Run(ctx, "allocate_transaction", func() error {
		out = nil
		return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			var dup domain.Transaction
			err := db.Where(
				"station_id = ? AND connector_id = ? AND id_tag = ? AND stop_time IS NULL AND start_time BETWEEN ? AND ?",
				tx.StationID, tx.ConnectorID, tx.IdTag,
				tx.StartTime.Add(-dupWindow), tx.StartTime.Add(dupWindow),
			).Order("id DESC").First(&dup).Error
			if err == nil {
				out = &dup
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			var stale []domain.Transaction
			err = db.Where(
				"station_id = ? AND connector_id = ? AND stop_time IS NULL",
				tx.StationID, tx.ConnectorID,
			).Find(&stale).Error
			if err != nil {
				return err
			}
			for i := range stale {
				orphan := &stale[i]
				orphan.Finalize(orphan.StartValue, tx.StartTime, domain.StopReasonOther)
				if err := db.Save(orphan).Error; err != nil {
					return err
				}
				r.log.Warn("Closed stale open transaction",
					zap.Int("transaction_id", orphan.ID),
					zap.String("station_id", orphan.StationID),
					zap.Int("connector_id", orphan.ConnectorID),
				)
			}

			if err := db.Create(tx).Error; err != nil {
				return err
			}
			out = tx
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FinalizeTransaction closes the identified transaction. An unknown id
// returns (nil, nil); a retransmitted stop returns the stored outcome without
// rewriting it.
func (r *TransactionRepository) FinalizeTransaction(ctx context.Context, stop *domain.StopRequest) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.guard.Run(ctx, "finalize_transaction", func() error {
		out = nil
		return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
			var tx domain.Transaction
			if err := db.First(&tx, "id = ?", stop.TransactionID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			if !tx.IsOpen() {
				out = &tx
				return nil
			}

			if clamped := tx.Finalize(stop.MeterStop, stop.Timestamp, stop.Reason); clamped {
				r.log.Warn("Stop meter reading below start reading, clamping",
					zap.Int("transaction_id", tx.ID),
					zap.Int64("meter_stop", stop.MeterStop),
					zap.Int64("meter_start", tx.StartValue),
				)
			}
			if err := db.Save(&tx).Error; err != nil {
				return err
			}
			out = &tx
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, id int) (*domain.Transaction, error) {
	var tx domain.Transaction
	found := false
	err := r.guard.Run(ctx, "get_transaction", func() error {
		result := r.db.WithContext(ctx).First(&tx, "id = ?", id)
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
	return &tx, nil
}

func (r *TransactionRepository) ListTransactions(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var txs []domain.Transaction
	err := r.guard.Run(ctx, "list_transactions", func() error {
		query := r.db.WithContext(ctx).Order("start_time DESC").Limit(limit)
		if stationID != "" {
			query = query.Where("station_id = ?", stationID)
		}
		return query.Find(&txs).Error
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *TransactionRepository) AppendMeterSamples(ctx context.Context, samples []domain.MeterSample) error {
	if len(samples) == 0 {
		return nil
	}
	return r.guard.Run(ctx, "append_meter_samples", func() error {
		return r.db.WithContext(ctx).CreateInBatches(samples, 100).Error
	})
}
