// Package postgres implements the repository ports on PostgreSQL via GORM.
// Every operation runs inside a shared guard that retries transient failures
// and trips a circuit breaker when the database stays down.
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seu-repo/ocpp-central/internal/domain"
)

// NewConnection initializes a new PostgreSQL connection using GORM and
// verifies it with a ping.
func NewConnection(url string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// RunMigrations creates or updates the schema for every persisted model.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Station{},
		&domain.Connector{},
		&domain.BootEvent{},
		&domain.HeartbeatEvent{},
		&domain.StatusRecord{},
		&domain.FirmwareStatusEvent{},
		&domain.DiagnosticsStatusEvent{},
		&domain.Transaction{},
		&domain.MeterSample{},
		&domain.AuthorizationRecord{},
		&domain.AuthorizationEvent{},
		&domain.Reservation{},
	)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
