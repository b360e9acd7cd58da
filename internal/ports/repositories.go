package ports

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-central/internal/domain"
)

// StationRepository persists stations, connectors and their event history.
// Lookup methods return (nil, nil) when the row does not exist.
type StationRepository interface {
	// RecordBoot upserts the station row and appends the boot event in one
	// transaction.
	RecordBoot(ctx context.Context, station *domain.Station, event *domain.BootEvent) error
	GetStation(ctx context.Context, id string) (*domain.Station, error)
	ListStations(ctx context.Context) ([]domain.Station, error)
	ListConnectors(ctx context.Context, stationID string) ([]domain.Connector, error)
	// RecordHeartbeat bumps the station's last_heartbeat_at and appends a
	// heartbeat row.
	RecordHeartbeat(ctx context.Context, stationID string, at time.Time) error
	// RecordStatus appends to the status history and refreshes the
	// denormalized connector and station state in one transaction. Returns
	// false when the update was skipped as stale or unchanged.
	RecordStatus(ctx context.Context, rec *domain.StatusRecord) (bool, error)
	SetConfigValue(ctx context.Context, stationID, key, value string) error
	RecordFirmwareStatus(ctx context.Context, ev *domain.FirmwareStatusEvent) error
	RecordDiagnosticsStatus(ctx context.Context, ev *domain.DiagnosticsStatusEvent) error
}

// TransactionRepository persists charging transactions and meter samples.
type TransactionRepository interface {
	// AllocateTransaction inserts the transaction and lets the database
	// assign its id. A start retransmitted within dupWindow for the same
	// (station, connector, tag, start time) returns the already stored row
	// instead of inserting a second one. A still-open transaction on the
	// same connector is closed before the insert.
	AllocateTransaction(ctx context.Context, tx *domain.Transaction, dupWindow time.Duration) (*domain.Transaction, error)
	// FinalizeTransaction closes the identified transaction with the stop
	// reading. Returns (nil, nil) when the id is unknown.
	FinalizeTransaction(ctx context.Context, stop *domain.StopRequest) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id int) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error)
	AppendMeterSamples(ctx context.Context, samples []domain.MeterSample) error
}

// AuthorizationRepository persists the id tag registry and the audit trail.
type AuthorizationRepository interface {
	LookupAuthorization(ctx context.Context, idTag string) (*domain.AuthorizationRecord, error)
	UpsertAuthorization(ctx context.Context, rec *domain.AuthorizationRecord) error
	AppendAuthorizationEvent(ctx context.Context, ev *domain.AuthorizationEvent) error
}

// ReservationRepository persists connector reservations.
type ReservationRepository interface {
	// CreateReservation inserts the reservation and fills in its
	// database-assigned id.
	CreateReservation(ctx context.Context, r *domain.Reservation) error
	UpdateReservationStatus(ctx context.Context, id int, status domain.ReservationStatus) error
	GetReservation(ctx context.Context, id int) (*domain.Reservation, error)
	// ExpireOverdue flips accepted reservations whose expiry has passed to
	// Expired, returning how many were flipped.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}
