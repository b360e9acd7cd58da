package ports

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-central/internal/domain"
)

// StationService owns station lifecycle state: boot registration, liveness,
// connector status and the related event history.
type StationService interface {
	// RegisterBoot records the boot and returns the registration verdict the
	// station must obey.
	RegisterBoot(ctx context.Context, boot *domain.BootRequest) (domain.RegistrationStatus, error)
	Heartbeat(ctx context.Context, stationID string, at time.Time) error
	RecordStatus(ctx context.Context, update *domain.StatusUpdate) error
	RecordFirmwareStatus(ctx context.Context, stationID, status string, at time.Time) error
	RecordDiagnosticsStatus(ctx context.Context, stationID, status string, at time.Time) error
	GetStation(ctx context.Context, id string) (*domain.Station, error)
	ListStations(ctx context.Context) ([]domain.Station, error)
	ListConnectors(ctx context.Context, stationID string) ([]domain.Connector, error)
	// SetConfigValue mirrors a configuration key the station accepted via
	// ChangeConfiguration.
	SetConfigValue(ctx context.Context, stationID, key, value string) error
}

// TransactionService owns the charging transaction lifecycle and the meter
// sample pipeline.
type TransactionService interface {
	Start(ctx context.Context, req *domain.StartRequest) (*domain.Transaction, error)
	// Stop finalizes the transaction. An unknown transaction id is not an
	// error; it returns (nil, nil) and the station is answered as if the
	// stop had matched.
	Stop(ctx context.Context, req *domain.StopRequest) (*domain.Transaction, error)
	// EnqueueMeterValues hands a batch to the write-behind buffer. It never
	// blocks and never fails; under pressure the oldest buffered batch is
	// dropped first.
	EnqueueMeterValues(batch *domain.MeterBatch)
	GetTransaction(ctx context.Context, id int) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error)
}

// AuthorizationService resolves id tags to verdicts. It never returns an
// error: lookup failures are converted by the configured fail policy.
type AuthorizationService interface {
	Authorize(ctx context.Context, stationID, idTag string) *domain.IdTagInfo
}

// SessionInfo is a point-in-time snapshot of one live station session.
type SessionInfo struct {
	StationID    string    `json:"station_id"`
	State        string    `json:"state"`
	RemoteAddr   string    `json:"remote_addr"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	PendingCalls int       `json:"pending_calls"`
}

// CommandService sends central-system-initiated calls to connected stations.
// Implementations fail fast with a station-offline error when no live
// session exists for the id.
type CommandService interface {
	IsConnected(stationID string) bool
	ConnectedStations() []string
	ConnectionInfo(stationID string) (*SessionInfo, error)
	RemoteStart(ctx context.Context, stationID string, connectorID int, idTag string) (string, error)
	RemoteStop(ctx context.Context, stationID string, transactionID int) (string, error)
	Reset(ctx context.Context, stationID, kind string) (string, error)
	UnlockConnector(ctx context.Context, stationID string, connectorID int) (string, error)
	GetConfiguration(ctx context.Context, stationID string, keys []string) (*domain.StationConfiguration, error)
	ChangeConfiguration(ctx context.Context, stationID, key, value string) (string, error)
	TriggerMessage(ctx context.Context, stationID, message string, connectorID *int) (string, error)
	ReserveNow(ctx context.Context, stationID string, r *domain.Reservation) (string, error)
	CancelReservation(ctx context.Context, stationID string, reservationID int) (string, error)
	DataTransfer(ctx context.Context, stationID, vendorID, messageID, data string) (string, string, error)
}

// ReservationService coordinates ReserveNow/CancelReservation with the
// reservations table.
type ReservationService interface {
	Reserve(ctx context.Context, req *domain.ReservationRequest) (*domain.Reservation, error)
	Cancel(ctx context.Context, reservationID int) (string, error)
	Get(ctx context.Context, reservationID int) (*domain.Reservation, error)
	// ExpireOverdue is one sweep of the expiry job.
	ExpireOverdue(ctx context.Context) (int64, error)
}
