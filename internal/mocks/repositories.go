package mocks

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-central/internal/domain"
)

// MockStationRepository is a mock implementation of StationRepository
type MockStationRepository struct {
	RecordBootFunc              func(ctx context.Context, station *domain.Station, event *domain.BootEvent) error
	GetStationFunc              func(ctx context.Context, id string) (*domain.Station, error)
	ListStationsFunc            func(ctx context.Context) ([]domain.Station, error)
	ListConnectorsFunc          func(ctx context.Context, stationID string) ([]domain.Connector, error)
	RecordHeartbeatFunc         func(ctx context.Context, stationID string, at time.Time) error
	RecordStatusFunc            func(ctx context.Context, rec *domain.StatusRecord) (bool, error)
	SetConfigValueFunc          func(ctx context.Context, stationID, key, value string) error
	RecordFirmwareStatusFunc    func(ctx context.Context, ev *domain.FirmwareStatusEvent) error
	RecordDiagnosticsStatusFunc func(ctx context.Context, ev *domain.DiagnosticsStatusEvent) error
}

func (m *MockStationRepository) RecordBoot(ctx context.Context, station *domain.Station, event *domain.BootEvent) error {
	if m.RecordBootFunc != nil {
		return m.RecordBootFunc(ctx, station, event)
	}
	return nil
}

func (m *MockStationRepository) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	if m.GetStationFunc != nil {
		return m.GetStationFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockStationRepository) ListStations(ctx context.Context) ([]domain.Station, error) {
	if m.ListStationsFunc != nil {
		return m.ListStationsFunc(ctx)
	}
	return []domain.Station{}, nil
}

func (m *MockStationRepository) ListConnectors(ctx context.Context, stationID string) ([]domain.Connector, error) {
	if m.ListConnectorsFunc != nil {
		return m.ListConnectorsFunc(ctx, stationID)
	}
	return []domain.Connector{}, nil
}

func (m *MockStationRepository) RecordHeartbeat(ctx context.Context, stationID string, at time.Time) error {
	if m.RecordHeartbeatFunc != nil {
		return m.RecordHeartbeatFunc(ctx, stationID, at)
	}
	return nil
}

func (m *MockStationRepository) RecordStatus(ctx context.Context, rec *domain.StatusRecord) (bool, error) {
	if m.RecordStatusFunc != nil {
		return m.RecordStatusFunc(ctx, rec)
	}
	return true, nil
}

func (m *MockStationRepository) SetConfigValue(ctx context.Context, stationID, key, value string) error {
	if m.SetConfigValueFunc != nil {
		return m.SetConfigValueFunc(ctx, stationID, key, value)
	}
	return nil
}

func (m *MockStationRepository) RecordFirmwareStatus(ctx context.Context, ev *domain.FirmwareStatusEvent) error {
	if m.RecordFirmwareStatusFunc != nil {
		return m.RecordFirmwareStatusFunc(ctx, ev)
	}
	return nil
}

func (m *MockStationRepository) RecordDiagnosticsStatus(ctx context.Context, ev *domain.DiagnosticsStatusEvent) error {
	if m.RecordDiagnosticsStatusFunc != nil {
		return m.RecordDiagnosticsStatusFunc(ctx, ev)
	}
	return nil
}

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	AllocateTransactionFunc func(ctx context.Context, tx *domain.Transaction, dupWindow time.Duration) (*domain.Transaction, error)
	FinalizeTransactionFunc func(ctx context.Context, stop *domain.StopRequest) (*domain.Transaction, error)
	GetTransactionFunc      func(ctx context.Context, id int) (*domain.Transaction, error)
	ListTransactionsFunc    func(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error)
	AppendMeterSamplesFunc  func(ctx context.Context, samples []domain.MeterSample) error
}

func (m *MockTransactionRepository) AllocateTransaction(ctx context.Context, tx *domain.Transaction, dupWindow time.Duration) (*domain.Transaction, error) {
	if m.AllocateTransactionFunc != nil {
		return m.AllocateTransactionFunc(ctx, tx, dupWindow)
	}
	return tx, nil
}

func (m *MockTransactionRepository) FinalizeTransaction(ctx context.Context, stop *domain.StopRequest) (*domain.Transaction, error) {
	if m.FinalizeTransactionFunc != nil {
		return m.FinalizeTransactionFunc(ctx, stop)
	}
	return nil, nil
}

func (m *MockTransactionRepository) GetTransaction(ctx context.Context, id int) (*domain.Transaction, error) {
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockTransactionRepository) ListTransactions(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, stationID, limit)
	}
	return []domain.Transaction{}, nil
}

func (m *MockTransactionRepository) AppendMeterSamples(ctx context.Context, samples []domain.MeterSample) error {
	if m.AppendMeterSamplesFunc != nil {
		return m.AppendMeterSamplesFunc(ctx, samples)
	}
	return nil
}

// MockAuthorizationRepository is a mock implementation of AuthorizationRepository
type MockAuthorizationRepository struct {
	LookupAuthorizationFunc      func(ctx context.Context, idTag string) (*domain.AuthorizationRecord, error)
	UpsertAuthorizationFunc      func(ctx context.Context, rec *domain.AuthorizationRecord) error
	AppendAuthorizationEventFunc func(ctx context.Context, ev *domain.AuthorizationEvent) error
}

func (m *MockAuthorizationRepository) LookupAuthorization(ctx context.Context, idTag string) (*domain.AuthorizationRecord, error) {
	if m.LookupAuthorizationFunc != nil {
		return m.LookupAuthorizationFunc(ctx, idTag)
	}
	return nil, nil
}

func (m *MockAuthorizationRepository) UpsertAuthorization(ctx context.Context, rec *domain.AuthorizationRecord) error {
	if m.UpsertAuthorizationFunc != nil {
		return m.UpsertAuthorizationFunc(ctx, rec)
	}
	return nil
}

func (m *MockAuthorizationRepository) AppendAuthorizationEvent(ctx context.Context, ev *domain.AuthorizationEvent) error {
	if m.AppendAuthorizationEventFunc != nil {
		return m.AppendAuthorizationEventFunc(ctx, ev)
	}
	return nil
}

// MockReservationRepository is a mock implementation of ReservationRepository
type MockReservationRepository struct {
	CreateReservationFunc       func(ctx context.Context, r *domain.Reservation) error
	UpdateReservationStatusFunc func(ctx context.Context, id int, status domain.ReservationStatus) error
	GetReservationFunc          func(ctx context.Context, id int) (*domain.Reservation, error)
	ExpireOverdueFunc           func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockReservationRepository) CreateReservation(ctx context.Context, r *domain.Reservation) error {
	if m.CreateReservationFunc != nil {
		return m.CreateReservationFunc(ctx, r)
	}
	return nil
}

func (m *MockReservationRepository) UpdateReservationStatus(ctx context.Context, id int, status domain.ReservationStatus) error {
	if m.UpdateReservationStatusFunc != nil {
		return m.UpdateReservationStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *MockReservationRepository) GetReservation(ctx context.Context, id int) (*domain.Reservation, error) {
	if m.GetReservationFunc != nil {
		return m.GetReservationFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockReservationRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	if m.ExpireOverdueFunc != nil {
		return m.ExpireOverdueFunc(ctx, now)
	}
	return 0, nil
}
