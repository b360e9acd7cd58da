package mocks

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// MockStationService is a mock implementation of StationService interface
type MockStationService struct {
	RegisterBootFunc            func(ctx context.Context, boot *domain.BootRequest) (domain.RegistrationStatus, error)
	HeartbeatFunc               func(ctx context.Context, stationID string, at time.Time) error
	RecordStatusFunc            func(ctx context.Context, update *domain.StatusUpdate) error
	RecordFirmwareStatusFunc    func(ctx context.Context, stationID, status string, at time.Time) error
	RecordDiagnosticsStatusFunc func(ctx context.Context, stationID, status string, at time.Time) error
	GetStationFunc              func(ctx context.Context, id string) (*domain.Station, error)
	ListStationsFunc            func(ctx context.Context) ([]domain.Station, error)
	ListConnectorsFunc          func(ctx context.Context, stationID string) ([]domain.Connector, error)
	SetConfigValueFunc          func(ctx context.Context, stationID, key, value string) error
}

func (m *MockStationService) RegisterBoot(ctx context.Context, boot *domain.BootRequest) (domain.RegistrationStatus, error) {
	if m.RegisterBootFunc != nil {
		return m.RegisterBootFunc(ctx, boot)
	}
	return domain.RegistrationAccepted, nil
}

func (m *MockStationService) Heartbeat(ctx context.Context, stationID string, at time.Time) error {
	if m.HeartbeatFunc != nil {
		return m.HeartbeatFunc(ctx, stationID, at)
	}
	return nil
}

func (m *MockStationService) RecordStatus(ctx context.Context, update *domain.StatusUpdate) error {
	if m.RecordStatusFunc != nil {
		return m.RecordStatusFunc(ctx, update)
	}
	return nil
}

func (m *MockStationService) RecordFirmwareStatus(ctx context.Context, stationID, status string, at time.Time) error {
	if m.RecordFirmwareStatusFunc != nil {
		return m.RecordFirmwareStatusFunc(ctx, stationID, status, at)
	}
	return nil
}

func (m *MockStationService) RecordDiagnosticsStatus(ctx context.Context, stationID, status string, at time.Time) error {
	if m.RecordDiagnosticsStatusFunc != nil {
		return m.RecordDiagnosticsStatusFunc(ctx, stationID, status, at)
	}
	return nil
}

func (m *MockStationService) GetStation(ctx context.Context, id string) (*domain.Station, error) {
	if m.GetStationFunc != nil {
		return m.GetStationFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockStationService) ListStations(ctx context.Context) ([]domain.Station, error) {
	if m.ListStationsFunc != nil {
		return m.ListStationsFunc(ctx)
	}
	return []domain.Station{}, nil
}

func (m *MockStationService) ListConnectors(ctx context.Context, stationID string) ([]domain.Connector, error) {
	if m.ListConnectorsFunc != nil {
		return m.ListConnectorsFunc(ctx, stationID)
	}
	return []domain.Connector{}, nil
}

func (m *MockStationService) SetConfigValue(ctx context.Context, stationID, key, value string) error {
	if m.SetConfigValueFunc != nil {
		return m.SetConfigValueFunc(ctx, stationID, key, value)
	}
	return nil
}

// MockTransactionService is a mock implementation of TransactionService interface
type MockTransactionService struct {
	StartFunc            func(ctx context.Context, req *domain.StartRequest) (*domain.Transaction, error)
	StopFunc             func(ctx context.Context, req *domain.StopRequest) (*domain.Transaction, error)
	EnqueueFunc          func(batch *domain.MeterBatch)
	GetTransactionFunc   func(ctx context.Context, id int) (*domain.Transaction, error)
	ListTransactionsFunc func(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error)
	EnqueuedMeterBatches []*domain.MeterBatch
}

func (m *MockTransactionService) Start(ctx context.Context, req *domain.StartRequest) (*domain.Transaction, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, req)
	}
	return &domain.Transaction{ID: 1, StationID: req.StationID, ConnectorID: req.ConnectorID, IdTag: req.IdTag}, nil
}

func (m *MockTransactionService) Stop(ctx context.Context, req *domain.StopRequest) (*domain.Transaction, error) {
	if m.StopFunc != nil {
		return m.StopFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockTransactionService) EnqueueMeterValues(batch *domain.MeterBatch) {
	if m.EnqueueFunc != nil {
		m.EnqueueFunc(batch)
		return
	}
	m.EnqueuedMeterBatches = append(m.EnqueuedMeterBatches, batch)
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, id int) (*domain.Transaction, error) {
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, stationID, limit)
	}
	return []domain.Transaction{}, nil
}

// MockAuthorizationService is a mock implementation of AuthorizationService interface
type MockAuthorizationService struct {
	AuthorizeFunc func(ctx context.Context, stationID, idTag string) *domain.IdTagInfo
}

func (m *MockAuthorizationService) Authorize(ctx context.Context, stationID, idTag string) *domain.IdTagInfo {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, stationID, idTag)
	}
	return &domain.IdTagInfo{Status: domain.AuthAccepted}
}

// MockCommandService is a mock implementation of CommandService interface
type MockCommandService struct {
	IsConnectedFunc         func(stationID string) bool
	ConnectedStationsFunc   func() []string
	ConnectionInfoFunc      func(stationID string) (*ports.SessionInfo, error)
	RemoteStartFunc         func(ctx context.Context, stationID string, connectorID int, idTag string) (string, error)
	RemoteStopFunc          func(ctx context.Context, stationID string, transactionID int) (string, error)
	ResetFunc               func(ctx context.Context, stationID, kind string) (string, error)
	UnlockConnectorFunc     func(ctx context.Context, stationID string, connectorID int) (string, error)
	GetConfigurationFunc    func(ctx context.Context, stationID string, keys []string) (*domain.StationConfiguration, error)
	ChangeConfigurationFunc func(ctx context.Context, stationID, key, value string) (string, error)
	TriggerMessageFunc      func(ctx context.Context, stationID, message string, connectorID *int) (string, error)
	ReserveNowFunc          func(ctx context.Context, stationID string, r *domain.Reservation) (string, error)
	CancelReservationFunc   func(ctx context.Context, stationID string, reservationID int) (string, error)
	DataTransferFunc        func(ctx context.Context, stationID, vendorID, messageID, data string) (string, string, error)
}

func (m *MockCommandService) IsConnected(stationID string) bool {
	if m.IsConnectedFunc != nil {
		return m.IsConnectedFunc(stationID)
	}
	return true
}

func (m *MockCommandService) ConnectedStations() []string {
	if m.ConnectedStationsFunc != nil {
		return m.ConnectedStationsFunc()
	}
	return nil
}

func (m *MockCommandService) ConnectionInfo(stationID string) (*ports.SessionInfo, error) {
	if m.ConnectionInfoFunc != nil {
		return m.ConnectionInfoFunc(stationID)
	}
	return &ports.SessionInfo{StationID: stationID, State: "active"}, nil
}

func (m *MockCommandService) RemoteStart(ctx context.Context, stationID string, connectorID int, idTag string) (string, error) {
	if m.RemoteStartFunc != nil {
		return m.RemoteStartFunc(ctx, stationID, connectorID, idTag)
	}
	return "Accepted", nil
}

func (m *MockCommandService) RemoteStop(ctx context.Context, stationID string, transactionID int) (string, error) {
	if m.RemoteStopFunc != nil {
		return m.RemoteStopFunc(ctx, stationID, transactionID)
	}
	return "Accepted", nil
}

func (m *MockCommandService) Reset(ctx context.Context, stationID, kind string) (string, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, stationID, kind)
	}
	return "Accepted", nil
}

func (m *MockCommandService) UnlockConnector(ctx context.Context, stationID string, connectorID int) (string, error) {
	if m.UnlockConnectorFunc != nil {
		return m.UnlockConnectorFunc(ctx, stationID, connectorID)
	}
	return "Unlocked", nil
}

func (m *MockCommandService) GetConfiguration(ctx context.Context, stationID string, keys []string) (*domain.StationConfiguration, error) {
	if m.GetConfigurationFunc != nil {
		return m.GetConfigurationFunc(ctx, stationID, keys)
	}
	return &domain.StationConfiguration{}, nil
}

func (m *MockCommandService) ChangeConfiguration(ctx context.Context, stationID, key, value string) (string, error) {
	if m.ChangeConfigurationFunc != nil {
		return m.ChangeConfigurationFunc(ctx, stationID, key, value)
	}
	return "Accepted", nil
}

func (m *MockCommandService) TriggerMessage(ctx context.Context, stationID, message string, connectorID *int) (string, error) {
	if m.TriggerMessageFunc != nil {
		return m.TriggerMessageFunc(ctx, stationID, message, connectorID)
	}
	return "Accepted", nil
}

func (m *MockCommandService) ReserveNow(ctx context.Context, stationID string, r *domain.Reservation) (string, error) {
	if m.ReserveNowFunc != nil {
		return m.ReserveNowFunc(ctx, stationID, r)
	}
	return "Accepted", nil
}

func (m *MockCommandService) CancelReservation(ctx context.Context, stationID string, reservationID int) (string, error) {
	if m.CancelReservationFunc != nil {
		return m.CancelReservationFunc(ctx, stationID, reservationID)
	}
	return "Accepted", nil
}

func (m *MockCommandService) DataTransfer(ctx context.Context, stationID, vendorID, messageID, data string) (string, string, error) {
	if m.DataTransferFunc != nil {
		return m.DataTransferFunc(ctx, stationID, vendorID, messageID, data)
	}
	return "Accepted", "", nil
}

// MockReservationService is a mock implementation of ReservationService interface
type MockReservationService struct {
	ReserveFunc       func(ctx context.Context, req *domain.ReservationRequest) (*domain.Reservation, error)
	CancelFunc        func(ctx context.Context, reservationID int) (string, error)
	GetFunc           func(ctx context.Context, reservationID int) (*domain.Reservation, error)
	ExpireOverdueFunc func(ctx context.Context) (int64, error)
}

func (m *MockReservationService) Reserve(ctx context.Context, req *domain.ReservationRequest) (*domain.Reservation, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, req)
	}
	return &domain.Reservation{Status: domain.ReservationAccepted}, nil
}

func (m *MockReservationService) Cancel(ctx context.Context, reservationID int) (string, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, reservationID)
	}
	return "Accepted", nil
}

func (m *MockReservationService) Get(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, reservationID)
	}
	return nil, nil
}

func (m *MockReservationService) ExpireOverdue(ctx context.Context) (int64, error) {
	if m.ExpireOverdueFunc != nil {
		return m.ExpireOverdueFunc(ctx)
	}
	return 0, nil
}
