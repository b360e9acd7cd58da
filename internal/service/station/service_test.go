package station

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/mocks"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestRegisterBoot_Accepted(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var savedStation *domain.Station
	var savedEvent *domain.BootEvent
	mockRepo := &mocks.MockStationRepository{
		RecordBootFunc: func(ctx context.Context, station *domain.Station, event *domain.BootEvent) error {
			savedStation = station
			savedEvent = event
			return nil
		},
	}
	mockQueue := mocks.NewMockMessageQueue()
	service := NewService(mockRepo, mockQueue, nil, newTestLogger())

	bootAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Act
	status, err := service.RegisterBoot(ctx, &domain.BootRequest{
		StationID:       "CP_1",
		Vendor:          "GoCharge",
		Model:           "SimulatorV1",
		SerialNumber:    "SIM001",
		FirmwareVersion: "1.0.0",
		Timestamp:       bootAt,
	})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if status != domain.RegistrationAccepted {
		t.Errorf("expected Accepted, got %s", status)
	}
	if savedStation == nil || savedEvent == nil {
		t.Fatal("expected the station and the boot event to be recorded")
	}
	if savedStation.RegistrationStatus != domain.RegistrationAccepted {
		t.Errorf("expected the stored verdict Accepted, got %s", savedStation.RegistrationStatus)
	}
	if savedStation.LastBootAt == nil || !savedStation.LastBootAt.Equal(bootAt) {
		t.Errorf("expected last boot at %v, got %v", bootAt, savedStation.LastBootAt)
	}
	if savedEvent.Vendor != "GoCharge" {
		t.Errorf("boot event fields did not survive: %+v", savedEvent)
	}

	published := mockQueue.GetPublishedMessages(SubjectBoot)
	if len(published) != 1 {
		t.Fatalf("expected 1 boot event, got %d", len(published))
	}
	var event map[string]interface{}
	_ = json.Unmarshal(published[0], &event)
	if event["station_id"] != "CP_1" || event["status"] != "Accepted" {
		t.Errorf("unexpected event payload: %v", event)
	}
}

func TestRegisterBoot_Denylisted(t *testing.T) {
	// Arrange
	var savedStation *domain.Station
	mockRepo := &mocks.MockStationRepository{
		RecordBootFunc: func(ctx context.Context, station *domain.Station, event *domain.BootEvent) error {
			savedStation = station
			return nil
		},
	}
	mockQueue := mocks.NewMockMessageQueue()
	service := NewService(mockRepo, mockQueue, []string{"CP_BAD", ""}, newTestLogger())

	// Act
	status, err := service.RegisterBoot(context.Background(), &domain.BootRequest{
		StationID: "CP_BAD",
		Vendor:    "V",
		Model:     "M",
		Timestamp: time.Now().UTC(),
	})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if status != domain.RegistrationRejected {
		t.Errorf("expected Rejected, got %s", status)
	}
	// The rejection is still recorded for the audit trail.
	if savedStation == nil || savedStation.RegistrationStatus != domain.RegistrationRejected {
		t.Errorf("expected a recorded Rejected station, got %+v", savedStation)
	}
	published := mockQueue.GetPublishedMessages(SubjectBoot)
	if len(published) != 1 {
		t.Fatalf("expected the boot event despite rejection, got %d", len(published))
	}
	var event map[string]interface{}
	_ = json.Unmarshal(published[0], &event)
	if event["status"] != "Rejected" {
		t.Errorf("expected a Rejected event, got %v", event)
	}
}

func TestRegisterBoot_DenylistVerdictSurvivesStorageFailure(t *testing.T) {
	// A broken database must not let a denylisted station in.
	mockRepo := &mocks.MockStationRepository{
		RecordBootFunc: func(ctx context.Context, station *domain.Station, event *domain.BootEvent) error {
			return domain.Transient(errors.New("connection refused"))
		},
	}
	service := NewService(mockRepo, mocks.NewMockMessageQueue(), []string{"CP_BAD"}, newTestLogger())

	status, err := service.RegisterBoot(context.Background(), &domain.BootRequest{
		StationID: "CP_BAD",
		Vendor:    "V",
		Model:     "M",
		Timestamp: time.Now().UTC(),
	})

	if err != nil {
		t.Fatalf("the verdict must stand even when the audit write fails, got %v", err)
	}
	if status != domain.RegistrationRejected {
		t.Errorf("expected Rejected, got %s", status)
	}
}

func TestRegisterBoot_StorageFailurePropagates(t *testing.T) {
	mockRepo := &mocks.MockStationRepository{
		RecordBootFunc: func(ctx context.Context, station *domain.Station, event *domain.BootEvent) error {
			return domain.Transient(errors.New("connection refused"))
		},
	}
	mockQueue := mocks.NewMockMessageQueue()
	service := NewService(mockRepo, mockQueue, nil, newTestLogger())

	_, err := service.RegisterBoot(context.Background(), &domain.BootRequest{
		StationID: "CP_1",
		Vendor:    "V",
		Model:     "M",
		Timestamp: time.Now().UTC(),
	})

	if err == nil {
		t.Fatal("expected the storage error back")
	}
	if len(mockQueue.GetPublishedMessages(SubjectBoot)) != 0 {
		t.Error("a failed boot must not publish an event")
	}
}

func TestRegisterBoot_PublishFailureTolerated(t *testing.T) {
	mockQueue := mocks.NewMockMessageQueue()
	mockQueue.PublishFunc = func(subject string, data []byte) error {
		return errors.New("broker unavailable")
	}
	service := NewService(&mocks.MockStationRepository{}, mockQueue, nil, newTestLogger())

	status, err := service.RegisterBoot(context.Background(), &domain.BootRequest{
		StationID: "CP_1",
		Vendor:    "V",
		Model:     "M",
		Timestamp: time.Now().UTC(),
	})

	if err != nil {
		t.Fatalf("losing an event must not fail the boot, got %v", err)
	}
	if status != domain.RegistrationAccepted {
		t.Errorf("expected Accepted, got %s", status)
	}
}

func TestRecordStatus_PublishesWhenApplied(t *testing.T) {
	// Arrange
	var savedRec *domain.StatusRecord
	mockRepo := &mocks.MockStationRepository{
		RecordStatusFunc: func(ctx context.Context, rec *domain.StatusRecord) (bool, error) {
			savedRec = rec
			return true, nil
		},
	}
	mockQueue := mocks.NewMockMessageQueue()
	service := NewService(mockRepo, mockQueue, nil, newTestLogger())

	// Act
	err := service.RecordStatus(context.Background(), &domain.StatusUpdate{
		StationID:   "CP_1",
		ConnectorID: 2,
		Status:      domain.StatusCharging,
		ErrorCode:   "NoError",
		Timestamp:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if savedRec == nil || savedRec.Status != domain.StatusCharging {
		t.Errorf("status record did not survive: %+v", savedRec)
	}
	published := mockQueue.GetPublishedMessages(SubjectStatus)
	if len(published) != 1 {
		t.Fatalf("expected 1 status event, got %d", len(published))
	}
	var event map[string]interface{}
	_ = json.Unmarshal(published[0], &event)
	if event["connector_id"] != float64(2) || event["status"] != "Charging" {
		t.Errorf("unexpected event payload: %v", event)
	}
}

func TestRecordStatus_StaleUpdateSkipsPublish(t *testing.T) {
	mockRepo := &mocks.MockStationRepository{
		RecordStatusFunc: func(ctx context.Context, rec *domain.StatusRecord) (bool, error) {
			return false, nil
		},
	}
	mockQueue := mocks.NewMockMessageQueue()
	service := NewService(mockRepo, mockQueue, nil, newTestLogger())

	err := service.RecordStatus(context.Background(), &domain.StatusUpdate{
		StationID:   "CP_1",
		ConnectorID: 1,
		Status:      domain.StatusAvailable,
		ErrorCode:   "NoError",
		Timestamp:   time.Now().UTC(),
	})

	if err != nil {
		t.Fatalf("a stale update is not an error, got %v", err)
	}
	if len(mockQueue.GetPublishedMessages(SubjectStatus)) != 0 {
		t.Error("a skipped update must not publish an event")
	}
}

func TestHeartbeat_Delegates(t *testing.T) {
	var gotStation string
	var gotAt time.Time
	mockRepo := &mocks.MockStationRepository{
		RecordHeartbeatFunc: func(ctx context.Context, stationID string, at time.Time) error {
			gotStation = stationID
			gotAt = at
			return nil
		},
	}
	service := NewService(mockRepo, nil, nil, newTestLogger())
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := service.Heartbeat(context.Background(), "CP_1", at); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotStation != "CP_1" || !gotAt.Equal(at) {
		t.Errorf("heartbeat did not reach the repository: %s %v", gotStation, gotAt)
	}
}
