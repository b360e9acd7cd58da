package reservation

import (
	"context"
	"errors"
	"sync/atomic"
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

func TestReserve_StationAccepts(t *testing.T) {
	// Arrange
	ctx := context.Background()
	var quoted *domain.Reservation
	var updatedID int
	var updatedStatus domain.ReservationStatus
	mockRepo := &mocks.MockReservationRepository{
		CreateReservationFunc: func(ctx context.Context, r *domain.Reservation) error {
			if r.Status != domain.ReservationPending {
				t.Errorf("expected the row created Pending, got %s", r.Status)
			}
			r.ID = 7
			return nil
		},
		UpdateReservationStatusFunc: func(ctx context.Context, id int, status domain.ReservationStatus) error {
			updatedID = id
			updatedStatus = status
			return nil
		},
	}
	mockCommands := &mocks.MockCommandService{
		ReserveNowFunc: func(ctx context.Context, stationID string, r *domain.Reservation) (string, error) {
			quoted = r
			return "Accepted", nil
		},
	}
	service := NewService(mockRepo, mockCommands, newTestLogger())
	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	// Act
	res, err := service.Reserve(ctx, &domain.ReservationRequest{
		StationID:   "CP_1",
		ConnectorID: 2,
		IdTag:       "TAG-1",
		ExpiryDate:  expiry,
	})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.ID != 7 {
		t.Errorf("expected the allocated id 7, got %d", res.ID)
	}
	if res.Status != domain.ReservationAccepted {
		t.Errorf("expected Accepted, got %s", res.Status)
	}
	if res.ExpiryDate.Location() != time.UTC {
		t.Errorf("expected the expiry stored in UTC, got %v", res.ExpiryDate.Location())
	}
	// The row exists before the id goes on the wire.
	if quoted == nil || quoted.ID != 7 {
		t.Fatalf("expected the allocated id quoted to the station, got %+v", quoted)
	}
	if updatedID != 7 || updatedStatus != domain.ReservationAccepted {
		t.Errorf("expected row 7 marked Accepted, got %d %s", updatedID, updatedStatus)
	}
}

func TestReserve_StationRejects(t *testing.T) {
	// Arrange
	var updatedStatus domain.ReservationStatus
	mockRepo := &mocks.MockReservationRepository{
		CreateReservationFunc: func(ctx context.Context, r *domain.Reservation) error {
			r.ID = 8
			return nil
		},
		UpdateReservationStatusFunc: func(ctx context.Context, id int, status domain.ReservationStatus) error {
			updatedStatus = status
			return nil
		},
	}
	mockCommands := &mocks.MockCommandService{
		ReserveNowFunc: func(ctx context.Context, stationID string, r *domain.Reservation) (string, error) {
			return "Occupied", nil
		},
	}
	service := NewService(mockRepo, mockCommands, newTestLogger())

	// Act
	res, err := service.Reserve(context.Background(), &domain.ReservationRequest{
		StationID:   "CP_1",
		ConnectorID: 1,
		IdTag:       "TAG-1",
		ExpiryDate:  time.Now().Add(time.Hour),
	})

	// Assert
	if err != nil {
		t.Fatalf("a refusal is a verdict, not an error, got %v", err)
	}
	if res.Status != domain.ReservationRejected {
		t.Errorf("expected Rejected, got %s", res.Status)
	}
	if updatedStatus != domain.ReservationRejected {
		t.Errorf("expected the row marked Rejected, got %s", updatedStatus)
	}
}

func TestReserve_CommandErrorMarksRejected(t *testing.T) {
	// Arrange
	var updatedStatus domain.ReservationStatus
	mockRepo := &mocks.MockReservationRepository{
		CreateReservationFunc: func(ctx context.Context, r *domain.Reservation) error {
			r.ID = 9
			return nil
		},
		UpdateReservationStatusFunc: func(ctx context.Context, id int, status domain.ReservationStatus) error {
			updatedStatus = status
			return nil
		},
	}
	mockCommands := &mocks.MockCommandService{
		ReserveNowFunc: func(ctx context.Context, stationID string, r *domain.Reservation) (string, error) {
			return "", errors.New("station offline")
		},
	}
	service := NewService(mockRepo, mockCommands, newTestLogger())

	// Act
	res, err := service.Reserve(context.Background(), &domain.ReservationRequest{
		StationID:   "CP_GONE",
		ConnectorID: 1,
		IdTag:       "TAG-1",
		ExpiryDate:  time.Now().Add(time.Hour),
	})

	// Assert
	if err == nil {
		t.Fatal("expected the command error back")
	}
	if res != nil {
		t.Errorf("expected no reservation on error, got %+v", res)
	}
	if updatedStatus != domain.ReservationRejected {
		t.Errorf("expected the orphaned row marked Rejected, got %s", updatedStatus)
	}
}

func TestReserve_CreateFailureNeverReachesStation(t *testing.T) {
	mockRepo := &mocks.MockReservationRepository{
		CreateReservationFunc: func(ctx context.Context, r *domain.Reservation) error {
			return domain.Transient(errors.New("connection refused"))
		},
	}
	mockCommands := &mocks.MockCommandService{
		ReserveNowFunc: func(ctx context.Context, stationID string, r *domain.Reservation) (string, error) {
			t.Error("no id may go on the wire without a row behind it")
			return "Accepted", nil
		},
	}
	service := NewService(mockRepo, mockCommands, newTestLogger())

	_, err := service.Reserve(context.Background(), &domain.ReservationRequest{
		StationID:   "CP_1",
		ConnectorID: 1,
		IdTag:       "TAG-1",
		ExpiryDate:  time.Now().Add(time.Hour),
	})

	if err == nil {
		t.Fatal("expected the storage error back")
	}
}

func TestCancel_StationConfirms(t *testing.T) {
	// Arrange
	var updatedID int
	var updatedStatus domain.ReservationStatus
	mockRepo := &mocks.MockReservationRepository{
		GetReservationFunc: func(ctx context.Context, id int) (*domain.Reservation, error) {
			return &domain.Reservation{ID: id, StationID: "CP_1", Status: domain.ReservationAccepted}, nil
		},
		UpdateReservationStatusFunc: func(ctx context.Context, id int, status domain.ReservationStatus) error {
			updatedID = id
			updatedStatus = status
			return nil
		},
	}
	mockCommands := &mocks.MockCommandService{
		CancelReservationFunc: func(ctx context.Context, stationID string, reservationID int) (string, error) {
			if stationID != "CP_1" || reservationID != 7 {
				t.Errorf("expected CP_1/7 on the wire, got %s/%d", stationID, reservationID)
			}
			return "Accepted", nil
		},
	}
	service := NewService(mockRepo, mockCommands, newTestLogger())

	// Act
	verdict, err := service.Cancel(context.Background(), 7)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if verdict != "Accepted" {
		t.Errorf("expected Accepted, got %s", verdict)
	}
	if updatedID != 7 || updatedStatus != domain.ReservationCancelled {
		t.Errorf("expected row 7 marked Cancelled, got %d %s", updatedID, updatedStatus)
	}
}

func TestCancel_StationRefusesLeavesRowIntact(t *testing.T) {
	mockRepo := &mocks.MockReservationRepository{
		GetReservationFunc: func(ctx context.Context, id int) (*domain.Reservation, error) {
			return &domain.Reservation{ID: id, StationID: "CP_1", Status: domain.ReservationAccepted}, nil
		},
		UpdateReservationStatusFunc: func(ctx context.Context, id int, status domain.ReservationStatus) error {
			t.Errorf("a refused cancel must not touch the row, got %s", status)
			return nil
		},
	}
	mockCommands := &mocks.MockCommandService{
		CancelReservationFunc: func(ctx context.Context, stationID string, reservationID int) (string, error) {
			return "Rejected", nil
		},
	}
	service := NewService(mockRepo, mockCommands, newTestLogger())

	verdict, err := service.Cancel(context.Background(), 7)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if verdict != "Rejected" {
		t.Errorf("expected Rejected, got %s", verdict)
	}
}

func TestCancel_UnknownReservation(t *testing.T) {
	service := NewService(&mocks.MockReservationRepository{}, &mocks.MockCommandService{}, newTestLogger())

	_, err := service.Cancel(context.Background(), 404)

	if !errors.Is(err, domain.ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestCancel_CommandErrorPropagates(t *testing.T) {
	mockRepo := &mocks.MockReservationRepository{
		GetReservationFunc: func(ctx context.Context, id int) (*domain.Reservation, error) {
			return &domain.Reservation{ID: id, StationID: "CP_GONE", Status: domain.ReservationAccepted}, nil
		},
	}
	mockCommands := &mocks.MockCommandService{
		CancelReservationFunc: func(ctx context.Context, stationID string, reservationID int) (string, error) {
			return "", errors.New("station offline")
		},
	}
	service := NewService(mockRepo, mockCommands, newTestLogger())

	verdict, err := service.Cancel(context.Background(), 7)

	if err == nil {
		t.Fatal("expected the command error back")
	}
	if verdict != "" {
		t.Errorf("expected no verdict on error, got %s", verdict)
	}
}

func TestExpireOverdue_Delegates(t *testing.T) {
	var gotNow time.Time
	mockRepo := &mocks.MockReservationRepository{
		ExpireOverdueFunc: func(ctx context.Context, now time.Time) (int64, error) {
			gotNow = now
			return 3, nil
		},
	}
	service := NewService(mockRepo, &mocks.MockCommandService{}, newTestLogger())
	before := time.Now().UTC()

	n, err := service.ExpireOverdue(context.Background())

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 expired, got %d", n)
	}
	if gotNow.Before(before) || gotNow.Location() != time.UTC {
		t.Errorf("expected a current UTC cutoff, got %v", gotNow)
	}
}

func TestRunSweeper_SweepsUntilCancelled(t *testing.T) {
	// Arrange
	var sweeps atomic.Int32
	swept := make(chan struct{}, 1)
	svc := &mocks.MockReservationService{
		ExpireOverdueFunc: func(ctx context.Context) (int64, error) {
			if sweeps.Add(1) == 1 {
				// First sweep fails; the sweeper must carry on.
				return 0, errors.New("deadlock detected")
			}
			select {
			case swept <- struct{}{}:
			default:
			}
			return 2, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Act
	go func() {
		RunSweeper(ctx, svc, 10*time.Millisecond, newTestLogger())
		close(done)
	}()

	// Assert
	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never recovered from the failed sweep")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
	if sweeps.Load() < 2 {
		t.Errorf("expected at least 2 sweeps, got %d", sweeps.Load())
	}
}
