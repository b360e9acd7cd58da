// Package transaction implements the charging session ledger: transaction
// start/stop persistence and the buffered ingestion path for meter values.
package transaction

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/adapter/queue"
	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// Queue subjects for transaction lifecycle events.
const (
	SubjectStarted = "ocpp.events.transaction.started"
	SubjectStopped = "ocpp.events.transaction.stopped"
)

const (
	// duplicateWindow bounds how far back AllocateTransaction looks when
	// deciding that a StartTransaction is a retransmission.
	duplicateWindow = 60 * time.Second

	// maxStopAttempts caps out-of-band retries of a failed stop before the
	// request is abandoned.
	maxStopAttempts = 5

	flushTimeout = 10 * time.Second
)

type stopRetry struct {
	req     *domain.StopRequest
	attempt int
}

type Service struct {
	repo    ports.TransactionRepository
	mq      queue.MessageQueue
	meters  chan *domain.MeterBatch
	retries chan stopRetry
	log     *zap.Logger
}

// NewService builds the transaction service. bufferSize bounds the meter
// value queue; once full the oldest batch is dropped to keep ingestion
// non-blocking. Run must be started for buffered writes to reach the
// repository.
func NewService(repo ports.TransactionRepository, mq queue.MessageQueue, bufferSize int, log *zap.Logger) *Service {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Service{
		repo:    repo,
		mq:      mq,
		meters:  make(chan *domain.MeterBatch, bufferSize),
		retries: make(chan stopRetry, 64),
		log:     log,
	}
}

var _ ports.TransactionService = (*Service)(nil)

type transactionEventMsg struct {
	TransactionID int       `json:"transaction_id"`
	StationID     string    `json:"station_id"`
	ConnectorID   int       `json:"connector_id"`
	IdTag         string    `json:"id_tag,omitempty"`
	TotalEnergy   int64     `json:"total_energy_wh,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (s *Service) Start(ctx context.Context, req *domain.StartRequest) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		StationID:     req.StationID,
		ConnectorID:   req.ConnectorID,
		IdTag:         req.IdTag,
		StartValue:    req.MeterStart,
		StartTime:     req.Timestamp,
		ReservationID: req.ReservationID,
	}
	created, err := s.repo.AllocateTransaction(ctx, tx, duplicateWindow)
	if err != nil {
		return nil, err
	}

	telemetry.TransactionsStartedTotal.Inc()
	s.log.Info("Transaction started",
		zap.Int("transaction_id", created.ID),
		zap.String("station_id", created.StationID),
		zap.Int("connector_id", created.ConnectorID),
		zap.String("id_tag", created.IdTag),
	)
	s.publish(SubjectStarted, transactionEventMsg{
		TransactionID: created.ID,
		StationID:     created.StationID,
		ConnectorID:   created.ConnectorID,
		IdTag:         created.IdTag,
		Timestamp:     created.StartTime,
	})
	return created, nil
}

// Stop finalizes a transaction. A transient storage failure does not bounce
// back to the charge point: the request is queued for out-of-band retry and
// the caller gets a best-effort view of the closed transaction, so the
// station can release the cable instead of retransmitting forever.
func (s *Service) Stop(ctx context.Context, req *domain.StopRequest) (*domain.Transaction, error) {
	tx, err := s.repo.FinalizeTransaction(ctx, req)
	if err != nil {
		if domain.IsTransient(err) {
			s.deferStop(req, 1, err)
			stopTime := req.Timestamp
			stopValue := req.MeterStop
			return &domain.Transaction{
				ID:        req.TransactionID,
				StationID: req.StationID,
				IdTag:     req.IdTag,
				StopValue: &stopValue,
				StopTime:  &stopTime,
				Reason:    req.Reason,
			}, nil
		}
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}

	s.recordStopped(tx)
	return tx, nil
}

func (s *Service) deferStop(req *domain.StopRequest, attempt int, cause error) {
	select {
	case s.retries <- stopRetry{req: req, attempt: attempt}:
		s.log.Warn("StopTransaction deferred for retry",
			zap.Int("transaction_id", req.TransactionID),
			zap.String("station_id", req.StationID),
			zap.Int("attempt", attempt),
			zap.Error(cause),
		)
	default:
		s.log.Error("Stop retry queue full, abandoning StopTransaction",
			zap.Int("transaction_id", req.TransactionID),
			zap.String("station_id", req.StationID),
			zap.Error(cause),
		)
	}
}

func (s *Service) recordStopped(tx *domain.Transaction) {
	telemetry.TransactionsStoppedTotal.Inc()
	s.log.Info("Transaction stopped",
		zap.Int("transaction_id", tx.ID),
		zap.String("station_id", tx.StationID),
		zap.Int64("total_energy_wh", tx.TotalEnergy),
		zap.String("reason", tx.Reason),
	)
	at := time.Now().UTC()
	if tx.StopTime != nil {
		at = *tx.StopTime
	}
	s.publish(SubjectStopped, transactionEventMsg{
		TransactionID: tx.ID,
		StationID:     tx.StationID,
		ConnectorID:   tx.ConnectorID,
		IdTag:         tx.IdTag,
		TotalEnergy:   tx.TotalEnergy,
		Reason:        tx.Reason,
		Timestamp:     at,
	})
}

// EnqueueMeterValues accepts a batch for asynchronous persistence. It never
// blocks the caller: when the buffer is full the oldest batch is dropped and
// counted, favouring fresh readings over stale ones.
func (s *Service) EnqueueMeterValues(batch *domain.MeterBatch) {
	if batch == nil || len(batch.Samples) == 0 {
		return
	}
	for {
		select {
		case s.meters <- batch:
			telemetry.MeterBufferDepth.Set(float64(len(s.meters)))
			return
		default:
		}
		select {
		case dropped := <-s.meters:
			telemetry.MeterSamplesDroppedTotal.Add(float64(len(dropped.Samples)))
			s.log.Warn("Meter buffer full, dropping oldest batch",
				zap.String("station_id", dropped.StationID),
				zap.Int("samples", len(dropped.Samples)),
			)
		default:
		}
	}
}

func (s *Service) GetTransaction(ctx context.Context, id int) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, stationID string, limit int) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx, stationID, limit)
}

// Run drains the meter buffer and the stop retry queue until ctx is
// cancelled. Call it once, as a goroutine, after NewService.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case batch := <-s.meters:
			telemetry.MeterBufferDepth.Set(float64(len(s.meters)))
			s.flush(ctx, batch)
		case r := <-s.retries:
			s.retryStop(ctx, r)
		}
	}
}

// drain gives buffered batches one final write on shutdown.
func (s *Service) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case batch := <-s.meters:
			s.flush(ctx, batch)
		default:
			telemetry.MeterBufferDepth.Set(0)
			return
		}
	}
}

func (s *Service) flush(ctx context.Context, batch *domain.MeterBatch) {
	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := s.repo.AppendMeterSamples(flushCtx, batch.Samples); err != nil {
		telemetry.MeterSamplesDroppedTotal.Add(float64(len(batch.Samples)))
		s.log.Error("Failed to persist meter samples",
			zap.String("station_id", batch.StationID),
			zap.Int("samples", len(batch.Samples)),
			zap.Error(err),
		)
	}
}

func (s *Service) retryStop(ctx context.Context, r stopRetry) {
	attemptCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	tx, err := s.repo.FinalizeTransaction(attemptCtx, r.req)
	cancel()
	if err == nil {
		if tx != nil {
			s.recordStopped(tx)
		}
		return
	}
	if !domain.IsTransient(err) || r.attempt >= maxStopAttempts {
		s.log.Error("Giving up on StopTransaction retry",
			zap.Int("transaction_id", r.req.TransactionID),
			zap.String("station_id", r.req.StationID),
			zap.Int("attempt", r.attempt),
			zap.Error(err),
		)
		return
	}

	next := r
	next.attempt++
	delay := time.Duration(r.attempt) * 2 * time.Second
	time.AfterFunc(delay, func() {
		select {
		case s.retries <- next:
		default:
			s.log.Error("Stop retry queue full, abandoning StopTransaction",
				zap.Int("transaction_id", next.req.TransactionID),
				zap.String("station_id", next.req.StationID),
			)
		}
	})
}

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
