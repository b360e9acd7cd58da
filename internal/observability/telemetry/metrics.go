package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de negócio
	ConnectedStations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocpp_connected_stations",
		Help: "Number of stations with a live WebSocket session",
	})

	TransactionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocpp_transactions_started_total",
		Help: "Total charging transactions started",
	})

	TransactionsStoppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocpp_transactions_stopped_total",
		Help: "Total charging transactions stopped",
	})

	MeterSamplesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocpp_meter_samples_dropped_total",
		Help: "Meter value batches dropped because the write buffer was full",
	})

	MeterBufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocpp_meter_buffer_depth",
		Help: "Meter value batches currently buffered for the flusher",
	})

	// Métricas de infraestrutura
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_messages_total",
		Help: "OCPP messages by action and direction",
	}, []string{"action", "direction"})

	CallErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_call_errors_total",
		Help: "CallError frames sent to stations by error code",
	}, []string{"code"})

	CallTimeoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_call_timeouts_total",
		Help: "Server-originated calls that expired without a response",
	}, []string{"action"})

	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ocpp_session_evictions_total",
		Help: "Sessions closed because the station reconnected",
	})

	RepositoryRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_repository_retries_total",
		Help: "Retries of transient repository failures by operation",
	}, []string{"operation"})

	DatabaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ocpp_database_latency_seconds",
		Help:    "Repository operation latency",
		Buckets: prometheus.DefBuckets,
	})
)
