package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/observability/telemetry"
)

// retryDelays is the backoff schedule for transient failures: three retries
// after the initial attempt.
var retryDelays = []time.Duration{
	100 * time.Millisecond,
	400 * time.Millisecond,
	1600 * time.Millisecond,
}

// Guard wraps every repository operation with retry and a circuit breaker.
// Errors leaving the guard are classified via domain.Transient and
// domain.Permanent so callers can pick a recovery strategy. All repositories
// share one Guard: the database is a single dependency and the breaker state
// must reflect that.
type Guard struct {
	cb  *gobreaker.CircuitBreaker
	log *zap.Logger
}

func NewGuard(log *zap.Logger) *Guard {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "postgres",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Database circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Guard{cb: cb, log: log}
}

// Run executes fn, retrying transient failures on the backoff schedule. The
// op label feeds the retry counter.
func (g *Guard) Run(ctx context.Context, op string, fn func() error) error {
	timer := prometheus.NewTimer(telemetry.DatabaseLatency)
	defer timer.ObserveDuration()

	for attempt := 0; ; attempt++ {
		_, err := g.cb.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.Transient(err)
		}
		if !isRetryable(err) {
			return domain.Permanent(err)
		}
		if attempt >= len(retryDelays) {
			return domain.Transient(err)
		}

		telemetry.RepositoryRetriesTotal.WithLabelValues(op).Inc()
		g.log.Warn("Retrying repository operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return domain.Transient(ctx.Err())
		case <-time.After(retryDelays[attempt]):
		}
	}
}

// isRetryable decides whether a failure may clear on its own. Connection
// level problems, timeouts, deadlocks and serialization conflicts retry;
// constraint violations and anything else deterministic do not.
func isRetryable(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 {
			switch pgErr.Code[:2] {
			case "08", "53", "57": // connection, insufficient resources, operator intervention
				return true
			}
		}
		switch pgErr.Code {
		case "40001", "40P01": // serialization failure, deadlock
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
