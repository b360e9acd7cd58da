package v16

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/observability/telemetry"
)

// StationRegistry maps station ids to live sessions. At most one session per
// id exists at a time; a reconnect evicts the older session (last write
// wins, because stations behind flaky links reconnect before their old
// socket times out).
type StationRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zap.Logger
}

func NewStationRegistry(log *zap.Logger) *StationRegistry {
	return &StationRegistry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Attach registers the session under its station id and returns the evicted
// prior session, if any. The caller closes the prior session once the new
// one is installed.
func (r *StationRegistry) Attach(s *Session) *Session {
	r.mu.Lock()
	prior := r.sessions[s.ID()]
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	if prior != nil {
		r.log.Info("Evicting superseded session", zap.String("station_id", s.ID()))
	}
	telemetry.ConnectedStations.Set(float64(r.Len()))
	return prior
}

// Detach removes the session, but only while it is still the current one;
// an evicted session must not tear down its replacement.
func (r *StationRegistry) Detach(s *Session) bool {
	r.mu.Lock()
	current, ok := r.sessions[s.ID()]
	if ok && current == s {
		delete(r.sessions, s.ID())
	} else {
		ok = false
	}
	r.mu.Unlock()
	telemetry.ConnectedStations.Set(float64(r.Len()))
	return ok
}

// Get returns the live session for a station id.
func (r *StationRegistry) Get(stationID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[stationID]
	return s, ok
}

// IDs lists the connected station ids.
func (r *StationRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns the current sessions.
func (r *StationRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Len reports the number of connected stations.
func (r *StationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepExpiredCalls times out overdue outbound calls across all sessions
// once per second until ctx ends.
func (r *StationRegistry) SweepExpiredCalls(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, s := range r.Snapshot() {
				if n := s.ExpireCalls(now); n > 0 {
					r.log.Warn("Expired outbound calls",
						zap.String("station_id", s.ID()),
						zap.Int("count", n),
					)
				}
			}
		}
	}
}

// CloseAll gracefully closes every session, used at shutdown. Sessions drain
// concurrently; CloseAll returns when all are closed or ctx ends.
func (r *StationRegistry) CloseAll(ctx context.Context, code int, reason string) {
	sessions := r.Snapshot()
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Close(code, reason)
		}(s)
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		r.log.Warn("Shutdown drain deadline hit with sessions still open")
	}
}
