package v16

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seu-repo/ocpp-central/internal/observability/telemetry"
)

var (
	// ErrCallTimeout means the station never answered within the deadline.
	ErrCallTimeout = errors.New("ocpp: call timed out")
	// ErrCallCancelled means the caller gave up or the session went away
	// before an answer arrived.
	ErrCallCancelled = errors.New("ocpp: call cancelled")
	// ErrTooManyCalls means the pending table hit its cap.
	ErrTooManyCalls = errors.New("ocpp: too many pending calls")
)

// maxPendingCalls bounds the per-session table. The call pump keeps one call
// outstanding at a time, so this only trips if the pump is bypassed.
const maxPendingCalls = 16

// CallOutcome is the terminal result of one outbound call: a CallResult
// payload or an error (a *CallError from the station, ErrCallTimeout, or
// ErrCallCancelled).
type CallOutcome struct {
	Result json.RawMessage
	Err    error
}

// pendingCall tracks one in-flight outbound call until it resolves.
type pendingCall struct {
	msgID     string
	action    Action
	sentAt    time.Time
	timeoutAt time.Time
	done      chan CallOutcome // buffered, written exactly once
}

// CallRegistry is the per-session table of in-flight outbound calls keyed by
// message id. Every registered call resolves exactly once: by a matching
// CallResult or CallError, by expiry, or by session teardown.
type CallRegistry struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
}

func NewCallRegistry() *CallRegistry {
	return &CallRegistry{pending: make(map[string]*pendingCall)}
}

// register adds a call to the table. The message id must be fresh.
func (r *CallRegistry) register(msgID string, action Action, timeout time.Duration) (*pendingCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pending[msgID]; exists {
		return nil, fmt.Errorf("ocpp: duplicate message id %q", msgID)
	}
	if len(r.pending) >= maxPendingCalls {
		return nil, ErrTooManyCalls
	}
	now := time.Now()
	pc := &pendingCall{
		msgID:     msgID,
		action:    action,
		sentAt:    now,
		timeoutAt: now.Add(timeout),
		done:      make(chan CallOutcome, 1),
	}
	r.pending[msgID] = pc
	return pc, nil
}

// resolve completes the call registered under msgID, returning its action.
// ok is false when no such call is pending, which the session logs and
// otherwise ignores.
func (r *CallRegistry) resolve(msgID string, outcome CallOutcome) (Action, bool) {
	r.mu.Lock()
	pc, ok := r.pending[msgID]
	if ok {
		delete(r.pending, msgID)
	}
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	pc.done <- outcome
	return pc.action, true
}

// expireDue times out every call whose deadline has passed.
func (r *CallRegistry) expireDue(now time.Time) int {
	r.mu.Lock()
	var due []*pendingCall
	for id, pc := range r.pending {
		if now.After(pc.timeoutAt) {
			due = append(due, pc)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()
	for _, pc := range due {
		telemetry.CallTimeoutsTotal.WithLabelValues(string(pc.action)).Inc()
		pc.done <- CallOutcome{Err: ErrCallTimeout}
	}
	return len(due)
}

// abort resolves everything still pending with err. Used at session teardown.
func (r *CallRegistry) abort(err error) int {
	r.mu.Lock()
	aborted := make([]*pendingCall, 0, len(r.pending))
	for id, pc := range r.pending {
		aborted = append(aborted, pc)
		delete(r.pending, id)
	}
	r.mu.Unlock()
	for _, pc := range aborted {
		pc.done <- CallOutcome{Err: err}
	}
	return len(aborted)
}

// Len reports how many calls are awaiting a response.
func (r *CallRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
