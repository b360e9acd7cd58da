package v16

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/observability/telemetry"
)

// ErrSessionClosed means the station no longer has a usable session.
var ErrSessionClosed = errors.New("ocpp: session closed")

// SessionState tracks a session through its lifecycle.
type SessionState int32

const (
	StateNegotiating SessionState = iota
	StateActive
	StateDraining
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig carries the per-session tunables.
type SessionConfig struct {
	// CallTimeout bounds server-originated calls awaiting a response.
	CallTimeout time.Duration
	// DrainTimeout bounds how long a graceful close waits for in-flight
	// handlers.
	DrainTimeout time.Duration
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// PongTimeout is how long the socket may stay silent before it is
	// declared dead.
	PongTimeout time.Duration
	// WriteTimeout bounds individual socket writes.
	WriteTimeout time.Duration
	// MaxMessageBytes caps inbound frames.
	MaxMessageBytes int64
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 256 * 1024
	}
	return c
}

// outboundCall is one queued server-originated call.
type outboundCall struct {
	ctx     context.Context
	action  Action
	payload interface{}
	result  chan CallOutcome // buffered, written exactly once
}

// callQueue is the unbounded FIFO feeding the call pump.
type callQueue struct {
	mu    sync.Mutex
	items []*outboundCall
	wake  chan struct{}
}

func newCallQueue() *callQueue {
	return &callQueue{wake: make(chan struct{}, 1)}
}

func (q *callQueue) push(oc *outboundCall) {
	q.mu.Lock()
	q.items = append(q.items, oc)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *callQueue) pop() *outboundCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	oc := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return oc
}

func (q *callQueue) drain() []*outboundCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Session owns one station's WebSocket connection. A reader goroutine is the
// only reader, a writer goroutine is the only writer, and every inbound call
// runs in its own handler goroutine so a slow repository never stalls the
// socket. Server-originated calls go through a pump that keeps at most one
// call outstanding on the wire.
type Session struct {
	id     string
	conn   *websocket.Conn
	router *Router
	calls  *CallRegistry
	cfg    SessionConfig
	log    *zap.Logger

	state        atomic.Int32
	lastActivity atomic.Int64 // unix nanos
	connectedAt  time.Time

	outbound chan []byte
	queue    *callQueue
	handlers sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// onClose runs exactly once after teardown, used by the server to
	// detach the session from the registry.
	onClose func(*Session)
}

// NewSession wraps an upgraded connection. Start must be called to begin
// processing.
func NewSession(id string, conn *websocket.Conn, router *Router, cfg SessionConfig, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          id,
		conn:        conn,
		router:      router,
		calls:       NewCallRegistry(),
		cfg:         cfg.withDefaults(),
		log:         log.With(zap.String("station_id", id)),
		connectedAt: time.Now().UTC(),
		outbound:    make(chan []byte, 64),
		queue:       newCallQueue(),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	s.state.Store(int32(StateNegotiating))
	s.lastActivity.Store(s.connectedAt.UnixNano())
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

func (s *Session) ConnectedAt() time.Time { return s.connectedAt }

func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load()).UTC()
}

// PendingCalls reports how many server-originated calls await a response.
func (s *Session) PendingCalls() int { return s.calls.Len() }

// SetOnClose registers the teardown hook. Must be called before Start.
func (s *Session) SetOnClose(fn func(*Session)) { s.onClose = fn }

// Start moves the session to Active and launches its goroutines.
func (s *Session) Start() {
	s.state.Store(int32(StateActive))
	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})
	go s.readLoop()
	go s.writeLoop()
	go s.callPump()
	s.log.Info("Session started", zap.String("remote_addr", s.RemoteAddr()))
}

// Call sends a server-originated call and waits for the station's answer.
// Calls are delivered in submission order with a single call outstanding at
// a time; each waits at most the configured call timeout once on the wire.
func (s *Session) Call(ctx context.Context, action Action, payload interface{}) (json.RawMessage, error) {
	if st := s.State(); st != StateActive {
		return nil, ErrSessionClosed
	}
	oc := &outboundCall{
		ctx:     ctx,
		action:  action,
		payload: payload,
		result:  make(chan CallOutcome, 1),
	}
	s.queue.push(oc)
	select {
	case out := <-oc.result:
		return out.Result, out.Err
	case <-ctx.Done():
		// The pump discards the entry when it reaches it; the buffered
		// result channel keeps that from blocking.
		return nil, ctx.Err()
	}
}

// ExpireCalls times out overdue outbound calls. Driven by the registry's
// sweep ticker.
func (s *Session) ExpireCalls(now time.Time) int {
	return s.calls.expireDue(now)
}

// Close drains in-flight handlers and closes the socket with the given close
// code. Safe to call from any goroutine, repeatedly.
func (s *Session) Close(code int, reason string) {
	s.shutdown(code, reason, s.cfg.DrainTimeout, true)
}

// Evict closes the session immediately because the station opened a newer
// connection. No drain grace: the replacement session is already live.
func (s *Session) Evict() {
	telemetry.EvictionsTotal.Inc()
	s.shutdown(websocket.CloseServiceRestart, "superseded by newer connection", 0, true)
}

// ScheduleClose closes the session after a short delay, giving the writer
// time to flush a final reply (used after responding to a rejected boot).
func (s *Session) ScheduleClose(delay time.Duration, code int, reason string) {
	time.AfterFunc(delay, func() { s.Close(code, reason) })
}

// terminate tears the session down after a socket-level failure. The peer is
// gone, so no close frame is attempted.
func (s *Session) terminate(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.log.Info("Station disconnected", zap.String("reason", err.Error()))
	} else {
		s.log.Warn("Session terminated", zap.Error(err))
	}
	s.shutdown(0, "", 0, false)
}

func (s *Session) shutdown(code int, reason string, drain time.Duration, sendCloseFrame bool) {
	s.once.Do(func() {
		s.state.Store(int32(StateDraining))
		if drain > 0 {
			// Let in-flight handlers finish and queue their replies while
			// the writer is still live.
			waitWithTimeout(&s.handlers, drain)
		}
		s.cancel()
		close(s.done)
		for _, oc := range s.queue.drain() {
			oc.result <- CallOutcome{Err: ErrCallCancelled}
		}
		s.calls.abort(ErrCallCancelled)
		if sendCloseFrame {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		_ = s.conn.Close()
		s.state.Store(int32(StateClosed))
		s.log.Info("Session closed", zap.Int("close_code", code))
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func waitWithTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return true
	case <-time.After(d):
		return false
	}
}

// readLoop is the sole reader of the socket.
func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.terminate(err)
			return
		}
		// Any inbound traffic proves liveness, not just pongs.
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		s.lastActivity.Store(time.Now().UnixNano())
		s.dispatch(data)
	}
}

// dispatch routes one decoded frame. It must never block: calls are handed
// to their own goroutines and responses resolve through the call registry.
func (s *Session) dispatch(data []byte) {
	frame, werr := Decode(data)
	if werr != nil {
		if werr.MessageID == "" {
			// Beyond salvage, nothing to correlate a CallError with.
			s.log.Warn("Dropping undecodable frame", zap.String("error", werr.Description))
			return
		}
		s.log.Warn("Rejecting malformed frame",
			zap.String("message_id", werr.MessageID),
			zap.String("code", string(werr.Code)),
			zap.String("error", werr.Description),
		)
		s.sendCallError(werr.MessageID, NewCallError(werr.Code, werr.Description))
		return
	}

	switch frame.Type {
	case MessageTypeCall:
		if s.State() != StateActive {
			s.log.Debug("Dropping call during drain", zap.String("action", frame.Action))
			return
		}
		telemetry.MessagesTotal.WithLabelValues(frame.Action, "in").Inc()
		s.handlers.Add(1)
		go s.handleCall(frame)
	case MessageTypeCallResult:
		action, ok := s.calls.resolve(frame.MessageID, CallOutcome{Result: frame.Payload})
		if !ok {
			s.log.Warn("Discarding unmatched call result", zap.String("message_id", frame.MessageID))
			return
		}
		telemetry.MessagesTotal.WithLabelValues(string(action), "in").Inc()
	case MessageTypeCallError:
		action, ok := s.calls.resolve(frame.MessageID, CallOutcome{Err: frame.Error})
		if !ok {
			s.log.Warn("Discarding unmatched call error", zap.String("message_id", frame.MessageID))
			return
		}
		telemetry.MessagesTotal.WithLabelValues(string(action), "in").Inc()
	}
}

// handleCall runs one inbound call to completion and queues exactly one
// reply for it.
func (s *Session) handleCall(frame *Frame) {
	defer s.handlers.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Handler panic",
				zap.String("action", frame.Action),
				zap.Any("panic", r),
			)
			s.sendCallError(frame.MessageID, NewCallError(InternalError, "internal error"))
		}
	}()

	result, cerr := s.router.Dispatch(s.ctx, s, frame)
	if cerr != nil {
		s.sendCallError(frame.MessageID, cerr)
		return
	}
	data, err := EncodeCallResult(frame.MessageID, result)
	if err != nil {
		s.log.Error("Failed to encode call result", zap.String("action", frame.Action), zap.Error(err))
		s.sendCallError(frame.MessageID, NewCallError(InternalError, "internal error"))
		return
	}
	telemetry.MessagesTotal.WithLabelValues(frame.Action, "out").Inc()
	s.send(data)
}

func (s *Session) sendCallError(msgID string, cerr *CallError) {
	telemetry.CallErrorsTotal.WithLabelValues(string(cerr.Code)).Inc()
	data, err := EncodeCallError(msgID, cerr)
	if err != nil {
		s.log.Error("Failed to encode call error", zap.Error(err))
		return
	}
	s.send(data)
}

// send queues a frame for the writer. Replies queued after teardown are
// dropped; the socket is gone either way.
func (s *Session) send(data []byte) {
	select {
	case s.outbound <- data:
	case <-s.done:
	}
}

// writeLoop is the sole writer of the socket. It also owns the keepalive
// ping schedule.
func (s *Session) writeLoop() {
	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case data := <-s.outbound:
			if err := s.write(data); err != nil {
				s.terminate(err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.terminate(err)
				return
			}
		case <-s.done:
			// Flush what the handlers managed to queue before teardown.
			for {
				select {
				case data := <-s.outbound:
					if s.write(data) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) write(data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// callPump serializes server-originated calls: one on the wire at a time, in
// submission order.
func (s *Session) callPump() {
	for {
		oc := s.queue.pop()
		if oc == nil {
			select {
			case <-s.queue.wake:
				continue
			case <-s.done:
				return
			}
		}
		s.runCall(oc)
	}
}

func (s *Session) runCall(oc *outboundCall) {
	if oc.ctx.Err() != nil {
		oc.result <- CallOutcome{Err: ErrCallCancelled}
		return
	}

	msgID := uuid.NewString()
	pc, err := s.calls.register(msgID, oc.action, s.cfg.CallTimeout)
	if err != nil {
		oc.result <- CallOutcome{Err: err}
		return
	}
	data, err := EncodeCall(msgID, oc.action, oc.payload)
	if err != nil {
		s.calls.resolve(msgID, CallOutcome{Err: err})
		oc.result <- <-pc.done
		return
	}

	select {
	case s.outbound <- data:
		telemetry.MessagesTotal.WithLabelValues(string(oc.action), "out").Inc()
	case <-s.done:
		s.calls.resolve(msgID, CallOutcome{Err: ErrCallCancelled})
		oc.result <- <-pc.done
		return
	}

	// Exactly one outcome arrives on pc.done: the response, expiry by the
	// sweeper, or an abort. Caller cancellation races resolve safely; only
	// the first resolution wins.
	select {
	case out := <-pc.done:
		oc.result <- out
	case <-oc.ctx.Done():
		s.calls.resolve(msgID, CallOutcome{Err: ErrCallCancelled})
		oc.result <- <-pc.done
	case <-s.done:
		s.calls.resolve(msgID, CallOutcome{Err: ErrCallCancelled})
		oc.result <- <-pc.done
	}
}
