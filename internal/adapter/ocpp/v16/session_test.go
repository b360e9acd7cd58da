package v16

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/mocks"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// newWSServer wires a complete OCPP listener around the given services and
// serves it from an httptest server.
func newWSServer(t *testing.T, cfg ServerConfig, stations ports.StationService, transactions ports.TransactionService, auth ports.AuthorizationService) (*httptest.Server, *StationRegistry) {
	t.Helper()
	log := newTestLogger()
	router := NewRouter(log)
	handlers := NewHandlers(stations, transactions, auth, 30, log)
	handlers.RegisterVendor("seu-repo.diag", EchoDataTransfer)
	handlers.RegisterAll(router)
	registry := NewStationRegistry(log)
	srv := NewServer(cfg, registry, router, stations, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, registry
}

func dialStation(t *testing.T, ts *httptest.Server, stationID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/" + stationID
	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol},
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendText(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func readFrameElems(t *testing.T, conn *websocket.Conn) []json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		t.Fatalf("frame is not a JSON array: %v (%s)", err, data)
	}
	return elems
}

func frameParts(t *testing.T, elems []json.RawMessage) (msgType int, msgID string) {
	t.Helper()
	if err := json.Unmarshal(elems[0], &msgType); err != nil {
		t.Fatalf("bad message type: %v", err)
	}
	if err := json.Unmarshal(elems[1], &msgID); err != nil {
		t.Fatalf("bad message id: %v", err)
	}
	return msgType, msgID
}

// waitForSession polls until the station's session is attached and active.
func waitForSession(t *testing.T, reg *StationRegistry, stationID string) *Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := reg.Get(stationID); ok && s.State() == StateActive {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never became active", stationID)
	return nil
}

// serveOneCall reads one server-originated call from the socket, answers it
// with the given CallResult payload and returns the call's payload.
func serveOneCall(t *testing.T, conn *websocket.Conn, wantAction string, response interface{}) json.RawMessage {
	t.Helper()
	elems := readFrameElems(t, conn)
	msgType, msgID := frameParts(t, elems)
	if msgType != int(MessageTypeCall) {
		t.Fatalf("expected a call, got type %d", msgType)
	}
	var action string
	if err := json.Unmarshal(elems[2], &action); err != nil {
		t.Fatalf("bad action: %v", err)
	}
	if action != wantAction {
		t.Fatalf("expected action %s, got %s", wantAction, action)
	}
	data, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	sendText(t, conn, fmt.Sprintf(`[3,%q,%s]`, msgID, data))
	return elems[3]
}

func TestSession_BootNotificationRoundTrip(t *testing.T) {
	// Arrange
	var gotBoot *domain.BootRequest
	stations := &mocks.MockStationService{
		RegisterBootFunc: func(ctx context.Context, boot *domain.BootRequest) (domain.RegistrationStatus, error) {
			gotBoot = boot
			return domain.RegistrationAccepted, nil
		},
	}
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, stations, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")

	// Act
	sendText(t, conn, `[2, "boot-1", "BootNotification", {"chargePointVendor": "GoCharge", "chargePointModel": "SimulatorV1", "firmwareVersion": "1.0.0"}]`)
	elems := readFrameElems(t, conn)

	// Assert
	msgType, msgID := frameParts(t, elems)
	if msgType != int(MessageTypeCallResult) {
		t.Fatalf("expected a call result, got type %d (%s)", msgType, elems[2])
	}
	if msgID != "boot-1" {
		t.Errorf("expected message id 'boot-1', got %q", msgID)
	}
	var resp struct {
		Status      string `json:"status"`
		CurrentTime string `json:"currentTime"`
		Interval    int    `json:"interval"`
	}
	if err := json.Unmarshal(elems[2], &resp); err != nil {
		t.Fatalf("bad response payload: %v", err)
	}
	if resp.Status != "Accepted" {
		t.Errorf("expected Accepted, got %q", resp.Status)
	}
	if resp.Interval != 30 {
		t.Errorf("expected interval 30, got %d", resp.Interval)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", resp.CurrentTime); err != nil {
		t.Errorf("currentTime not in millisecond UTC form: %q", resp.CurrentTime)
	}
	if gotBoot == nil || gotBoot.StationID != "CP_1" || gotBoot.Vendor != "GoCharge" {
		t.Errorf("boot request did not reach the service: %+v", gotBoot)
	}
}

func TestSession_RejectedBootClosesSocket(t *testing.T) {
	stations := &mocks.MockStationService{
		RegisterBootFunc: func(ctx context.Context, boot *domain.BootRequest) (domain.RegistrationStatus, error) {
			return domain.RegistrationRejected, nil
		},
	}
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, stations, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_BAD")

	sendText(t, conn, `[2, "boot-1", "BootNotification", {"chargePointVendor": "V", "chargePointModel": "M"}]`)

	// The verdict still arrives as a normal call result.
	elems := readFrameElems(t, conn)
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(elems[2], &resp); err != nil {
		t.Fatalf("bad response payload: %v", err)
	}
	if resp.Status != "Rejected" {
		t.Fatalf("expected Rejected, got %q", resp.Status)
	}

	// Then the server closes the connection from its side.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected a normal close after rejection, got %v", err)
	}
}

func TestSession_MalformedCallAnswersCallError(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")

	// A call frame missing its payload element.
	sendText(t, conn, `[2, "bad-1", "BootNotification"]`)
	elems := readFrameElems(t, conn)

	msgType, msgID := frameParts(t, elems)
	if msgType != int(MessageTypeCallError) {
		t.Fatalf("expected a call error, got type %d", msgType)
	}
	if msgID != "bad-1" {
		t.Errorf("expected the offending message id back, got %q", msgID)
	}
	var code string
	if err := json.Unmarshal(elems[2], &code); err != nil {
		t.Fatalf("bad error code: %v", err)
	}
	if code != string(FormationViolation) {
		t.Errorf("expected FormationViolation, got %q", code)
	}
}

func TestSession_DuplicateInboundMessageIDAnsweredTwice(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")

	// Message id uniqueness is the station's responsibility; the server
	// answers each call on its own.
	sendText(t, conn, `[2, "42", "Heartbeat", {}]`)
	sendText(t, conn, `[2, "42", "Heartbeat", {}]`)

	for i := 0; i < 2; i++ {
		elems := readFrameElems(t, conn)
		msgType, msgID := frameParts(t, elems)
		if msgType != int(MessageTypeCallResult) || msgID != "42" {
			t.Errorf("reply %d: expected call result for id 42, got type %d id %q", i+1, msgType, msgID)
		}
	}
}

func TestSession_UndecodableFrameIsDroppedNotFatal(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")

	// Garbage without a recoverable message id produces no reply at all.
	sendText(t, conn, `this is not json`)
	// An unmatched call result is logged and ignored.
	sendText(t, conn, `[3, "never-sent", {}]`)

	// The session must still be fully usable afterwards.
	sendText(t, conn, `[2, "hb-1", "Heartbeat", {}]`)
	elems := readFrameElems(t, conn)
	msgType, msgID := frameParts(t, elems)
	if msgType != int(MessageTypeCallResult) || msgID != "hb-1" {
		t.Errorf("expected the heartbeat reply, got type %d id %q", msgType, msgID)
	}
}

func TestSession_UnknownActionAnswersNotSupported(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")

	sendText(t, conn, `[2, "x-1", "MadeUpAction", {}]`)
	elems := readFrameElems(t, conn)

	msgType, _ := frameParts(t, elems)
	var code string
	_ = json.Unmarshal(elems[2], &code)
	if msgType != int(MessageTypeCallError) || code != string(NotSupported) {
		t.Errorf("expected NotSupported call error, got type %d code %q", msgType, code)
	}
}

func TestSession_UnimplementedActionAnswersNotImplemented(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")

	// ClearCache is valid OCPP 1.6 vocabulary but has no handler here.
	sendText(t, conn, `[2, "x-2", "ClearCache", {}]`)
	elems := readFrameElems(t, conn)

	var code string
	_ = json.Unmarshal(elems[2], &code)
	if code != string(NotImplemented) {
		t.Errorf("expected NotImplemented, got %q", code)
	}
}

func TestSession_ServiceFailureAnswersInternalError(t *testing.T) {
	stations := &mocks.MockStationService{
		HeartbeatFunc: func(ctx context.Context, stationID string, at time.Time) error {
			return errors.New("database down")
		},
	}
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, stations, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")

	sendText(t, conn, `[2, "hb-1", "Heartbeat", {}]`)
	elems := readFrameElems(t, conn)

	msgType, _ := frameParts(t, elems)
	var code, desc string
	_ = json.Unmarshal(elems[2], &code)
	_ = json.Unmarshal(elems[3], &desc)
	if msgType != int(MessageTypeCallError) || code != string(InternalError) {
		t.Fatalf("expected InternalError, got type %d code %q", msgType, code)
	}
	if strings.Contains(desc, "database down") {
		t.Errorf("internal failure detail must not leak to the station: %q", desc)
	}
}

func TestSession_ServerOriginatedCall(t *testing.T) {
	// Arrange
	ts, reg := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")
	sess := waitForSession(t, reg, "CP_1")

	type callResult struct {
		result json.RawMessage
		err    error
	}
	resultCh := make(chan callResult, 1)

	// Act: the central system sends a Reset while the station answers.
	go func() {
		result, err := sess.Call(context.Background(), ActionReset, ResetRequest{Type: ResetSoft})
		resultCh <- callResult{result, err}
	}()
	payload := serveOneCall(t, conn, "Reset", map[string]string{"status": "Accepted"})

	// Assert
	var req ResetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("bad call payload: %v", err)
	}
	if req.Type != ResetSoft {
		t.Errorf("expected a soft reset on the wire, got %q", req.Type)
	}
	select {
	case out := <-resultCh:
		if out.err != nil {
			t.Fatalf("call failed: %v", out.err)
		}
		var resp ResetResponse
		if err := json.Unmarshal(out.result, &resp); err != nil {
			t.Fatalf("bad result payload: %v", err)
		}
		if resp.Status != "Accepted" {
			t.Errorf("expected Accepted, got %q", resp.Status)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("call never resolved")
	}
	if sess.PendingCalls() != 0 {
		t.Errorf("expected no pending calls, got %d", sess.PendingCalls())
	}
}

func TestSession_StationCallErrorResolvesCall(t *testing.T) {
	ts, reg := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")
	sess := waitForSession(t, reg, "CP_1")

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.Call(context.Background(), ActionUnlockConnector, UnlockConnectorRequest{ConnectorId: 1})
		errCh <- err
	}()

	elems := readFrameElems(t, conn)
	_, msgID := frameParts(t, elems)
	sendText(t, conn, fmt.Sprintf(`[4,%q,"NotSupported","no unlock motor",{}]`, msgID))

	select {
	case err := <-errCh:
		var cerr *CallError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected a CallError, got %v", err)
		}
		if cerr.Code != NotSupported {
			t.Errorf("expected NotSupported, got %s", cerr.Code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("call never resolved")
	}
}

func TestSession_CallTimesOutWithoutAnswer(t *testing.T) {
	cfg := ServerConfig{
		AllowUnknownStations: true,
		Session:              SessionConfig{CallTimeout: 300 * time.Millisecond},
	}
	ts, reg := newWSServer(t, cfg, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	conn := dialStation(t, ts, "CP_1")
	sess := waitForSession(t, reg, "CP_1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.SweepExpiredCalls(ctx)

	errCh := make(chan error, 1)
	go func() {
		_, err := sess.Call(context.Background(), ActionReset, ResetRequest{Type: ResetSoft})
		errCh <- err
	}()

	// The station reads the call but never answers.
	readFrameElems(t, conn)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCallTimeout) {
			t.Errorf("expected ErrCallTimeout, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("call never timed out")
	}
}

func TestSession_DuplicateConnectionEvictsOlder(t *testing.T) {
	ts, reg := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})

	first := dialStation(t, ts, "CP_1")
	firstSess := waitForSession(t, reg, "CP_1")

	second := dialStation(t, ts, "CP_1")
	defer second.Close()

	// The older socket is closed with 1012 Service Restart.
	_ = first.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := first.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseServiceRestart) {
		t.Fatalf("expected close 1012 on the older socket, got %v", err)
	}

	// The newer session replaces the older one in the registry.
	deadline := time.Now().Add(2 * time.Second)
	for {
		current, ok := reg.Get("CP_1")
		if ok && current != firstSess && current.State() == StateActive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("replacement session never became current")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if reg.Len() != 1 {
		t.Errorf("expected exactly one registered session, got %d", reg.Len())
	}

	// The replacement stays usable.
	sendText(t, second, `[2, "hb-1", "Heartbeat", {}]`)
	elems := readFrameElems(t, second)
	if _, msgID := frameParts(t, elems); msgID != "hb-1" {
		t.Errorf("expected heartbeat reply on the new socket, got id %q", msgID)
	}
}

func TestSession_CallAfterCloseFailsFast(t *testing.T) {
	ts, reg := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})
	_ = dialStation(t, ts, "CP_1")
	sess := waitForSession(t, reg, "CP_1")

	sess.Close(websocket.CloseNormalClosure, "test over")

	if sess.State() != StateClosed {
		t.Errorf("expected closed state, got %s", sess.State())
	}
	_, err := sess.Call(context.Background(), ActionReset, ResetRequest{Type: ResetSoft})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestServer_RequiresSubprotocol(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/CP_1"
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)

	if err == nil {
		conn.Close()
		t.Fatal("expected the handshake to fail without the ocpp1.6 subprotocol")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected HTTP 400, got %+v", resp)
	}
}

func TestServer_RefusesUnknownStationWhenConfigured(t *testing.T) {
	stations := &mocks.MockStationService{
		GetStationFunc: func(ctx context.Context, id string) (*domain.Station, error) {
			return nil, nil
		},
	}
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: false}, stations, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/CP_GHOST"
	dialer := websocket.Dialer{Subprotocols: []string{Subprotocol}, HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)

	if err == nil {
		conn.Close()
		t.Fatal("expected the handshake to fail for an unknown station")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected HTTP 403, got %+v", resp)
	}
}

func TestServer_RejectsNestedStationPath(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/CP_1/extra"
	dialer := websocket.Dialer{Subprotocols: []string{Subprotocol}, HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)

	if err == nil {
		conn.Close()
		t.Fatal("expected the handshake to fail for a nested path")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected HTTP 400, got %+v", resp)
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	ts, _ := newWSServer(t, ServerConfig{AllowUnknownStations: true}, &mocks.MockStationService{}, &mocks.MockTransactionService{}, &mocks.MockAuthorizationService{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
