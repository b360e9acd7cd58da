package v16

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecode_Call(t *testing.T) {
	// Arrange
	raw := []byte(`[2, "msg-001", "BootNotification", {"chargePointVendor": "GoCharge", "chargePointModel": "SimulatorV1"}]`)

	// Act
	frame, werr := Decode(raw)

	// Assert
	if werr != nil {
		t.Fatalf("expected no wire error, got %v", werr)
	}
	if frame.Type != MessageTypeCall {
		t.Errorf("expected type %d, got %d", MessageTypeCall, frame.Type)
	}
	if frame.MessageID != "msg-001" {
		t.Errorf("expected message id 'msg-001', got %q", frame.MessageID)
	}
	if frame.Action != "BootNotification" {
		t.Errorf("expected action 'BootNotification', got %q", frame.Action)
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("payload did not round trip: %v", err)
	}
	if payload["chargePointVendor"] != "GoCharge" {
		t.Errorf("expected vendor 'GoCharge', got %q", payload["chargePointVendor"])
	}
}

func TestDecode_CallResult(t *testing.T) {
	raw := []byte(`[3, "msg-002", {"status": "Accepted"}]`)

	frame, werr := Decode(raw)

	if werr != nil {
		t.Fatalf("expected no wire error, got %v", werr)
	}
	if frame.Type != MessageTypeCallResult {
		t.Errorf("expected type %d, got %d", MessageTypeCallResult, frame.Type)
	}
	if frame.MessageID != "msg-002" {
		t.Errorf("expected message id 'msg-002', got %q", frame.MessageID)
	}
	if frame.Action != "" {
		t.Errorf("call result carries no action, got %q", frame.Action)
	}
}

func TestDecode_CallError(t *testing.T) {
	raw := []byte(`[4, "msg-003", "InternalError", "database unavailable", {"retryAfter": 30}]`)

	frame, werr := Decode(raw)

	if werr != nil {
		t.Fatalf("expected no wire error, got %v", werr)
	}
	if frame.Type != MessageTypeCallError {
		t.Errorf("expected type %d, got %d", MessageTypeCallError, frame.Type)
	}
	if frame.Error == nil {
		t.Fatal("expected decoded call error")
	}
	if frame.Error.Code != InternalError {
		t.Errorf("expected code InternalError, got %q", frame.Error.Code)
	}
	if frame.Error.Description != "database unavailable" {
		t.Errorf("unexpected description %q", frame.Error.Description)
	}
	if frame.Error.Details["retryAfter"] != float64(30) {
		t.Errorf("expected details to survive, got %v", frame.Error.Details)
	}
}

func TestDecode_NullPayloadBecomesEmptyObject(t *testing.T) {
	raw := []byte(`[2, "msg-004", "Heartbeat", null]`)

	frame, werr := Decode(raw)

	if werr != nil {
		t.Fatalf("expected no wire error, got %v", werr)
	}
	if string(frame.Payload) != "{}" {
		t.Errorf("expected null payload to decode as {}, got %s", frame.Payload)
	}
}

func TestDecode_MalformedFrames(t *testing.T) {
	tests := []struct {
		raw       string
		code      ErrorCode
		messageID string
		desc      string
	}{
		{`{"not": "an array"}`, FormationViolation, "", "JSON object instead of array"},
		{`not json at all`, FormationViolation, "", "not JSON"},
		{`[2]`, FormationViolation, "", "single element"},
		{`["2", "msg-1", "Heartbeat", {}]`, FormationViolation, "", "string message type id"},
		{`[2, 42, "Heartbeat", {}]`, FormationViolation, "", "numeric message id"},
		{`[2, "", "Heartbeat", {}]`, FormationViolation, "", "empty message id"},
		{`[9, "msg-1", "Heartbeat", {}]`, ProtocolError, "msg-1", "unknown message type id"},
		{`[2, "msg-1", "Heartbeat"]`, FormationViolation, "msg-1", "call without payload"},
		{`[2, "msg-1", "Heartbeat", {}, "extra"]`, FormationViolation, "msg-1", "call with trailing element"},
		{`[2, "msg-1", 42, {}]`, FormationViolation, "msg-1", "non-string action"},
		{`[2, "msg-1", "MadeUpAction", {}]`, NotSupported, "msg-1", "action outside the 1.6 vocabulary"},
		{`[2, "msg-1", "Heartbeat", []]`, FormationViolation, "msg-1", "array payload"},
		{`[2, "msg-1", "Heartbeat", "text"]`, FormationViolation, "msg-1", "string payload"},
		{`[3, "msg-1", {}, "extra"]`, FormationViolation, "msg-1", "call result with four elements"},
		{`[3, "msg-1"]`, FormationViolation, "", "call result with two elements"},
		{`[4, "msg-1", "GenericError", "boom", {}, "extra"]`, FormationViolation, "msg-1", "call error with six elements"},
		{`[4, "msg-1", 42, "boom", {}]`, FormationViolation, "msg-1", "call error with numeric code"},
	}

	for _, tt := range tests {
		frame, werr := Decode([]byte(tt.raw))
		if werr == nil {
			t.Errorf("%s: expected a wire error, got frame %+v", tt.desc, frame)
			continue
		}
		if werr.Code != tt.code {
			t.Errorf("%s: expected code %s, got %s (%s)", tt.desc, tt.code, werr.Code, werr.Description)
		}
		if werr.MessageID != tt.messageID {
			t.Errorf("%s: expected recovered message id %q, got %q", tt.desc, tt.messageID, werr.MessageID)
		}
	}
}

func TestDecode_FrameTooShortKeepsNoMessageID(t *testing.T) {
	// A frame with fewer than two elements cannot be correlated, so the
	// wire error must not carry a message id the sender never chose.
	_, werr := Decode([]byte(`[2]`))

	if werr == nil {
		t.Fatal("expected a wire error")
	}
	if werr.MessageID != "" {
		t.Errorf("expected empty message id, got %q", werr.MessageID)
	}
}

func TestEncodeCall_NilPayload(t *testing.T) {
	data, err := EncodeCall("msg-005", ActionHeartbeat, nil)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(data) != `[2,"msg-005","Heartbeat",{}]` {
		t.Errorf("unexpected encoding: %s", data)
	}
}

func TestEncodeCall_RoundTrip(t *testing.T) {
	// Arrange
	payload := RemoteStartTransactionRequest{IdTag: "TAG-01"}

	// Act
	data, err := EncodeCall("msg-006", ActionRemoteStartTransaction, payload)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	frame, werr := Decode(data)

	// Assert
	if werr != nil {
		t.Fatalf("round trip failed: %v", werr)
	}
	if frame.Action != string(ActionRemoteStartTransaction) {
		t.Errorf("expected action RemoteStartTransaction, got %q", frame.Action)
	}
	var decoded RemoteStartTransactionRequest
	if err := json.Unmarshal(frame.Payload, &decoded); err != nil {
		t.Fatalf("payload did not round trip: %v", err)
	}
	if decoded.IdTag != "TAG-01" {
		t.Errorf("expected id tag 'TAG-01', got %q", decoded.IdTag)
	}
}

func TestEncodeCallResult_RoundTrip(t *testing.T) {
	data, err := EncodeCallResult("msg-007", HeartbeatResponse{CurrentTime: DateTime{}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	frame, werr := Decode(data)
	if werr != nil {
		t.Fatalf("round trip failed: %v", werr)
	}
	if frame.Type != MessageTypeCallResult {
		t.Errorf("expected call result, got type %d", frame.Type)
	}
	if frame.MessageID != "msg-007" {
		t.Errorf("expected message id 'msg-007', got %q", frame.MessageID)
	}
}

func TestEncodeCallError_NilDetails(t *testing.T) {
	data, err := EncodeCallError("msg-008", NewCallError(NotImplemented, "no handler"))

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasSuffix(string(data), `,{}]`) {
		t.Errorf("expected empty details object, got %s", data)
	}

	frame, werr := Decode(data)
	if werr != nil {
		t.Fatalf("round trip failed: %v", werr)
	}
	if frame.Error.Code != NotImplemented {
		t.Errorf("expected NotImplemented, got %q", frame.Error.Code)
	}
}

func TestKnownAction_CoversUnimplementedActions(t *testing.T) {
	// Actions in the 1.6 vocabulary without a handler must decode cleanly;
	// the router answers those NotImplemented rather than the codec
	// rejecting them as NotSupported.
	if !KnownAction("ClearCache") {
		t.Error("ClearCache is part of OCPP 1.6")
	}
	if !KnownAction("SetChargingProfile") {
		t.Error("SetChargingProfile is part of OCPP 1.6")
	}
	if KnownAction("TotallyMadeUp") {
		t.Error("unknown actions must not pass")
	}
}
