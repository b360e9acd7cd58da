// Package v16 implements the OCPP 1.6-J central system: the JSON wire codec,
// per-station WebSocket sessions, the action dispatch table and the
// server-originated command surface.
package v16

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MessageType discriminates the three OCPP 1.6-J frame kinds.
type MessageType int

const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

// ErrorCode is the closed OCPP 1.6-J CallError vocabulary. Nothing outside
// this set ever goes on the wire.
type ErrorCode string

const (
	NotImplemented               ErrorCode = "NotImplemented"
	NotSupported                 ErrorCode = "NotSupported"
	InternalError                ErrorCode = "InternalError"
	ProtocolError                ErrorCode = "ProtocolError"
	SecurityError                ErrorCode = "SecurityError"
	FormationViolation           ErrorCode = "FormationViolation"
	PropertyConstraintViolation  ErrorCode = "PropertyConstraintViolation"
	OccurenceConstraintViolation ErrorCode = "OccurenceConstraintViolation"
	TypeConstraintViolation      ErrorCode = "TypeConstraintViolation"
	GenericError                 ErrorCode = "GenericError"
)

// CallError is an OCPP-level failure reported to the peer as a CallError
// frame. Handlers return it to pick the wire error code; any other error
// collapses to InternalError.
type CallError struct {
	Code        ErrorCode
	Description string
	Details     map[string]interface{}
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewCallError builds a CallError with empty details.
func NewCallError(code ErrorCode, description string) *CallError {
	return &CallError{Code: code, Description: description}
}

// WireError reports a frame that could not be decoded. MessageID carries the
// correlation id when one could be recovered from the raw frame so the peer
// still gets a CallError; it is empty when the frame was beyond salvage.
type WireError struct {
	MessageID   string
	Code        ErrorCode
	Description string
}

func (e *WireError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Frame is one decoded OCPP 1.6-J message.
type Frame struct {
	Type      MessageType
	MessageID string
	Action    string          // Call only
	Payload   json.RawMessage // Call and CallResult
	Error     *CallError      // CallError only
}

// Decode parses a raw WebSocket text message into a Frame. Malformed frames
// come back as a WireError; the caller answers with a CallError when the
// message id survived and drops the frame otherwise.
func Decode(data []byte) (*Frame, *WireError) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, &WireError{Code: FormationViolation, Description: "message is not a JSON array"}
	}
	if len(elems) < 2 {
		return nil, &WireError{Code: FormationViolation, Description: "message has too few elements"}
	}

	var msgType int
	if err := json.Unmarshal(elems[0], &msgType); err != nil {
		return nil, &WireError{Code: FormationViolation, Description: "message type id must be an integer"}
	}

	// The message id is recovered even when the rest of the frame is broken
	// so the station can correlate the CallError.
	var msgID string
	if err := json.Unmarshal(elems[1], &msgID); err != nil {
		return nil, &WireError{Code: FormationViolation, Description: "message id must be a string"}
	}
	if msgID == "" {
		return nil, &WireError{Code: FormationViolation, Description: "message id must not be empty"}
	}

	switch MessageType(msgType) {
	case MessageTypeCall:
		return decodeCall(msgID, elems)
	case MessageTypeCallResult:
		return decodeCallResult(msgID, elems)
	case MessageTypeCallError:
		return decodeCallError(msgID, elems)
	default:
		return nil, &WireError{MessageID: msgID, Code: ProtocolError, Description: fmt.Sprintf("unknown message type id %d", msgType)}
	}
}

func decodeCall(msgID string, elems []json.RawMessage) (*Frame, *WireError) {
	if len(elems) < 4 {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "call is missing its payload"}
	}
	if len(elems) > 4 {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "call has trailing elements"}
	}
	var action string
	if err := json.Unmarshal(elems[2], &action); err != nil {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "action must be a string"}
	}
	if !KnownAction(action) {
		return nil, &WireError{MessageID: msgID, Code: NotSupported, Description: fmt.Sprintf("action %q is not part of OCPP 1.6", action)}
	}
	payload, ok := payloadObject(elems[3])
	if !ok {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "payload must be a JSON object"}
	}
	return &Frame{Type: MessageTypeCall, MessageID: msgID, Action: action, Payload: payload}, nil
}

func decodeCallResult(msgID string, elems []json.RawMessage) (*Frame, *WireError) {
	if len(elems) != 3 {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "call result must have exactly three elements"}
	}
	payload, ok := payloadObject(elems[2])
	if !ok {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "payload must be a JSON object"}
	}
	return &Frame{Type: MessageTypeCallResult, MessageID: msgID, Payload: payload}, nil
}

func decodeCallError(msgID string, elems []json.RawMessage) (*Frame, *WireError) {
	if len(elems) != 5 {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "call error must have exactly five elements"}
	}
	cerr := &CallError{}
	var code string
	if err := json.Unmarshal(elems[2], &code); err != nil {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "error code must be a string"}
	}
	cerr.Code = ErrorCode(code)
	if err := json.Unmarshal(elems[3], &cerr.Description); err != nil {
		return nil, &WireError{MessageID: msgID, Code: FormationViolation, Description: "error description must be a string"}
	}
	// Details are best effort: a peer sending odd details should not lose
	// the error itself.
	_ = json.Unmarshal(elems[4], &cerr.Details)
	return &Frame{Type: MessageTypeCallError, MessageID: msgID, Error: cerr}, nil
}

// payloadObject accepts a JSON object, or null as shorthand for {}.
func payloadObject(raw json.RawMessage) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), true
	}
	if trimmed[0] != '{' {
		return nil, false
	}
	return trimmed, true
}

// EncodeCall serializes a Call frame. A nil payload is sent as {}.
func EncodeCall(msgID string, action Action, payload interface{}) ([]byte, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s call: %w", action, err)
	}
	return json.Marshal([]interface{}{int(MessageTypeCall), msgID, string(action), raw})
}

// EncodeCallResult serializes a CallResult frame. A nil payload is sent as {}.
func EncodeCallResult(msgID string, payload interface{}) ([]byte, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode call result: %w", err)
	}
	return json.Marshal([]interface{}{int(MessageTypeCallResult), msgID, raw})
}

// EncodeCallError serializes a CallError frame. Details default to {}.
func EncodeCallError(msgID string, cerr *CallError) ([]byte, error) {
	details := cerr.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return json.Marshal([]interface{}{int(MessageTypeCallError), msgID, string(cerr.Code), cerr.Description, details})
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		if len(bytes.TrimSpace(raw)) == 0 {
			return json.RawMessage("{}"), nil
		}
		return raw, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
