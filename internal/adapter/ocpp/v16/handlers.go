package v16

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// CallContext carries one inbound call and its origin session to a handler.
type CallContext struct {
	Session *Session
	Action  Action
	Payload json.RawMessage
}

// StationID is the id of the station that sent the call.
func (c *CallContext) StationID() string { return c.Session.ID() }

// HandlerFunc processes one inbound call and returns the CallResult payload.
// Returning a *CallError picks the wire error code; any other error is
// reported to the station as InternalError.
type HandlerFunc func(ctx context.Context, call *CallContext) (interface{}, error)

// Router is the action dispatch table. It is populated once at startup and
// read-only afterwards.
type Router struct {
	handlers map[Action]HandlerFunc
	log      *zap.Logger
}

func NewRouter(log *zap.Logger) *Router {
	return &Router{
		handlers: make(map[Action]HandlerFunc),
		log:      log,
	}
}

// Register binds an action to its handler. Rebinding an action is a
// programming error.
func (r *Router) Register(action Action, h HandlerFunc) {
	if _, exists := r.handlers[action]; exists {
		panic(fmt.Sprintf("ocpp: handler for %s registered twice", action))
	}
	r.handlers[action] = h
}

// Dispatch runs the handler bound to the frame's action. An action inside
// the OCPP vocabulary but without a handler on this server answers
// NotImplemented; the codec already rejected actions outside the vocabulary
// with NotSupported.
func (r *Router) Dispatch(ctx context.Context, s *Session, frame *Frame) (interface{}, *CallError) {
	h, ok := r.handlers[Action(frame.Action)]
	if !ok {
		return nil, NewCallError(NotImplemented, fmt.Sprintf("action %s is not implemented", frame.Action))
	}
	result, err := h(ctx, &CallContext{Session: s, Action: Action(frame.Action), Payload: frame.Payload})
	if err != nil {
		var cerr *CallError
		if errors.As(err, &cerr) {
			return nil, cerr
		}
		r.log.Error("Handler failed",
			zap.String("station_id", s.ID()),
			zap.String("action", frame.Action),
			zap.Error(err),
		)
		return nil, NewCallError(InternalError, "request could not be processed")
	}
	return result, nil
}

// DataTransferHandler serves one vendor's DataTransfer traffic.
type DataTransferHandler func(ctx context.Context, stationID, messageID, data string) (status, responseData string, err error)

// EchoDataTransfer answers diagnostic pings by echoing the data back, used
// as the built-in handler for the seu-repo.diag vendor id.
func EchoDataTransfer(_ context.Context, _, _, data string) (string, string, error) {
	return DataTransferAccepted, data, nil
}

// Handlers binds the OCPP 1.6 station-initiated actions to the domain
// services.
type Handlers struct {
	stations     ports.StationService
	transactions ports.TransactionService
	auth         ports.AuthorizationService
	interval     int // heartbeat interval handed out on boot, seconds

	vendorMu sync.RWMutex
	vendors  map[string]DataTransferHandler

	log *zap.Logger
}

// NewHandlers creates the handler set. heartbeatInterval is the cadence, in
// seconds, stations are told to report at.
func NewHandlers(stations ports.StationService, transactions ports.TransactionService, auth ports.AuthorizationService, heartbeatInterval int, log *zap.Logger) *Handlers {
	return &Handlers{
		stations:     stations,
		transactions: transactions,
		auth:         auth,
		interval:     heartbeatInterval,
		vendors:      make(map[string]DataTransferHandler),
		log:          log,
	}
}

// RegisterVendor binds a DataTransfer vendor id to its handler.
func (h *Handlers) RegisterVendor(vendorID string, fn DataTransferHandler) {
	h.vendorMu.Lock()
	defer h.vendorMu.Unlock()
	h.vendors[vendorID] = fn
}

func (h *Handlers) vendor(vendorID string) (DataTransferHandler, bool) {
	h.vendorMu.RLock()
	defer h.vendorMu.RUnlock()
	fn, ok := h.vendors[vendorID]
	return fn, ok
}

// RegisterAll installs every station-initiated action on the router.
func (h *Handlers) RegisterAll(r *Router) {
	r.Register(ActionBootNotification, h.handleBootNotification)
	r.Register(ActionHeartbeat, h.handleHeartbeat)
	r.Register(ActionStatusNotification, h.handleStatusNotification)
	r.Register(ActionAuthorize, h.handleAuthorize)
	r.Register(ActionStartTransaction, h.handleStartTransaction)
	r.Register(ActionStopTransaction, h.handleStopTransaction)
	r.Register(ActionMeterValues, h.handleMeterValues)
	r.Register(ActionDataTransfer, h.handleDataTransfer)
	r.Register(ActionFirmwareStatusNotification, h.handleFirmwareStatus)
	r.Register(ActionDiagnosticsStatusNotification, h.handleDiagnosticsStatus)
}

func (h *Handlers) handleBootNotification(ctx context.Context, call *CallContext) (interface{}, error) {
	var req BootNotificationRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}

	h.log.Info("BootNotification",
		zap.String("station_id", call.StationID()),
		zap.String("vendor", req.ChargePointVendor),
		zap.String("model", req.ChargePointModel),
		zap.String("firmware", req.FirmwareVersion),
	)

	now := time.Now().UTC()
	status, err := h.stations.RegisterBoot(ctx, &domain.BootRequest{
		StationID:       call.StationID(),
		Vendor:          req.ChargePointVendor,
		Model:           req.ChargePointModel,
		SerialNumber:    req.ChargePointSerialNumber,
		FirmwareVersion: req.FirmwareVersion,
		Timestamp:       now,
	})
	if err != nil {
		return nil, err
	}

	if status == domain.RegistrationRejected {
		// The station gets its answer first, then the socket goes away.
		call.Session.ScheduleClose(time.Second, 1000, "boot rejected")
	}

	return BootNotificationResponse{
		Status:      status,
		CurrentTime: NewDateTime(now),
		Interval:    h.interval,
	}, nil
}

func (h *Handlers) handleHeartbeat(ctx context.Context, call *CallContext) (interface{}, error) {
	var req HeartbeatRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}
	now := time.Now().UTC()
	if err := h.stations.Heartbeat(ctx, call.StationID(), now); err != nil {
		return nil, err
	}
	return HeartbeatResponse{CurrentTime: NewDateTime(now)}, nil
}

func (h *Handlers) handleStatusNotification(ctx context.Context, call *CallContext) (interface{}, error) {
	var req StatusNotificationRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}

	// Stations without a clock send no timestamp; arrival time is the best
	// available ordering then.
	at := time.Now().UTC()
	if req.Timestamp != nil {
		at = req.Timestamp.Time
	}

	err := h.stations.RecordStatus(ctx, &domain.StatusUpdate{
		StationID:       call.StationID(),
		ConnectorID:     *req.ConnectorId,
		Status:          domain.ConnectorStatus(req.Status),
		ErrorCode:       req.ErrorCode,
		Info:            req.Info,
		VendorID:        req.VendorId,
		VendorErrorCode: req.VendorErrorCode,
		Timestamp:       at,
	})
	if err != nil {
		return nil, err
	}
	return StatusNotificationResponse{}, nil
}

func (h *Handlers) handleAuthorize(ctx context.Context, call *CallContext) (interface{}, error) {
	var req AuthorizeRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}
	info := h.auth.Authorize(ctx, call.StationID(), req.IdTag)
	return AuthorizeResponse{IdTagInfo: wireIdTagInfo(info)}, nil
}

func (h *Handlers) handleStartTransaction(ctx context.Context, call *CallContext) (interface{}, error) {
	var req StartTransactionRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}

	tx, err := h.transactions.Start(ctx, &domain.StartRequest{
		StationID:     call.StationID(),
		ConnectorID:   *req.ConnectorId,
		IdTag:         req.IdTag,
		MeterStart:    *req.MeterStart,
		Timestamp:     req.Timestamp.Time,
		ReservationID: req.ReservationId,
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("Transaction started",
		zap.String("station_id", call.StationID()),
		zap.Int("transaction_id", tx.ID),
		zap.Int("connector_id", tx.ConnectorID),
		zap.String("id_tag", tx.IdTag),
	)

	return StartTransactionResponse{
		TransactionId: tx.ID,
		IdTagInfo:     IdTagInfo{Status: domain.AuthAccepted},
	}, nil
}

func (h *Handlers) handleStopTransaction(ctx context.Context, call *CallContext) (interface{}, error) {
	var req StopTransactionRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}

	tx, err := h.transactions.Stop(ctx, &domain.StopRequest{
		StationID:     call.StationID(),
		TransactionID: *req.TransactionId,
		IdTag:         req.IdTag,
		MeterStop:     *req.MeterStop,
		Timestamp:     req.Timestamp.Time,
		Reason:        req.Reason,
	})
	if err != nil {
		return nil, err
	}
	if tx == nil {
		// Unknown id: the station's view of the world wins, it already
		// stopped charging (OCPP 1.6 figure 4.4.3).
		h.log.Warn("StopTransaction for unknown transaction",
			zap.String("station_id", call.StationID()),
			zap.Int("transaction_id", *req.TransactionId),
		)
	} else {
		h.log.Info("Transaction stopped",
			zap.String("station_id", call.StationID()),
			zap.Int("transaction_id", tx.ID),
			zap.Int64("total_energy_wh", tx.TotalEnergy),
		)
	}

	// Samples bundled with the stop ride the same buffered pipeline as
	// MeterValues.
	if len(req.TransactionData) > 0 {
		h.transactions.EnqueueMeterValues(meterBatch(call.StationID(), 0, req.TransactionId, req.TransactionData))
	}

	return StopTransactionResponse{
		IdTagInfo: &IdTagInfo{Status: domain.AuthAccepted},
	}, nil
}

func (h *Handlers) handleMeterValues(ctx context.Context, call *CallContext) (interface{}, error) {
	var req MeterValuesRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}
	h.transactions.EnqueueMeterValues(meterBatch(call.StationID(), *req.ConnectorId, req.TransactionId, req.MeterValue))
	return MeterValuesResponse{}, nil
}

// meterBatch flattens wire meter values into storable samples.
func meterBatch(stationID string, connectorID int, transactionID *int, values []MeterValue) *domain.MeterBatch {
	batch := &domain.MeterBatch{
		StationID:     stationID,
		ConnectorID:   connectorID,
		TransactionID: transactionID,
	}
	for _, mv := range values {
		for _, sv := range mv.SampledValue {
			measurand := sv.Measurand
			if measurand == "" {
				// Per OCPP 1.6 the default measurand is the import register.
				measurand = "Energy.Active.Import.Register"
			}
			batch.Samples = append(batch.Samples, domain.MeterSample{
				TransactionID: transactionID,
				StationID:     stationID,
				ConnectorID:   connectorID,
				Timestamp:     mv.Timestamp.UTC(),
				Measurand:     measurand,
				Phase:         sv.Phase,
				Unit:          sv.Unit,
				Value:         sv.Value,
			})
		}
	}
	return batch
}

func (h *Handlers) handleDataTransfer(ctx context.Context, call *CallContext) (interface{}, error) {
	var req DataTransferRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}

	fn, ok := h.vendor(req.VendorId)
	if !ok {
		h.log.Debug("DataTransfer from unknown vendor",
			zap.String("station_id", call.StationID()),
			zap.String("vendor_id", req.VendorId),
		)
		return DataTransferResponse{Status: DataTransferUnknownVendorId}, nil
	}

	status, data, err := fn(ctx, call.StationID(), req.MessageId, req.Data)
	if err != nil {
		return nil, err
	}
	return DataTransferResponse{Status: status, Data: data}, nil
}

func (h *Handlers) handleFirmwareStatus(ctx context.Context, call *CallContext) (interface{}, error) {
	var req FirmwareStatusNotificationRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}
	if err := h.stations.RecordFirmwareStatus(ctx, call.StationID(), req.Status, time.Now().UTC()); err != nil {
		return nil, err
	}
	return FirmwareStatusNotificationResponse{}, nil
}

func (h *Handlers) handleDiagnosticsStatus(ctx context.Context, call *CallContext) (interface{}, error) {
	var req DiagnosticsStatusNotificationRequest
	if cerr := unmarshalPayload(call.Payload, &req); cerr != nil {
		return nil, cerr
	}
	if err := h.stations.RecordDiagnosticsStatus(ctx, call.StationID(), req.Status, time.Now().UTC()); err != nil {
		return nil, err
	}
	return DiagnosticsStatusNotificationResponse{}, nil
}
