package v16

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// ErrStationOffline means no live session exists for the station id.
var ErrStationOffline = errors.New("ocpp: station offline")

// Commands sends central-system-initiated calls to connected stations. It is
// a thin bridge over the station registry: persistence of command side
// effects belongs to the services calling it.
type Commands struct {
	registry *StationRegistry
	log      *zap.Logger
}

var _ ports.CommandService = (*Commands)(nil)

func NewCommands(registry *StationRegistry, log *zap.Logger) *Commands {
	return &Commands{registry: registry, log: log}
}

func (c *Commands) IsConnected(stationID string) bool {
	s, ok := c.registry.Get(stationID)
	return ok && s.State() == StateActive
}

func (c *Commands) ConnectedStations() []string {
	return c.registry.IDs()
}

func (c *Commands) ConnectionInfo(stationID string) (*ports.SessionInfo, error) {
	s, ok := c.registry.Get(stationID)
	if !ok {
		return nil, ErrStationOffline
	}
	return &ports.SessionInfo{
		StationID:    s.ID(),
		State:        s.State().String(),
		RemoteAddr:   s.RemoteAddr(),
		ConnectedAt:  s.ConnectedAt(),
		LastActivity: s.LastActivity(),
		PendingCalls: s.PendingCalls(),
	}, nil
}

// call sends one request and decodes the response payload into out.
func (c *Commands) call(ctx context.Context, stationID string, action Action, req, out interface{}) error {
	s, ok := c.registry.Get(stationID)
	if !ok || s.State() != StateActive {
		return ErrStationOffline
	}
	result, err := s.Call(ctx, action, req)
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			return ErrStationOffline
		}
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("ocpp: bad %s response: %w", action, err)
	}
	return nil
}

func (c *Commands) RemoteStart(ctx context.Context, stationID string, connectorID int, idTag string) (string, error) {
	req := RemoteStartTransactionRequest{IdTag: idTag}
	if connectorID > 0 {
		req.ConnectorId = &connectorID
	}
	var resp RemoteStartTransactionResponse
	if err := c.call(ctx, stationID, ActionRemoteStartTransaction, req, &resp); err != nil {
		return "", err
	}
	c.log.Info("RemoteStartTransaction answered",
		zap.String("station_id", stationID),
		zap.String("status", resp.Status),
	)
	return resp.Status, nil
}

func (c *Commands) RemoteStop(ctx context.Context, stationID string, transactionID int) (string, error) {
	var resp RemoteStopTransactionResponse
	err := c.call(ctx, stationID, ActionRemoteStopTransaction, RemoteStopTransactionRequest{TransactionId: transactionID}, &resp)
	if err != nil {
		return "", err
	}
	c.log.Info("RemoteStopTransaction answered",
		zap.String("station_id", stationID),
		zap.Int("transaction_id", transactionID),
		zap.String("status", resp.Status),
	)
	return resp.Status, nil
}

func (c *Commands) Reset(ctx context.Context, stationID, kind string) (string, error) {
	if kind != ResetHard && kind != ResetSoft {
		return "", fmt.Errorf("ocpp: reset type must be %s or %s", ResetHard, ResetSoft)
	}
	var resp ResetResponse
	if err := c.call(ctx, stationID, ActionReset, ResetRequest{Type: kind}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Commands) UnlockConnector(ctx context.Context, stationID string, connectorID int) (string, error) {
	if connectorID < 1 {
		return "", errors.New("ocpp: connector id must be positive")
	}
	var resp UnlockConnectorResponse
	err := c.call(ctx, stationID, ActionUnlockConnector, UnlockConnectorRequest{ConnectorId: connectorID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Commands) GetConfiguration(ctx context.Context, stationID string, keys []string) (*domain.StationConfiguration, error) {
	var resp GetConfigurationResponse
	err := c.call(ctx, stationID, ActionGetConfiguration, GetConfigurationRequest{Key: keys}, &resp)
	if err != nil {
		return nil, err
	}
	out := &domain.StationConfiguration{UnknownKeys: resp.UnknownKey}
	for _, k := range resp.ConfigurationKey {
		entry := domain.ConfigEntry{Key: k.Key, Readonly: k.Readonly}
		if k.Value != nil {
			entry.Value = *k.Value
		}
		out.Keys = append(out.Keys, entry)
	}
	return out, nil
}

func (c *Commands) ChangeConfiguration(ctx context.Context, stationID, key, value string) (string, error) {
	if key == "" {
		return "", errors.New("ocpp: configuration key must not be empty")
	}
	var resp ChangeConfigurationResponse
	err := c.call(ctx, stationID, ActionChangeConfiguration, ChangeConfigurationRequest{Key: key, Value: value}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Commands) TriggerMessage(ctx context.Context, stationID, message string, connectorID *int) (string, error) {
	var resp TriggerMessageResponse
	req := TriggerMessageRequest{RequestedMessage: message, ConnectorId: connectorID}
	if err := c.call(ctx, stationID, ActionTriggerMessage, req, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Commands) ReserveNow(ctx context.Context, stationID string, r *domain.Reservation) (string, error) {
	req := ReserveNowRequest{
		ConnectorId:   r.ConnectorID,
		ExpiryDate:    NewDateTime(r.ExpiryDate),
		IdTag:         r.IdTag,
		ParentIdTag:   r.ParentIdTag,
		ReservationId: r.ID,
	}
	var resp ReserveNowResponse
	if err := c.call(ctx, stationID, ActionReserveNow, req, &resp); err != nil {
		return "", err
	}
	c.log.Info("ReserveNow answered",
		zap.String("station_id", stationID),
		zap.Int("reservation_id", r.ID),
		zap.String("status", resp.Status),
	)
	return resp.Status, nil
}

func (c *Commands) CancelReservation(ctx context.Context, stationID string, reservationID int) (string, error) {
	var resp CancelReservationResponse
	err := c.call(ctx, stationID, ActionCancelReservation, CancelReservationRequest{ReservationId: reservationID}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *Commands) DataTransfer(ctx context.Context, stationID, vendorID, messageID, data string) (string, string, error) {
	if vendorID == "" {
		return "", "", errors.New("ocpp: vendor id must not be empty")
	}
	req := DataTransferRequest{VendorId: vendorID, MessageId: messageID, Data: data}
	var resp DataTransferResponse
	if err := c.call(ctx, stationID, ActionDataTransfer, req, &resp); err != nil {
		return "", "", err
	}
	return resp.Status, resp.Data, nil
}
