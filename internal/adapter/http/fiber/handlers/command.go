package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	v16 "github.com/seu-repo/ocpp-central/internal/adapter/ocpp/v16"
	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// CommandHandler handles the operator command endpoints. Every endpoint
// relays a central-system-initiated OCPP call to the addressed station.
type CommandHandler struct {
	commands     ports.CommandService
	stations     ports.StationService
	reservations ports.ReservationService
	log          *zap.Logger
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(
	commands ports.CommandService,
	stations ports.StationService,
	reservations ports.ReservationService,
	log *zap.Logger,
) *CommandHandler {
	return &CommandHandler{
		commands:     commands,
		stations:     stations,
		reservations: reservations,
		log:          log,
	}
}

// commandError maps command failures onto HTTP statuses: offline stations are
// 503, unanswered calls 504, CallError replies and everything else 500.
func (h *CommandHandler) commandError(c *fiber.Ctx, stationID, command string, err error) error {
	var callErr *v16.CallError
	switch {
	case errors.Is(err, v16.ErrStationOffline):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Station is not connected",
		})
	case errors.Is(err, v16.ErrCallTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "Station did not answer in time",
		})
	case errors.As(err, &callErr):
		h.log.Error("Station answered command with an error",
			zap.String("station_id", stationID),
			zap.String("command", command),
			zap.String("code", string(callErr.Code)),
			zap.String("description", callErr.Description),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":       "Station rejected the command",
			"code":        string(callErr.Code),
			"description": callErr.Description,
		})
	default:
		h.log.Error("Command failed",
			zap.String("station_id", stationID),
			zap.String("command", command),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

// --- Remote Start/Stop ---

// RemoteStartRequest represents a remote start request
type RemoteStartRequest struct {
	ConnectorID int    `json:"connector_id"`
	IdTag       string `json:"id_tag"`
}

// RemoteStart handles POST /api/v1/stations/:id/remote-start
func (h *CommandHandler) RemoteStart(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var req RemoteStartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.IdTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id_tag is required",
		})
	}

	status, err := h.commands.RemoteStart(c.Context(), stationID, req.ConnectorID, req.IdTag)
	if err != nil {
		return h.commandError(c, stationID, "RemoteStartTransaction", err)
	}

	return c.JSON(fiber.Map{"status": status})
}

// RemoteStopRequest represents a remote stop request
type RemoteStopRequest struct {
	TransactionID int `json:"transaction_id"`
}

// RemoteStop handles POST /api/v1/stations/:id/remote-stop
func (h *CommandHandler) RemoteStop(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var req RemoteStopRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.TransactionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "transaction_id is required",
		})
	}

	status, err := h.commands.RemoteStop(c.Context(), stationID, req.TransactionID)
	if err != nil {
		return h.commandError(c, stationID, "RemoteStopTransaction", err)
	}

	return c.JSON(fiber.Map{"status": status})
}

// --- Reset ---

// ResetRequest represents a reset request
type ResetRequest struct {
	Type string `json:"type"` // Hard, Soft
}

// Reset handles POST /api/v1/stations/:id/reset
func (h *CommandHandler) Reset(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var req ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Type == "" {
		req.Type = "Soft"
	}
	if req.Type != "Hard" && req.Type != "Soft" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be 'Hard' or 'Soft'",
		})
	}

	status, err := h.commands.Reset(c.Context(), stationID, req.Type)
	if err != nil {
		return h.commandError(c, stationID, "Reset", err)
	}

	return c.JSON(fiber.Map{"status": status})
}

// --- Configuration ---

// GetConfiguration handles GET /api/v1/stations/:id/configuration
func (h *CommandHandler) GetConfiguration(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var keys []string
	if raw := c.Query("keys"); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
	}

	cfg, err := h.commands.GetConfiguration(c.Context(), stationID, keys)
	if err != nil {
		return h.commandError(c, stationID, "GetConfiguration", err)
	}

	return c.JSON(cfg)
}

// ChangeConfigurationRequest represents a configuration change request
type ChangeConfigurationRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ChangeConfiguration handles POST /api/v1/stations/:id/configuration
func (h *CommandHandler) ChangeConfiguration(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var req ChangeConfigurationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "key is required",
		})
	}

	status, err := h.commands.ChangeConfiguration(c.Context(), stationID, req.Key, req.Value)
	if err != nil {
		return h.commandError(c, stationID, "ChangeConfiguration", err)
	}

	// Mirror accepted values into the station's stored config so operators
	// see them without another GetConfiguration round trip.
	if status == "Accepted" || status == "RebootRequired" {
		if err := h.stations.SetConfigValue(c.Context(), stationID, req.Key, req.Value); err != nil {
			h.log.Warn("Failed to mirror configuration value",
				zap.String("station_id", stationID),
				zap.String("key", req.Key),
				zap.Error(err),
			)
		}
	}

	return c.JSON(fiber.Map{"status": status})
}

// --- Reservations ---

// ReserveRequest represents a reservation request
type ReserveRequest struct {
	ConnectorID int       `json:"connector_id"`
	IdTag       string    `json:"id_tag"`
	ParentIdTag string    `json:"parent_id_tag,omitempty"`
	Expiry      time.Time `json:"expiry"`
}

// Reserve handles POST /api/v1/stations/:id/reserve
func (h *CommandHandler) Reserve(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var req ReserveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.IdTag == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id_tag is required",
		})
	}
	if req.ConnectorID < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connector_id must not be negative",
		})
	}
	if !req.Expiry.After(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expiry must be in the future",
		})
	}

	res, err := h.reservations.Reserve(c.Context(), &domain.ReservationRequest{
		StationID:   stationID,
		ConnectorID: req.ConnectorID,
		IdTag:       req.IdTag,
		ParentIdTag: req.ParentIdTag,
		ExpiryDate:  req.Expiry,
	})
	if err != nil {
		return h.commandError(c, stationID, "ReserveNow", err)
	}

	return c.JSON(res)
}

// GetReservation handles GET /api/v1/stations/:id/reservations/:reservationId
func (h *CommandHandler) GetReservation(c *fiber.Ctx) error {
	reservationID, err := strconv.Atoi(c.Params("reservationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Reservation id must be an integer",
		})
	}

	res, err := h.reservations.Get(c.Context(), reservationID)
	if err != nil {
		h.log.Error("Failed to load reservation", zap.Int("reservation_id", reservationID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load reservation",
		})
	}
	if res == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Reservation not found",
		})
	}

	return c.JSON(res)
}

// CancelReservation handles DELETE /api/v1/stations/:id/reservations/:reservationId
func (h *CommandHandler) CancelReservation(c *fiber.Ctx) error {
	stationID := c.Params("id")

	reservationID, err := strconv.Atoi(c.Params("reservationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Reservation id must be an integer",
		})
	}

	status, err := h.reservations.Cancel(c.Context(), reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Reservation not found",
			})
		}
		return h.commandError(c, stationID, "CancelReservation", err)
	}

	return c.JSON(fiber.Map{"status": status})
}

// --- Data Transfer ---

// DataTransferRequest represents an operator data transfer request
type DataTransferRequest struct {
	VendorID  string `json:"vendor_id"`
	MessageID string `json:"message_id,omitempty"`
	Data      string `json:"data,omitempty"`
}

// DataTransfer handles POST /api/v1/stations/:id/data-transfer
func (h *CommandHandler) DataTransfer(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var req DataTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.VendorID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "vendor_id is required",
		})
	}

	status, data, err := h.commands.DataTransfer(c.Context(), stationID, req.VendorID, req.MessageID, req.Data)
	if err != nil {
		return h.commandError(c, stationID, "DataTransfer", err)
	}

	return c.JSON(fiber.Map{
		"status": status,
		"data":   data,
	})
}

// --- Trigger Message ---

// TriggerMessage handles POST /api/v1/stations/:id/trigger/:message
func (h *CommandHandler) TriggerMessage(c *fiber.Ctx) error {
	stationID := c.Params("id")
	message := c.Params("message")

	validMessages := map[string]bool{
		"BootNotification":              true,
		"DiagnosticsStatusNotification": true,
		"FirmwareStatusNotification":    true,
		"Heartbeat":                     true,
		"MeterValues":                   true,
		"StatusNotification":            true,
	}
	if !validMessages[message] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid message type",
			"valid_messages": []string{
				"BootNotification", "DiagnosticsStatusNotification",
				"FirmwareStatusNotification", "Heartbeat",
				"MeterValues", "StatusNotification",
			},
		})
	}

	var connectorID *int
	if connector := c.QueryInt("connector_id", 0); connector > 0 {
		connectorID = &connector
	}

	status, err := h.commands.TriggerMessage(c.Context(), stationID, message, connectorID)
	if err != nil {
		return h.commandError(c, stationID, "TriggerMessage", err)
	}

	return c.JSON(fiber.Map{"status": status})
}

// --- Unlock Connector ---

// UnlockRequest represents an unlock request
type UnlockRequest struct {
	ConnectorID int `json:"connector_id"`
}

// Unlock handles POST /api/v1/stations/:id/unlock
func (h *CommandHandler) Unlock(c *fiber.Ctx) error {
	stationID := c.Params("id")

	var req UnlockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ConnectorID < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "connector_id is required",
		})
	}

	status, err := h.commands.UnlockConnector(c.Context(), stationID, req.ConnectorID)
	if err != nil {
		return h.commandError(c, stationID, "UnlockConnector", err)
	}

	return c.JSON(fiber.Map{"status": status})
}
