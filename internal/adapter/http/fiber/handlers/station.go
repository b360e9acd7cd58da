// Package handlers exposes the operator REST surface over the station,
// transaction and command services.
package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-central/internal/domain"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// StationHandler handles the read-only station endpoints
type StationHandler struct {
	stations     ports.StationService
	transactions ports.TransactionService
	commands     ports.CommandService
	log          *zap.Logger
}

// NewStationHandler creates a new station handler
func NewStationHandler(
	stations ports.StationService,
	transactions ports.TransactionService,
	commands ports.CommandService,
	log *zap.Logger,
) *StationHandler {
	return &StationHandler{
		stations:     stations,
		transactions: transactions,
		commands:     commands,
		log:          log,
	}
}

// stationView decorates the persisted station with its live connection state.
type stationView struct {
	domain.Station
	Connected bool `json:"connected"`
}

// List handles GET /api/v1/stations
func (h *StationHandler) List(c *fiber.Ctx) error {
	stations, err := h.stations.ListStations(c.Context())
	if err != nil {
		h.log.Error("Failed to list stations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list stations",
		})
	}

	views := make([]stationView, 0, len(stations))
	for _, s := range stations {
		views = append(views, stationView{
			Station:   s,
			Connected: h.commands.IsConnected(s.ID),
		})
	}

	return c.JSON(fiber.Map{
		"count":    len(views),
		"stations": views,
	})
}

// Get handles GET /api/v1/stations/:id
func (h *StationHandler) Get(c *fiber.Ctx) error {
	stationID := c.Params("id")

	station, err := h.stations.GetStation(c.Context(), stationID)
	if err != nil {
		h.log.Error("Failed to load station", zap.String("station_id", stationID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load station",
		})
	}
	if station == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Station not found",
		})
	}

	return c.JSON(stationView{
		Station:   *station,
		Connected: h.commands.IsConnected(stationID),
	})
}

// GetConnection handles GET /api/v1/stations/:id/connection
func (h *StationHandler) GetConnection(c *fiber.Ctx) error {
	stationID := c.Params("id")

	info, err := h.commands.ConnectionInfo(stationID)
	if err != nil {
		return c.JSON(fiber.Map{
			"station_id": stationID,
			"connected":  false,
		})
	}

	return c.JSON(fiber.Map{
		"station_id":    stationID,
		"connected":     true,
		"state":         info.State,
		"remote_addr":   info.RemoteAddr,
		"connected_at":  info.ConnectedAt,
		"last_activity": info.LastActivity,
		"pending_calls": info.PendingCalls,
	})
}

// ListTransactions handles GET /api/v1/stations/:id/transactions
func (h *StationHandler) ListTransactions(c *fiber.Ctx) error {
	stationID := c.Params("id")
	limit := c.QueryInt("limit", 100)

	txs, err := h.transactions.ListTransactions(c.Context(), stationID, limit)
	if err != nil {
		h.log.Error("Failed to list transactions", zap.String("station_id", stationID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list transactions",
		})
	}

	return c.JSON(fiber.Map{
		"count":        len(txs),
		"transactions": txs,
	})
}

// GetTransaction handles GET /api/v1/transactions/:id
func (h *StationHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Transaction id must be an integer",
		})
	}

	tx, err := h.transactions.GetTransaction(c.Context(), id)
	if err != nil {
		h.log.Error("Failed to load transaction", zap.Int("transaction_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load transaction",
		})
	}
	if tx == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transaction not found",
		})
	}

	return c.JSON(tx)
}
