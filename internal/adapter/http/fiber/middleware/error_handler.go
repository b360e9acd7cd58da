package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	v16 "github.com/seu-repo/ocpp-central/internal/adapter/ocpp/v16"
	"github.com/seu-repo/ocpp-central/internal/domain"
)

// ErrorHandler is the fiber app-level fallback. Handlers map most failures
// themselves; anything that escapes is translated here so operators see
// consistent statuses for offline stations and unanswered calls.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		case errors.Is(err, v16.ErrStationOffline):
			code = fiber.StatusServiceUnavailable
		case errors.Is(err, v16.ErrCallTimeout):
			code = fiber.StatusGatewayTimeout
		case errors.Is(err, domain.ErrReservationNotFound):
			code = fiber.StatusNotFound
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
