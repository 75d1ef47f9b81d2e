package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/ojedapedro/colegiopay/internal/adapter/remote"
	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
	"github.com/ojedapedro/colegiopay/internal/core/worker"
)

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateRepresentative),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrMonthRegression):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrReasonRequired),
		errors.Is(err, ledger.ErrReferenceRequired),
		errors.Is(err, ledger.ErrUnknownInstrument),
		errors.Is(err, ledger.ErrUnknownAction),
		errors.Is(err, domain.ErrInvalidAmount):
		return fiber.StatusBadRequest
	case errors.Is(err, worker.ErrNoRemote):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, remote.ErrTransport):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("❌ Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
