package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
	"github.com/ojedapedro/colegiopay/internal/core/worker"
)

// AdminHandler covers fees, accrual and synchronization.
type AdminHandler struct {
	Service *ledger.Service
	Syncer  *worker.Syncer
	Now     func() time.Time
}

func (h *AdminHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "ok",
		"connectivity": h.Syncer.Status().String(),
	})
}

// Sync pulls the virtual office's pending payments right now.
func (h *AdminHandler) Sync(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
	defer cancel()

	report, err := h.Syncer.SyncPending(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"report": report, "connectivity": h.Syncer.Status().String()})
}

func (h *AdminHandler) GetFees(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"fees": h.Service.Fees()})
}

type FeeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *AdminHandler) SetFee(c *fiber.Ctx) error {
	var req FeeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	level := domain.Level(strings.ToUpper(c.Params("level")))
	if !level.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown level"})
	}
	if req.Amount.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Fee cannot be negative"})
	}

	if err := h.Service.SetFee(level, req.Amount.Round(domain.AmountPlaces)); err != nil {
		return fail(c, err)
	}
	h.Syncer.PushAsync()

	return c.JSON(fiber.Map{"fees": h.Service.Fees()})
}

type AccrualRequest struct {
	Month string `json:"month"` // YYYY-MM, defaults to the current month
}

// RunAccrual charges a month by hand. Charging the same month twice is a no-op.
func (h *AdminHandler) RunAccrual(c *fiber.Ctx) error {
	var req AccrualRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
		}
	}

	month := domain.MonthOf(h.now())
	if req.Month != "" {
		var err error
		if month, err = domain.ParseMonthKey(req.Month); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	report, err := h.Service.RunMonthlyAccrual(month)
	if err != nil {
		return fail(c, err)
	}
	if report.Charged > 0 {
		h.Syncer.PushAsync()
	}
	return c.JSON(report)
}

func (h *AdminHandler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}
