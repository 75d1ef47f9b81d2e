package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
	"github.com/ojedapedro/colegiopay/internal/core/worker"
)

type PaymentHandler struct {
	Service *ledger.Service
	Syncer  *worker.Syncer
}

type PaymentRequest struct {
	RepresentativeID string          `json:"representative_id"`
	Amount           decimal.Decimal `json:"amount"` // "25.50" or 25.50
	Instrument       string          `json:"instrument"`
	Reference        string          `json:"reference"`
	Type             string          `json:"type"`         // FULL, PARTIAL or empty
	PaymentDate      string          `json:"payment_date"` // YYYY-MM-DD, defaults to today
	Notes            string          `json:"notes"`
}

// RecordPayment API
func (h *PaymentHandler) RecordPayment(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	var paidAt time.Time
	if req.PaymentDate != "" {
		var err error
		if paidAt, err = time.Parse("2006-01-02", req.PaymentDate); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment_date, expected YYYY-MM-DD"})
		}
	}

	record, err := h.Service.RecordPayment(req.RepresentativeID, ledger.PaymentInput{
		Amount:      req.Amount,
		Instrument:  domain.Instrument(strings.ToUpper(strings.TrimSpace(req.Instrument))),
		Reference:   req.Reference,
		Type:        domain.PaymentType(strings.ToUpper(strings.TrimSpace(req.Type))),
		PaymentDate: paidAt,
		Notes:       req.Notes,
	})
	if err != nil {
		return fail(c, err)
	}
	h.Syncer.PushAsync()

	return c.Status(fiber.StatusCreated).JSON(record)
}

type TransitionRequest struct {
	Action string `json:"action"` // verify, reject, reactivate
	Reason string `json:"reason"`
}

// Transition API: a reviewer verifies, rejects or reactivates a payment.
func (h *PaymentHandler) Transition(c *fiber.Ctx) error {
	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}
	action, err := ledger.ParseAction(req.Action)
	if err != nil {
		return fail(c, err)
	}

	record, err := h.Service.Transition(c.Params("id"), action, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	h.Syncer.PushAsync()

	return c.JSON(record)
}

func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	record, err := h.Service.Payment(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(record)
}

// GetReviewQueue lists pending and rejected payments, virtual office first.
func (h *PaymentHandler) GetReviewQueue(c *fiber.Ctx) error {
	queue := h.Service.ReviewQueue()
	return c.JSON(fiber.Map{
		"count":    len(queue),
		"payments": queue,
	})
}

// Merge API: reconcile a batch of virtual office rows posted by hand.
func (h *PaymentHandler) Merge(c *fiber.Ctx) error {
	var rows []map[string]any
	if err := c.BodyParser(&rows); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body, expected an array of records"})
	}

	fresh, report := h.Service.MergeExternal(rows)
	if len(fresh) > 0 {
		h.Syncer.PushAsync()
	}

	return c.JSON(fiber.Map{
		"report":   report,
		"imported": fresh,
	})
}
