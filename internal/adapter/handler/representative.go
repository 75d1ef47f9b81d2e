package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
	"github.com/ojedapedro/colegiopay/internal/core/worker"
)

type RepresentativeHandler struct {
	Service *ledger.Service
	Syncer  *worker.Syncer
}

// Request Models
type StudentRequest struct {
	FullName string `json:"full_name"`
	Level    string `json:"level"`
	Section  string `json:"section"`
}

type EnrollRequest struct {
	ID             string           `json:"id"` // national ID
	Name           string           `json:"name"`
	Phone          string           `json:"phone"`
	EnrollmentCode string           `json:"enrollment_code"`
	Students       []StudentRequest `json:"students"`
}

// Enroll API
func (h *RepresentativeHandler) Enroll(c *fiber.Ctx) error {
	var req EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid body"})
	}

	students := make([]domain.Student, 0, len(req.Students))
	for _, s := range req.Students {
		students = append(students, domain.Student{
			FullName: strings.TrimSpace(s.FullName),
			Level:    domain.Level(strings.ToUpper(strings.TrimSpace(s.Level))),
			Section:  strings.TrimSpace(s.Section),
		})
	}

	rep, err := h.Service.Enroll(ledger.EnrollInput{
		ID:             req.ID,
		Name:           req.Name,
		Phone:          req.Phone,
		EnrollmentCode: req.EnrollmentCode,
		Students:       students,
	})
	if err != nil {
		return fail(c, err)
	}
	h.Syncer.PushAsync()

	return c.Status(fiber.StatusCreated).JSON(rep)
}

// GetBalance returns the debt, verified and in-transit totals of one family.
func (h *RepresentativeHandler) GetBalance(c *fiber.Ctx) error {
	id := c.Params("id")
	rep, err := h.Service.Representative(id)
	if err != nil {
		return fail(c, err)
	}
	balance, err := h.Service.ComputeBalance(id)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"representative_id":  rep.ID,
		"total_accrued_debt": rep.TotalAccruedDebt,
		"last_accrual_month": rep.LastAccrualMonth,
		"verified_total":     balance.VerifiedTotal,
		"in_transit_total":   balance.InTransitTotal,
		"outstanding":        balance.Outstanding,
	})
}

func (h *RepresentativeHandler) GetPayments(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := h.Service.Representative(id); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"payments": h.Service.Payments(id),
	})
}
