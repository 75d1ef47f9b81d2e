package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ojedapedro/colegiopay/internal/adapter/middleware"
	"github.com/ojedapedro/colegiopay/internal/core/ledger"
	"github.com/ojedapedro/colegiopay/internal/core/security"
	"github.com/ojedapedro/colegiopay/internal/core/worker"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Service     *ledger.Service
	Syncer      *worker.Syncer
	Keys        *security.Keyring // nil disables authentication
	Idempotency middleware.IdempotencyStore
	Now         func() time.Time
}

// RegisterRoutes mounts the /v1 API on app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Idempotency == nil {
		d.Idempotency = middleware.NewMemoryIdempotencyStore()
	}
	representatives := &RepresentativeHandler{Service: d.Service, Syncer: d.Syncer}
	payments := &PaymentHandler{Service: d.Service, Syncer: d.Syncer}
	admin := &AdminHandler{Service: d.Service, Syncer: d.Syncer, Now: d.Now}

	cashier := middleware.Protected(d.Keys, security.RoleCashier)
	reviewer := middleware.Protected(d.Keys, security.RoleReviewer)
	idempotent := middleware.Idempotency(d.Idempotency)

	api := app.Group("/v1")

	// Public
	api.Get("/health", admin.Health)

	// Cashier
	api.Post("/representatives", cashier, idempotent, representatives.Enroll)
	api.Get("/representatives/:id/balance", cashier, representatives.GetBalance)
	api.Get("/representatives/:id/payments", cashier, representatives.GetPayments)
	api.Post("/payments", cashier, idempotent, payments.RecordPayment)
	api.Get("/fees", cashier, admin.GetFees)

	// Reviewer
	api.Get("/payments/review", reviewer, payments.GetReviewQueue)
	api.Post("/payments/merge", reviewer, payments.Merge)
	api.Post("/payments/:id/transition", reviewer, payments.Transition)
	api.Post("/sync", reviewer, admin.Sync)
	api.Put("/fees/:level", reviewer, admin.SetFee)
	api.Post("/accrual", reviewer, idempotent, admin.RunAccrual)

	// after /payments/review so the literal path wins
	api.Get("/payments/:id", cashier, payments.GetPayment)
}
