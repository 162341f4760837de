package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bbabel1/property-manager-sub011/internal/escrow"
	"github.com/bbabel1/property-manager-sub011/internal/glaccounts"
	"github.com/bbabel1/property-manager-sub011/internal/reports"
	"github.com/bbabel1/property-manager-sub011/internal/transactions"
)

type Router struct {
	TransactionsHandler *transactions.Handler
	GLAccountsHandler   *glaccounts.Handler
	EscrowHandler       *escrow.Handler
	ReportsHandler      *reports.Handler
	AuthMW              fiber.Handler
}

func (r *Router) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api", r.AuthMW)

	if r.GLAccountsHandler != nil {
		api.Get("/gl-accounts", r.GLAccountsHandler.List)
	}

	if r.TransactionsHandler != nil {
		h := r.TransactionsHandler
		api.Post("/bills", RateLimitWrite(), h.CreateBill)
		api.Patch("/bills/:id", RateLimitWrite(), h.ReplaceBillLines)
		api.Post("/owner-draws", RateLimitWrite(), h.CreateOwnerDraw)
		api.Post("/journal-entries", RateLimitWrite(), h.CreateJournal)
		api.Patch("/journal-entries/:id", RateLimitWrite(), h.ReplaceJournal)
		api.Delete("/journal-entries/:id", RateLimitWrite(), h.Delete)

		// bank-scoped money movement, mirroring the provider's resource shape
		api.Post("/bank-accounts/:bankId/checks", RateLimitWrite(), h.CreateCheck)
		api.Put("/bank-accounts/:bankId/checks/:id", RateLimitWrite(), h.ReplaceCheckLines)
		api.Post("/bank-accounts/:bankId/deposits", RateLimitWrite(), h.CreateDeposit)
		api.Post("/bank-accounts/:bankId/withdrawals", RateLimitWrite(), h.CreateWithdrawal)
		api.Post("/bank-accounts/:bankId/transfers", RateLimitWrite(), h.CreateTransfer)

		api.Get("/transactions", h.List)
		api.Get("/transactions/:id", h.Get)
		api.Patch("/transactions/:id", RateLimitWrite(), h.UpdateHeader)
		api.Delete("/transactions/:id", RateLimitWrite(), h.Delete)
		api.Post("/transactions/:id/reverse", RateLimitWrite(), h.Reverse)
		api.Post("/transactions/:id/resync", RateLimitSync(), h.Resync)
		api.Post("/sync/retry", RateLimitSync(), h.RetrySync)
	}

	if r.EscrowHandler != nil {
		api.Get("/units/:unitId/escrow", r.EscrowHandler.UnitBalance)
		api.Get("/units/:unitId/escrow/movements", r.EscrowHandler.UnitMovements)
		api.Post("/units/:unitId/escrow", RateLimitWrite(), r.EscrowHandler.RecordMovement)
	}

	if r.ReportsHandler != nil {
		api.Get("/units/:unitId/escrow/statement.pdf", r.ReportsHandler.EscrowStatementPDF)
	}
}
