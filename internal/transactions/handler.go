package transactions

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bbabel1/property-manager-sub011/internal/allocation"
	"github.com/bbabel1/property-manager-sub011/internal/audit"
	"github.com/bbabel1/property-manager-sub011/internal/glaccounts"
	"github.com/bbabel1/property-manager-sub011/internal/ledger"
	"github.com/bbabel1/property-manager-sub011/internal/reconcile"
)

type Handler struct {
	Engine     *allocation.Engine
	Store      *ledger.Store
	Reconciler *reconcile.Reconciler
	Pool       *pgxpool.Pool
	Log        *zap.Logger
}

func NewHandler(engine *allocation.Engine, store *ledger.Store, rec *reconcile.Reconciler, pool *pgxpool.Pool, log *zap.Logger) *Handler {
	return &Handler{Engine: engine, Store: store, Reconciler: rec, Pool: pool, Log: log}
}

// httpStatus maps domain errors onto response codes: malformed input is 400,
// a transaction that violates ledger rules is 422, concurrency is 409.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, glaccounts.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrUnbalanced),
		errors.Is(err, ledger.ErrInvalidPosting),
		errors.Is(err, ledger.ErrNoLines),
		errors.Is(err, ledger.ErrMissingBankLine),
		errors.Is(err, ledger.ErrMixedProperties),
		errors.Is(err, allocation.ErrMissingCreditAccount),
		errors.Is(err, allocation.ErrSameAccount),
		errors.Is(err, allocation.ErrNoAllocations),
		errors.Is(err, allocation.ErrMissingExternalMapping),
		errors.Is(err, glaccounts.ErrNotBankAccount),
		errors.Is(err, reconcile.ErrMissingExternalMapping),
		errors.Is(err, reconcile.ErrNotPushable):
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func domainError(err error) *fiber.Error {
	status := httpStatus(err)
	if status == fiber.StatusInternalServerError {
		return fiber.NewError(status, "internal error")
	}
	return fiber.NewError(status, err.Error())
}

// commit writes the draft, audits it, kicks off a best-effort push for
// pushable transactions and answers 201. The push runs detached from the
// request so a slow provider never delays the caller; failures land in the
// sync columns and are picked up by resync or the retry sweep.
func (h *Handler) commit(c *fiber.Ctx, d *ledger.Draft, action string) error {
	id, err := h.Store.Commit(c.UserContext(), d)
	if err != nil {
		return domainError(err)
	}

	h.writeAudit(c, d.Header.OrgID, action, id)

	if d.Pushable {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
			defer cancel()
			if err := h.Reconciler.Push(ctx, id); err != nil {
				h.Log.Warn("background push failed",
					zap.String("transaction_id", id), zap.Error(err))
			}
		}()
	}

	return h.respondCreated(c, d.Header.OrgID, createResponse{ID: id})
}

func (h *Handler) writeAudit(c *fiber.Ctx, orgID, action, txID string) {
	ip := c.IP()
	ua := c.Get("User-Agent")
	if err := audit.Write(c.UserContext(), h.Pool, audit.Entry{
		OrgID:     orgID,
		UserID:    userIDPtr(c),
		Action:    action,
		EntityID:  &txID,
		IP:        &ip,
		UserAgent: &ua,
	}); err != nil {
		h.Log.Warn("audit write failed", zap.Error(err))
	}
}

func userIDPtr(c *fiber.Ctx) *string {
	if v := c.Locals("user_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

func (h *Handler) CreateBill(c *fiber.Ctx) error {
	var req createBillRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if req.OrgID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id required")
	}
	if replayed, err := h.replay(c, req.OrgID); replayed || err != nil {
		return err
	}

	d, err := h.Engine.Bill(c.UserContext(), allocation.BillInput{
		OrgID:             req.OrgID,
		Date:              date,
		Memo:              req.Memo,
		CreditGLAccountID: req.CreditAccountID,
		Vendor:            req.Vendor.toPayee(),
		Allocations:       toAllocations(req.Allocations),
	})
	if err != nil {
		return domainError(err)
	}
	return h.commit(c, d, audit.ActionCommit)
}

func (h *Handler) CreateCheck(c *fiber.Ctx) error {
	bankID := c.Params("bankId")
	var req createCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if req.OrgID == "" || bankID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and bank account required")
	}
	if replayed, err := h.replay(c, req.OrgID); replayed || err != nil {
		return err
	}

	d, err := h.Engine.Check(c.UserContext(), allocation.CheckInput{
		OrgID:           req.OrgID,
		Date:            date,
		Memo:            req.Memo,
		CheckNumber:     req.CheckNumber,
		BankGLAccountID: bankID,
		Vendor:          req.Vendor.toPayee(),
		Allocations:     toAllocations(req.Allocations),
	})
	if err != nil {
		return domainError(err)
	}
	return h.commit(c, d, audit.ActionCommit)
}

func (h *Handler) CreateDeposit(c *fiber.Ctx) error {
	bankID := c.Params("bankId")
	var req createDepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if req.OrgID == "" || bankID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and bank account required")
	}
	if replayed, err := h.replay(c, req.OrgID); replayed || err != nil {
		return err
	}

	d, err := h.Engine.Deposit(c.UserContext(), allocation.DepositInput{
		OrgID:           req.OrgID,
		Date:            date,
		Memo:            req.Memo,
		BankGLAccountID: bankID,
		PaymentTotal:    req.PaymentTotal,
		Allocations:     toAllocations(req.Allocations),
	})
	if err != nil {
		return domainError(err)
	}
	return h.commit(c, d, audit.ActionCommit)
}

func (h *Handler) CreateWithdrawal(c *fiber.Ctx) error {
	bankID := c.Params("bankId")
	var req createWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if req.OrgID == "" || bankID == "" || req.GLAccountID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and both gl accounts required")
	}

	d, err := h.Engine.Withdrawal(c.UserContext(), allocation.WithdrawalInput{
		OrgID:           req.OrgID,
		Date:            date,
		Memo:            req.Memo,
		BankGLAccountID: bankID,
		GLAccountID:     req.GLAccountID,
		Amount:          req.Amount,
		PropertyID:      req.PropertyID,
		UnitID:          req.UnitID,
	})
	if err != nil {
		return domainError(err)
	}
	return h.commit(c, d, audit.ActionCommit)
}

func (h *Handler) CreateTransfer(c *fiber.Ctx) error {
	bankID := c.Params("bankId")
	var req createTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if req.OrgID == "" || bankID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and bank account required")
	}

	d, err := h.Engine.Transfer(c.UserContext(), allocation.TransferInput{
		OrgID:             req.OrgID,
		Date:              date,
		Memo:              req.Memo,
		SourceGLAccountID: bankID,
		TargetGLAccountID: req.TargetGLAccountID,
		Amount:            req.Amount,
	})
	if err != nil {
		return domainError(err)
	}
	return h.commit(c, d, audit.ActionCommit)
}

func (h *Handler) CreateOwnerDraw(c *fiber.Ctx) error {
	var req createOwnerDrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	if req.OrgID == "" || req.BankGLAccountID == "" || req.EquityGLAccountID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and both gl accounts required")
	}

	d, err := h.Engine.OwnerDraw(c.UserContext(), allocation.OwnerDrawInput{
		OrgID:             req.OrgID,
		Date:              date,
		Memo:              req.Memo,
		BankGLAccountID:   req.BankGLAccountID,
		EquityGLAccountID: req.EquityGLAccountID,
		Amount:            req.Amount,
		Owner:             req.Owner.toPayee(),
		PropertyID:        req.PropertyID,
	})
	if err != nil {
		return domainError(err)
	}
	return h.commit(c, d, audit.ActionCommit)
}

// Get returns a header together with its lines.
func (h *Handler) Get(c *fiber.Ctx) error {
	id := c.Params("id")
	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	lines, err := h.Store.GetLines(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	if lines == nil {
		lines = []ledger.TransactionLine{}
	}
	return c.JSON(fiber.Map{"transaction": header, "lines": lines})
}

func (h *Handler) List(c *fiber.Ctx) error {
	orgID := c.Query("org_id")
	if orgID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id required")
	}
	items, err := h.Store.ListByOrg(c.UserContext(), orgID, c.QueryInt("limit", 100))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load transactions")
	}
	if items == nil {
		items = []ledger.Transaction{}
	}
	return c.JSON(fiber.Map{"items": items})
}

// ReplaceBillLines swaps a bill's allocations atomically.
func (h *Handler) ReplaceBillLines(c *fiber.Ctx) error {
	id := c.Params("id")
	var req replaceLinesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.OrgID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id required")
	}

	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	if header.TransactionType != ledger.TypeBill {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "not a bill")
	}

	// explicit credit account wins, then the bill's existing credit line
	creditID := req.CreditAccountID
	if creditID == nil {
		existing, err := h.Store.GetLines(c.UserContext(), id)
		if err != nil {
			return domainError(err)
		}
		for _, l := range existing {
			if l.PostingType == ledger.Credit {
				creditID = &l.GLAccountID
				break
			}
		}
	}

	lines, err := h.Engine.BillReplacement(c.UserContext(), req.OrgID, req.Memo, creditID, toAllocations(req.Allocations))
	if err != nil {
		return domainError(err)
	}
	if err := h.Store.Replace(c.UserContext(), id, lines, true); err != nil {
		return domainError(err)
	}
	h.writeAudit(c, req.OrgID, audit.ActionReplace, id)
	return c.JSON(fiber.Map{"id": id, "replaced": true})
}

// UpdateHeader patches scalar header fields. Lines only change through the
// replace endpoints.
func (h *Handler) UpdateHeader(c *fiber.Ctx) error {
	id := c.Params("id")
	var req updateHeaderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	var date *time.Time
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		date = &d
	}
	var status *ledger.Status
	if req.Status != nil {
		s := ledger.Status(*req.Status)
		if s != ledger.StatusPaid && s != ledger.StatusCancelled {
			return fiber.NewError(fiber.StatusBadRequest, "status must be Paid or Cancelled")
		}
		status = &s
	}
	if date == nil && req.Memo == nil && status == nil {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	if err := h.Store.UpdateHeader(c.UserContext(), id, date, req.Memo, status); err != nil {
		return domainError(err)
	}
	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(header)
}

// ReplaceCheckLines swaps a check's allocations atomically, crediting the
// bank account named in the route.
func (h *Handler) ReplaceCheckLines(c *fiber.Ctx) error {
	id := c.Params("id")
	bankID := c.Params("bankId")
	var req replaceLinesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.OrgID == "" || bankID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and bank account required")
	}

	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	if header.TransactionType != ledger.TypeCheck {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "not a check")
	}

	lines, err := h.Engine.CheckReplacement(c.UserContext(), bankID, req.Memo, toAllocations(req.Allocations))
	if err != nil {
		return domainError(err)
	}
	if err := h.Store.Replace(c.UserContext(), id, lines, true); err != nil {
		return domainError(err)
	}
	h.writeAudit(c, req.OrgID, audit.ActionReplace, id)
	return c.JSON(fiber.Map{"id": id, "replaced": true})
}

// Resync re-queues a transaction for the external provider and pushes it now.
func (h *Handler) Resync(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Reconciler.Resync(c.UserContext(), id); err != nil {
		return domainError(err)
	}
	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	h.writeAudit(c, header.OrgID, audit.ActionResync, id)
	return c.JSON(fiber.Map{
		"id":          id,
		"sync_status": header.ExternalSyncStatus,
		"external_id": header.ExternalTransactionID,
	})
}

// Delete removes a local transaction. Rows that already exist at the provider
// are refused so the two ledgers cannot silently diverge.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	if header.ExternalTransactionID != nil {
		return fiber.NewError(fiber.StatusConflict, "transaction exists at the external provider; delete it there first")
	}
	if err := h.Store.Delete(c.UserContext(), id); err != nil {
		return domainError(err)
	}
	h.writeAudit(c, header.OrgID, audit.ActionDelete, id)
	return c.SendStatus(fiber.StatusNoContent)
}

// RetrySync sweeps an org's pending and failed transactions.
func (h *Handler) RetrySync(c *fiber.Ctx) error {
	orgID := c.Query("org_id")
	if orgID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id required")
	}
	if err := h.Reconciler.Retry(c.UserContext(), orgID, c.QueryInt("limit", 50)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "retry sweep failed")
	}
	return c.SendStatus(fiber.StatusAccepted)
}
