package transactions

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bbabel1/property-manager-sub011/internal/audit"
	"github.com/bbabel1/property-manager-sub011/internal/ledger"
)

func journalLines(dtos []journalLineDTO) []ledger.TransactionLine {
	out := make([]ledger.TransactionLine, 0, len(dtos))
	for _, l := range dtos {
		entity := l.EntityType
		if entity == "" {
			entity = ledger.EntityRental
		}
		out = append(out, ledger.TransactionLine{
			GLAccountID:       l.GLAccountID,
			Amount:            l.Amount,
			PostingType:       ledger.PostingType(l.PostingType),
			Memo:              l.Memo,
			PropertyID:        l.PropertyID,
			UnitID:            l.UnitID,
			AccountEntityType: entity,
			AccountEntityID:   l.EntityID,
		})
	}
	return out
}

// CreateJournal posts a manual general journal entry. The caller supplies
// both sides explicitly and the balance invariant is enforced as usual.
// Journal entries stay local; they are never pushed to the provider.
func (h *Handler) CreateJournal(c *fiber.Ctx) error {
	var req createJournalRequest
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

	lines := journalLines(req.Lines)
	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           req.OrgID,
			Date:            date,
			Memo:            req.Memo,
			TransactionType: ledger.TypeGeneralJournal,
			Status:          ledger.StatusPaid,
			TotalAmount:     ledger.DebitTotal(lines),
		},
		Lines: lines,
	}
	return h.commit(c, d, audit.ActionCommit)
}

// ReplaceJournal swaps a journal entry's lines atomically.
func (h *Handler) ReplaceJournal(c *fiber.Ctx) error {
	id := c.Params("id")
	var req replaceJournalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	if header.TransactionType != ledger.TypeGeneralJournal {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "not a general journal entry")
	}

	if err := h.Store.Replace(c.UserContext(), id, journalLines(req.Lines), true); err != nil {
		return domainError(err)
	}
	h.writeAudit(c, header.OrgID, audit.ActionReplace, id)
	return c.JSON(fiber.Map{"id": id, "replaced": true})
}

// Reverse books an equal and opposite journal entry against an existing
// transaction instead of mutating history.
func (h *Handler) Reverse(c *fiber.Ctx) error {
	id := c.Params("id")
	var req struct {
		Date string  `json:"date"`
		Memo *string `json:"memo,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	header, err := h.Store.Get(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}
	lines, err := h.Store.GetLines(c.UserContext(), id)
	if err != nil {
		return domainError(err)
	}

	reversed := make([]ledger.TransactionLine, 0, len(lines))
	for _, l := range lines {
		r := l
		r.ID = ""
		r.TransactionID = ""
		r.Date = date
		if l.PostingType == ledger.Debit {
			r.PostingType = ledger.Credit
		} else {
			r.PostingType = ledger.Debit
		}
		reversed = append(reversed, r)
	}

	memo := req.Memo
	if memo == nil {
		m := "Reversal of " + id
		memo = &m
	}
	d := &ledger.Draft{
		Header: ledger.Transaction{
			OrgID:           header.OrgID,
			Date:            date,
			Memo:            memo,
			TransactionType: ledger.TypeGeneralJournal,
			Status:          ledger.StatusPaid,
			TotalAmount:     ledger.DebitTotal(reversed),
		},
		Lines: reversed,
	}
	return h.commit(c, d, audit.ActionCommit)
}
