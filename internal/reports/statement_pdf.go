package reports

import (
	"bytes"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/phpdave11/gofpdf"

	"github.com/bbabel1/property-manager-sub011/internal/ledger"
	"github.com/bbabel1/property-manager-sub011/internal/money"
)

// EscrowStatementPDF renders a unit's escrow history as a downloadable PDF:
// a summary row with deposits, withdrawals and the held balance, then one
// table row per movement.
func (h *Handler) EscrowStatementPDF(c *fiber.Ctx) error {
	orgID := strings.TrimSpace(c.Query("org_id"))
	unitID := c.Params("unitId")
	if orgID == "" || unitID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and unit id required")
	}

	ctx := c.UserContext()
	balance, err := h.Escrow.UnitBalance(ctx, orgID, unitID, nil)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute escrow balance")
	}
	if !balance.HasValidConfiguration {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "no deposit gl accounts configured")
	}
	movements, err := h.Escrow.UnitMovements(ctx, orgID, unitID, nil, nil)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch escrow movements")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Escrow Statement")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Unit: "+unitID)
	pdf.Ln(5)
	pdf.Cell(0, 6, "As of: "+time.Now().Format("2006-01-02"))
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)

	sumW := []float64{62, 62, 62}
	pdf.CellFormat(sumW[0], 10, "Deposits", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Withdrawals", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Held Balance", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, money.Format(balance.Deposits), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, money.Format(balance.Withdrawals), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, money.Format(balance.Balance), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	colW := []float64{26, 26, 88, 30, 20}
	writeHead := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(colW[0], 8, "DATE", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[1], 8, "TYPE", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[2], 8, "MEMO", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[3], 8, "AMOUNT", "1", 0, "R", true, 0, "")
		pdf.CellFormat(colW[4], 8, "TX", "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	writeHead()
	pdf.SetTextColor(30, 30, 30)

	for _, m := range movements {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			writeHead()
		}

		kind := "DEPOSIT"
		amount := money.Format(m.Amount)
		if m.PostingType == string(ledger.Debit) {
			kind = "WITHDRAWAL"
			amount = "-" + amount
		}
		memo := ""
		if m.Memo != nil {
			memo = *m.Memo
		}

		pdf.CellFormat(colW[0], 8, m.Date.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 8, kind, "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[2], 8, trimTo(memo, 80), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[3], 8, amount, "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], 8, shortID(m.TransactionID), "1", 1, "C", false, 0, "")
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Generated "+time.Now().Format(time.RFC3339), "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "pdf build failed")
	}

	filename := "escrow-statement-" + shortID(unitID) + ".pdf"
	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
