package escrow

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func queryDate(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, name+" must be YYYY-MM-DD")
	}
	return &t, nil
}

// UnitBalance handles GET /units/:unitId/escrow. An optional as_of query
// param bounds the balance to a date.
func (h *Handler) UnitBalance(c *fiber.Ctx) error {
	orgID := strings.TrimSpace(c.Query("org_id"))
	unitID := c.Params("unitId")
	if orgID == "" || unitID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and unit id required")
	}
	asOf, err := queryDate(c, "as_of")
	if err != nil {
		return err
	}

	b, err := h.Service.UnitBalance(c.UserContext(), orgID, unitID, asOf)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to compute escrow balance")
	}
	return c.JSON(b)
}

// UnitMovements handles GET /units/:unitId/escrow/movements with optional
// from/to query params.
func (h *Handler) UnitMovements(c *fiber.Ctx) error {
	orgID := strings.TrimSpace(c.Query("org_id"))
	unitID := c.Params("unitId")
	if orgID == "" || unitID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id and unit id required")
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return err
	}

	movements, err := h.Service.UnitMovements(c.UserContext(), orgID, unitID, from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch escrow movements")
	}
	if movements == nil {
		movements = []Movement{}
	}
	return c.JSON(movements)
}

type recordMovementRequest struct {
	OrgID              string          `json:"org_id"`
	PropertyID         *string         `json:"property_id"`
	Date               string          `json:"date"`
	Memo               *string         `json:"memo"`
	Kind               MovementKind    `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	BankGLAccountID    string          `json:"bank_gl_account_id"`
	DepositGLAccountID string          `json:"deposit_gl_account_id"`
}

// RecordMovement handles POST /units/:unitId/escrow.
func (h *Handler) RecordMovement(c *fiber.Ctx) error {
	unitID := c.Params("unitId")
	var req recordMovementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.OrgID == "" || unitID == "" || req.BankGLAccountID == "" || req.DepositGLAccountID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id, unit id and both gl accounts are required")
	}
	if req.Kind != KindHold && req.Kind != KindRefund {
		return fiber.NewError(fiber.StatusBadRequest, "kind must be hold or refund")
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be positive")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	txID, err := h.Service.RecordMovement(c.UserContext(), MovementInput{
		OrgID:              req.OrgID,
		UnitID:             unitID,
		PropertyID:         req.PropertyID,
		Date:               date,
		Memo:               req.Memo,
		Kind:               req.Kind,
		Amount:             req.Amount,
		BankGLAccountID:    req.BankGLAccountID,
		DepositGLAccountID: req.DepositGLAccountID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNoDepositAccounts):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrOverRefund):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to record escrow movement")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction_id": txID})
}
