package glaccounts

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) List(c *fiber.Ctx) error {
	orgID := strings.TrimSpace(c.Query("org_id"))
	if orgID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "org_id required")
	}

	accounts, err := h.Repo.List(c.UserContext(), orgID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch gl accounts")
	}
	if accounts == nil {
		accounts = []GlAccount{}
	}
	return c.JSON(accounts)
}
