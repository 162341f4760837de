package transactions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// replay answers straight from idempotency_keys when the caller resends a
// request with an Idempotency-Key we have already served. Commit handlers
// call it before touching the books; the stored response is returned verbatim.
func (h *Handler) replay(c *fiber.Ctx, orgID string) (bool, error) {
	key := strings.TrimSpace(c.Get("Idempotency-Key"))
	if key == "" {
		return false, nil
	}

	var status int
	var body string
	err := h.Pool.QueryRow(c.UserContext(),
		`SELECT response_status, response_body
		 FROM idempotency_keys
		 WHERE org_id = $1 AND idempotency_key = $2`,
		orgID, key,
	).Scan(&status, &body)
	if err != nil {
		return false, nil
	}

	c.Status(status)
	c.Type("application/json")
	return true, c.SendString(body)
}

// respondCreated sends the 201 and, when an Idempotency-Key is present,
// stores the response for replays. ON CONFLICT DO NOTHING keeps the first
// response when two identical requests race.
func (h *Handler) respondCreated(c *fiber.Ctx, orgID string, resp createResponse) error {
	key := strings.TrimSpace(c.Get("Idempotency-Key"))
	if key != "" {
		sum := sha256.Sum256(append([]byte(c.Method()+" "+c.Path()+" "), c.Body()...))
		if buf, err := json.Marshal(resp); err == nil {
			_, _ = h.Pool.Exec(c.UserContext(),
				`INSERT INTO idempotency_keys (org_id, endpoint, idempotency_key, request_hash, response_status, response_body)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (org_id, idempotency_key) DO NOTHING`,
				orgID, c.Path(), key, hex.EncodeToString(sum[:]),
				fiber.StatusCreated, string(buf),
			)
		}
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
