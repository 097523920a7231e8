package api

import (
	"context"

	"nutriplan/store"

	"github.com/gofiber/fiber/v2"
)

// Statser reports the size of the knowledge base.
type Statser interface {
	Collection() string
	Stats(ctx context.Context) (store.Stats, error)
}

type CheckHandler struct {
	kb Statser
}

func NewCheckHandler(kb Statser) *CheckHandler {
	return &CheckHandler{kb: kb}
}

func (h CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"result": "ok"})
}

// HandleReady reports ready once the collection holds vectors.
func (h CheckHandler) HandleReady(c *fiber.Ctx) error {
	stats, err := h.kb.Stats(c.UserContext())
	if err != nil {
		return NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	status := fiber.StatusOK
	result := "ready"
	if stats.TotalVectorCount == 0 {
		status = fiber.StatusServiceUnavailable
		result = "empty knowledge base"
	}
	return c.Status(status).JSON(fiber.Map{
		"result":     result,
		"collection": h.kb.Collection(),
		"vectors":    stats.TotalVectorCount,
		"dimension":  stats.Dimension,
	})
}
