package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/MML0/Assistant-Bot/internal/config"
)

// OpsStore is the repository surface consumed by the ops endpoints.
type OpsStore interface {
	Ping(ctx context.Context) error
	CountUsers(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
	DowngradeExpired(ctx context.Context, now time.Time, baselineModel string) (int64, error)
}

type Handler struct {
	cfg   *config.Config
	store OpsStore
}

func New(cfg *config.Config, store OpsStore) *Handler {
	return &Handler{cfg: cfg, store: store}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.store.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

func (h *Handler) Stats(c *fiber.Ctx) error {
	users, err := h.store.CountUsers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	messages, err := h.store.CountMessages(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"user_count":    users,
		"message_count": messages,
	})
}

// CronExpire sweeps users whose pro access expired, downgrading tier and
// resetting the model to the baseline. The lazy per-request check makes this
// optional hygiene, not a correctness requirement.
func (h *Handler) CronExpire(c *fiber.Ctx) error {
	swept, err := h.store.DowngradeExpired(c.Context(), time.Now(), h.cfg.LLM.DefaultModel)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":     "ok",
		"downgraded": swept,
	})
}
