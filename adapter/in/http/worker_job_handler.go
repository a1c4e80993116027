package http

import (
	"context"
	"slices"

	"jobtrack_worker/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// JobEnqueuer hands an on-demand job to the worker fleet.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType string) (string, error)
}

// JobHandler lets producers ask for an immediate batch or correction scan
// instead of waiting for the next scheduled tick.
type JobHandler struct {
	queue   JobEnqueuer
	allowed []string
}

func NewJobHandler(queue JobEnqueuer, allowed ...string) *JobHandler {
	return &JobHandler{queue: queue, allowed: allowed}
}

func (h *JobHandler) Register(router fiber.Router) {
	router.Post("/jobs", h.Enqueue)
}

type enqueueRequest struct {
	Type string `json:"type"`
}

func (h *JobHandler) Enqueue(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	if req.Type == "" {
		return apperr.MissingField("type")
	}
	if !slices.Contains(h.allowed, req.Type) {
		return apperr.InvalidInput("type", "unknown job type").WithDetail("allowed", h.allowed)
	}

	id, err := h.queue.Enqueue(c.UserContext(), req.Type)
	if err != nil {
		return apperr.ExternalError("enqueue job", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": id, "type": req.Type})
}
