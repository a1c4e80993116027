package http

import (
	"context"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/in"
	"jobtrack_worker/infra/middleware"
	"jobtrack_worker/pkg/apperr"
	"jobtrack_worker/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ReviewHandler drives reviewer transitions on staged imports. Creating the
// job record itself happens elsewhere; approve only receives its id.
type ReviewHandler struct {
	svc in.ReviewService
}

func NewReviewHandler(svc in.ReviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

func (h *ReviewHandler) Register(router fiber.Router) {
	staged := router.Group("/staged")

	staged.Get("/", h.List)

	byID := staged.Group("/:id", middleware.ValidateUUID("id"))
	byID.Get("/", h.Get)
	byID.Post("/approve", h.Approve)
	byID.Post("/reject", h.transition((in.ReviewService).Reject))
	byID.Post("/skip", h.transition((in.ReviewService).Skip))
	byID.Post("/restore", h.transition((in.ReviewService).Restore))
}

// List returns staged imports, newest first. ?status= filters by review state.
func (h *ReviewHandler) List(c *fiber.Ctx) error {
	var status *domain.ImportStatus
	if raw := c.Query("status"); raw != "" {
		st, ok := domain.ParseImportStatus(raw)
		if !ok {
			return apperr.InvalidInput("status", "must be one of pending, approved, rejected, skipped")
		}
		status = &st
	}
	page := response.GetPagination(c, 50, 500)

	imports, err := h.svc.List(c.UserContext(), status, page.Limit, page.Offset)
	if err != nil {
		return serviceError(err, "list staged imports")
	}
	return response.OKWithMeta(c, imports, &response.Meta{
		Limit:   page.Limit,
		Offset:  page.Offset,
		Count:   len(imports),
		HasMore: len(imports) == page.Limit,
	})
}

func (h *ReviewHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	imp, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(err, "get staged import")
	}
	return response.OK(c, imp)
}

type approveRequest struct {
	JobID *string `json:"jobId"`
}

// Approve accepts an optional {"jobId": "..."} body linking the created job.
func (h *ReviewHandler) Approve(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req approveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.BadRequest("invalid request body").WithError(err)
		}
	}
	imp, err := h.svc.Approve(c.UserContext(), id, req.JobID)
	if err != nil {
		return serviceError(err, "approve")
	}
	return response.OK(c, imp)
}

type transitionFunc func(in.ReviewService, context.Context, uuid.UUID) (*domain.StagedImport, error)

// transition builds a handler for the reject, skip and restore moves.
func (h *ReviewHandler) transition(fn transitionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramUUID(c, "id")
		if err != nil {
			return err
		}
		imp, err := fn(h.svc, c.UserContext(), id)
		if err != nil {
			return serviceError(err, "review transition")
		}
		return response.OK(c, imp)
	}
}
