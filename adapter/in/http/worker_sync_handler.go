package http

import (
	"net/url"

	"jobtrack_worker/core/domain"
	"jobtrack_worker/core/port/in"
	"jobtrack_worker/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// MaxBatchEntries bounds a single import or correction request.
const MaxBatchEntries = 500

// SyncHandler exposes the staging protocol to producers.
type SyncHandler struct {
	svc in.SyncService
}

func NewSyncHandler(svc in.SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

// Register mounts the producer routes on a router already guarded by the shared secret.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("/import", h.Import)
	router.Post("/corrections", h.Corrections)
	router.Delete("/messages/:messageId", h.DeleteMessage)
}

type importRequest struct {
	Records []domain.ImportRecord `json:"records"`
}

type correctionsRequest struct {
	Corrections []domain.CorrectionRecord `json:"corrections"`
}

// Import stages a batch of classified messages. Per-entry failures are
// reported in the summary, not as an HTTP error.
func (h *SyncHandler) Import(c *fiber.Ctx) error {
	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	if req.Records == nil {
		return apperr.MissingField("records")
	}
	if len(req.Records) > MaxBatchEntries {
		return apperr.BatchTooLarge("records", len(req.Records), MaxBatchEntries)
	}

	summary, err := h.svc.Submit(c.UserContext(), req.Records)
	if err != nil {
		return serviceError(err, "import")
	}
	return c.JSON(summary)
}

// Corrections applies reviewer overrides.
func (h *SyncHandler) Corrections(c *fiber.Ctx) error {
	var req correctionsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	if req.Corrections == nil {
		return apperr.MissingField("corrections")
	}
	if len(req.Corrections) > MaxBatchEntries {
		return apperr.BatchTooLarge("corrections", len(req.Corrections), MaxBatchEntries)
	}

	summary, err := h.svc.Correct(c.UserContext(), req.Corrections)
	if err != nil {
		return serviceError(err, "corrections")
	}
	return c.JSON(summary)
}

// DeleteMessage removes the staged import for a demoted message.
func (h *SyncHandler) DeleteMessage(c *fiber.Ctx) error {
	messageID, err := url.PathUnescape(c.Params("messageId"))
	if err != nil || messageID == "" {
		return apperr.InvalidInput("messageId", "malformed message id")
	}

	deleted, err := h.svc.Delete(c.UserContext(), messageID)
	if err != nil {
		return serviceError(err, "delete")
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}
