package http

import (
	"errors"

	"jobtrack_worker/core/port/out"
	"jobtrack_worker/core/service/common"
	"jobtrack_worker/pkg/apperr"
	"jobtrack_worker/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ReportHandler serves persisted batch run reports.
type ReportHandler struct {
	reports out.ReportRepository
}

// NewReportHandler creates a report handler. reports may be nil when no
// report store is configured.
func NewReportHandler(reports out.ReportRepository) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Register registers report routes.
func (h *ReportHandler) Register(router fiber.Router) {
	reports := router.Group("/reports")

	reports.Get("/", h.ListReports)
	reports.Get("/:runId", h.GetReport)
}

// ListReports returns recent run summaries without per-message results.
func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	if h.reports == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "report store not configured")
	}
	page := response.GetPagination(c, 20, 100)

	reports, err := h.reports.ListRecent(c.UserContext(), page.Limit)
	if err != nil {
		return apperr.DatabaseError("list reports", err)
	}
	return response.OKWithMeta(c, reports, &response.Meta{Limit: page.Limit, Count: len(reports)})
}

// GetReport returns one run with its per-message results.
func (h *ReportHandler) GetReport(c *fiber.Ctx) error {
	if h.reports == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "report store not configured")
	}

	report, err := h.reports.GetByRunID(c.UserContext(), c.Params("runId"))
	if errors.Is(err, common.ErrNotFound) {
		return apperr.NotFound("run report")
	}
	if err != nil {
		return apperr.DatabaseError("get report", err)
	}
	return response.OK(c, fiber.Map{
		"summary": report,
		"results": report.Results,
	})
}
