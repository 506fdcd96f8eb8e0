package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/pkg/pagination"
	"taskflow/pkg/response"
)

type ReportHandler struct {
	reportService service.ReportService
	auth          *middleware.Authenticator
}

func NewReportHandler(reportService service.ReportService, auth *middleware.Authenticator) *ReportHandler {
	return &ReportHandler{reportService: reportService, auth: auth}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports", h.auth.RequireCapability(model.CapViewReports))
	{
		reports.GET("", h.ListReports)
		reports.POST("/:type/run", h.RunReport)
	}
}

// ListReports handles GET /reports
// @Summary      List generated reports
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        type   query     string  false  "weekly, monthly, daily_reminder or overdue_alert"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/reports [get]
func (h *ReportHandler) ListReports(c *gin.Context) {
	p := pagination.Parse(c)

	reports, total, err := h.reportService.List(c.Request.Context(), middleware.CurrentActor(c), c.Query("type"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.NewPage(reports, total, p.Page, p.Limit)))
}

// RunReport handles POST /reports/:type/run
// @Summary      Generate a report now
// @Description  Builds, mails and stores the report outside its schedule.
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string  true  "Report type"
// @Success      201   {object}  response.Response{data=service.ReportResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/reports/{type}/run [post]
func (h *ReportHandler) RunReport(c *gin.Context) {
	report, err := h.reportService.Run(c.Request.Context(), middleware.CurrentActor(c), c.Param("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, report))
}
