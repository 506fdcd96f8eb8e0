package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/service"
	"taskflow/pkg/response"
)

type DashboardHandler struct {
	dashboardService service.DashboardService
	auth             *middleware.Authenticator
}

func NewDashboardHandler(dashboardService service.DashboardService, auth *middleware.Authenticator) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, auth: auth}
}

func (h *DashboardHandler) RegisterRoutes(router *gin.RouterGroup) {
	dashboard := router.Group("/dashboard", h.auth.Authenticate())
	{
		dashboard.GET("/stats", h.GetStats)
		dashboard.GET("/top-performers", h.GetTopPerformers)
		dashboard.GET("/overdue-tasks", h.GetOverdueTasks)
	}
}

// GetStats handles GET /dashboard/stats
// @Summary      Dashboard counters
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.DashboardStats}
// @Router       /api/dashboard/stats [get]
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboardService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// GetTopPerformers handles GET /dashboard/top-performers
// @Summary      Top three staff by score
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.TopPerformer}
// @Router       /api/dashboard/top-performers [get]
func (h *DashboardHandler) GetTopPerformers(c *gin.Context) {
	performers, err := h.dashboardService.TopPerformers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, performers))
}

// GetOverdueTasks handles GET /dashboard/overdue-tasks
// @Summary      Open tasks past their deadline
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.OverdueTask}
// @Router       /api/dashboard/overdue-tasks [get]
func (h *DashboardHandler) GetOverdueTasks(c *gin.Context) {
	tasks, err := h.dashboardService.OverdueTasks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tasks))
}
