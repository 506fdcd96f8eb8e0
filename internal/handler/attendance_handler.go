package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/service"
	"taskflow/pkg/response"
)

type AttendanceHandler struct {
	attendanceService service.AttendanceService
	auth              *middleware.Authenticator
}

func NewAttendanceHandler(attendanceService service.AttendanceService, auth *middleware.Authenticator) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService, auth: auth}
}

func (h *AttendanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	attendance := router.Group("/attendance", h.auth.Authenticate())
	{
		attendance.GET("/checkin", h.CheckIn)
		attendance.GET("/checkout", h.CheckOut)
		attendance.GET("/list", h.List)
	}
}

// CheckIn handles GET /attendance/checkin
// @Summary      Check in for today
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.AttendanceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/attendance/checkin [get]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	entry, err := h.attendanceService.CheckIn(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Checked in", entry))
}

// CheckOut handles GET /attendance/checkout
// @Summary      Check out of today's open entry
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.AttendanceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/attendance/checkout [get]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	entry, err := h.attendanceService.CheckOut(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, "Checked out", entry))
}

// List handles GET /attendance/list
// @Summary      List attendance entries
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Param        staff  query     string  false  "Username (managers and admins only)"
// @Success      200    {object}  response.Response{data=[]service.AttendanceResponse}
// @Router       /api/attendance/list [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	entries, err := h.attendanceService.List(c.Request.Context(), middleware.CurrentActor(c), c.Query("staff"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}
