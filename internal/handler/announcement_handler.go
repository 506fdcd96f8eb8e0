package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/pkg/response"
)

type AnnouncementHandler struct {
	announcementService service.AnnouncementService
	auth                *middleware.Authenticator
}

func NewAnnouncementHandler(announcementService service.AnnouncementService, auth *middleware.Authenticator) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService, auth: auth}
}

func (h *AnnouncementHandler) RegisterRoutes(router *gin.RouterGroup) {
	announcements := router.Group("/announcements")
	{
		announcements.GET("", h.auth.Authenticate(), h.ListAnnouncements)
		announcements.POST("", h.auth.RequireCapability(model.CapCreateAnnouncement), h.CreateAnnouncement)
	}
}

// ListAnnouncements handles GET /announcements
// @Summary      List active announcements
// @Description  Unexpired announcements addressed to the caller's role.
// @Tags         announcements
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.AnnouncementResponse}
// @Router       /api/announcements [get]
func (h *AnnouncementHandler) ListAnnouncements(c *gin.Context) {
	items, err := h.announcementService.List(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}

// CreateAnnouncement handles POST /announcements
// @Summary      Post announcement
// @Tags         announcements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateAnnouncementRequest  true  "Announcement"
// @Success      201      {object}  response.Response{data=service.AnnouncementResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/announcements [post]
func (h *AnnouncementHandler) CreateAnnouncement(c *gin.Context) {
	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	item, err := h.announcementService.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}
