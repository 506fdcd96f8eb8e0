package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/pkg/response"
)

type CatalogHandler struct {
	catalogService service.CatalogService
	auth           *middleware.Authenticator
}

func NewCatalogHandler(catalogService service.CatalogService, auth *middleware.Authenticator) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, auth: auth}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	services := router.Group("/services")
	{
		services.GET("", h.auth.Authenticate(), h.ListServices)
		services.POST("", h.auth.RequireCapability(model.CapWriteService), h.CreateService)
		services.PUT("/:id", h.auth.RequireCapability(model.CapWriteService), h.UpdateService)
		services.DELETE("/:id", h.auth.RequireCapability(model.CapDeleteService), h.DeleteService)
	}
}

// ListServices handles GET /services
// @Summary      List catalog services
// @Tags         services
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.ServiceResponse}
// @Router       /api/services [get]
func (h *CatalogHandler) ListServices(c *gin.Context) {
	services, err := h.catalogService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, services))
}

// CreateService handles POST /services
// @Summary      Create catalog service
// @Tags         services
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ServiceRequest  true  "Service"
// @Success      201      {object}  response.Response{data=service.ServiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/services [post]
func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req service.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	svc, err := h.catalogService.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, svc))
}

// UpdateService handles PUT /services/:id
// @Summary      Update catalog service
// @Tags         services
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Service ID"
// @Param        payload  body      service.ServiceRequest  true  "Service"
// @Success      200      {object}  response.Response{data=service.ServiceResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/services/{id} [put]
func (h *CatalogHandler) UpdateService(c *gin.Context) {
	var req service.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	svc, err := h.catalogService.Update(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, svc))
}

// DeleteService handles DELETE /services/:id
// @Summary      Delete catalog service
// @Description  Admin only. Existing tasks keep the service name.
// @Tags         services
// @Security     BearerAuth
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/services/{id} [delete]
func (h *CatalogHandler) DeleteService(c *gin.Context) {
	if err := h.catalogService.Delete(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Service deleted successfully"))
}
