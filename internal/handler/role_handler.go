package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/pkg/response"
)

// RoleResponse describes one fixed role
type RoleResponse struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// RoleHandler serves the read-only role table. Roles cannot be created or edited.
type RoleHandler struct {
	auth *middleware.Authenticator
}

func NewRoleHandler(auth *middleware.Authenticator) *RoleHandler {
	return &RoleHandler{auth: auth}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/roles", h.auth.Authenticate(), h.ListRoles)
	router.GET("/permissions", h.auth.Authenticate(), h.ListPermissions)
}

// ListRoles handles GET /roles
// @Summary      List roles
// @Description  Fixed roles in descending order of privilege, with their permission codes.
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]RoleResponse}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles := make([]RoleResponse, 0, len(model.AllRoles))
	for _, r := range model.AllRoles {
		roles = append(roles, RoleResponse{Name: r, Permissions: model.Permissions(r)})
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// ListPermissions handles GET /permissions
// @Summary      List permission codes
// @Tags         roles
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]string}
// @Router       /api/permissions [get]
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	codes := make([]string, 0, len(model.AllCapabilities))
	for _, capability := range model.AllCapabilities {
		codes = append(codes, string(capability))
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, codes))
}
