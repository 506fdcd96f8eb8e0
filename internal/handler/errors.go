package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskflow/internal/service"
	"taskflow/pkg/response"
)

func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err using the status of its kind. Storage failures
// never expose their cause.
func respondError(c *gin.Context, err error) {
	status := statusFor(service.KindOf(err))
	msg := "Internal server error"
	var se *service.Error
	if errors.As(err, &se) && se.Kind != service.KindStorage {
		msg = se.Message
	}
	c.JSON(status, response.Error(status, msg))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}

// taskID parses the :id path parameter
func taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid task id")
		return 0, false
	}
	return uint(id), true
}
