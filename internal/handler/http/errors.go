package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"japan-tracker/internal/codec"
	"japan-tracker/internal/service"
)

// HandleServiceError 将服务层错误映射为 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownRegion):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrReadOnly):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, codec.ErrDecode), errors.Is(err, service.ErrInvalidBaseURL):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		ErrorResponse(c, http.StatusServiceUnavailable, service.ErrStorageUnavailable.Error())
	default:
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
