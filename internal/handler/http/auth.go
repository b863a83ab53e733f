package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"japan-tracker/internal/service"
)

// SessionHandler 签发匿名客户端身份
type SessionHandler struct {
	authService *service.AuthService
}

// NewSessionHandler 创建 SessionHandler 实例
func NewSessionHandler(authService *service.AuthService) *SessionHandler {
	if authService == nil {
		panic("AuthService cannot be nil for SessionHandler")
	}
	return &SessionHandler{authService: authService}
}

// CreateSession 处理 POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	identity, err := h.authService.IssueClientIdentity()
	if err != nil {
		logrus.WithError(err).Error("Handler.CreateSession: Failed to issue client identity")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, identity)
}
