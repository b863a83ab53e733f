package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"japan-tracker/internal/codec"
	"japan-tracker/internal/domain"
	"japan-tracker/internal/middleware"
	"japan-tracker/internal/service"
)

// TrackerHandler 封装了打卡状态相关的 HTTP 处理逻辑
type TrackerHandler struct {
	trackerService *service.TrackerService
}

// NewTrackerHandler 创建 TrackerHandler 实例
func NewTrackerHandler(trackerService *service.TrackerService) *TrackerHandler {
	if trackerService == nil {
		panic("TrackerService cannot be nil for TrackerHandler")
	}
	return &TrackerHandler{trackerService: trackerService}
}

// TrackerView 返回给前端的完整状态
type TrackerView struct {
	Mode     domain.Mode         `json:"mode"`
	ReadOnly bool                `json:"read_only"`
	State    domain.TrackerState `json:"state"`
	Progress domain.Progress     `json:"progress"`
}

// ResetResponse 重置结果
type ResetResponse struct {
	State     domain.TrackerState `json:"state"`
	Progress  domain.Progress     `json:"progress"`
	Persisted bool                `json:"persisted"`
}

// ShareRequest 分享请求，base_url 为空时使用服务配置的地址
type ShareRequest struct {
	BaseURL string `json:"base_url"`
}

func newTrackerView(session *domain.Session) TrackerView {
	return TrackerView{
		Mode:     session.Mode,
		ReadOnly: session.ReadOnly(),
		State:    session.State,
		Progress: session.State.Progress(),
	}
}

// GetTracker 处理 GET /api/tracker?state=<token>
// 携带可解码令牌时返回只读回放，不需要身份；否则必须认证。
func (h *TrackerHandler) GetTracker(c *gin.Context) {
	token := c.Query(codec.ShareParam)
	clientID, authenticated := middleware.ClientID(c)

	session := h.trackerService.OpenSession(c.Request.Context(), clientID, token)
	if !session.ReadOnly() && !authenticated {
		ErrorResponse(c, http.StatusUnauthorized, "Authorization header is required")
		return
	}
	SuccessResponse(c, http.StatusOK, newTrackerView(session))
}

// CycleRegion 处理 POST /api/tracker/regions/:regionId/cycle
func (h *TrackerHandler) CycleRegion(c *gin.Context) {
	session, ok := h.openSession(c)
	if !ok {
		return
	}
	regionID := c.Param("regionId")

	result, err := h.trackerService.Cycle(c.Request.Context(), session, regionID)
	if err != nil {
		logrus.WithError(err).WithField("region_id", regionID).Warn("Handler.CycleRegion: Cycle failed")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// Reset 处理 POST /api/tracker/reset
func (h *TrackerHandler) Reset(c *gin.Context) {
	session, ok := h.openSession(c)
	if !ok {
		return
	}

	err := h.trackerService.Reset(c.Request.Context(), session)
	if err != nil && !service.IsNonFatal(err) {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, ResetResponse{
		State:     session.State,
		Progress:  session.State.Progress(),
		Persisted: err == nil,
	})
}

// Share 处理 POST /api/tracker/share
func (h *TrackerHandler) Share(c *gin.Context) {
	session, ok := h.openSession(c)
	if !ok {
		return
	}

	var req ShareRequest
	// 请求体可省略
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logrus.WithError(err).Warn("Handler.Share: Invalid input format")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	result, err := h.trackerService.Share(c.Request.Context(), session, req.BaseURL)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}

// openSession 为已认证的客户端打开会话。
// 页面带着 state 参数时会话为只读，修改类请求由服务层拒绝。
func (h *TrackerHandler) openSession(c *gin.Context) (*domain.Session, bool) {
	clientID, ok := middleware.ClientID(c)
	if !ok {
		logrus.Warn("TrackerHandler: Client ID not found in context")
		ErrorResponse(c, http.StatusUnauthorized, "Client not authenticated")
		return nil, false
	}
	return h.trackerService.OpenSession(c.Request.Context(), clientID, c.Query(codec.ShareParam)), true
}
